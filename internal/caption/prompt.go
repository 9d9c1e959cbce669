package caption

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Prompt builds the instruction sent alongside the garden image.
func Prompt(count int, locale string) string {
	var b strings.Builder
	b.WriteString("You are a digital gardener and poet. Look at this image of an augmented reality garden. ")
	b.WriteString(fmt.Sprintf("There are %d %s in the garden. ", max(0, count), plural(count)))
	b.WriteString("Describe the scene in a short, whimsical and encouraging way. ")
	b.WriteString("Mention the colors and the mood. Keep it under 3 sentences.")
	if name := LanguageName(locale); name != "" && name != "English" {
		b.WriteString(" Respond in " + name + ".")
	}
	return b.String()
}

// LanguageName returns the English display name for a BCP 47 locale, or ""
// when it cannot be parsed.
func LanguageName(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return display.English.Languages().Name(base)
}

func plural(count int) string {
	if count == 1 {
		return "flower"
	}
	return "flowers"
}
