// Package main provides a desktop notification plugin. It uses notify-send
// on Linux and AppleScript on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/ayusman/bloom/internal/plugin"
)

// messageHandler builds a notification title and body for a request.
type messageHandler func(req *plugin.Request) (title, body string)

var actionHandlers = map[string]messageHandler{
	"notify":  eventMessage,
	"caption": captionMessage,
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
		return
	}

	title, body := handler(&req)
	if err := send(title, body); err != nil {
		writeResponse(fmt.Errorf("action %s failed: %w", req.Action, err))
		return
	}
	writeResponse(nil)
}

func eventMessage(req *plugin.Request) (string, string) {
	p := req.Payload
	switch req.Event {
	case plugin.EventBloomed:
		return "A flower bloomed", fmt.Sprintf("A %s flower opened. %d in the garden.", p.Species, p.FlowerCount)
	case plugin.EventCleared:
		return "Garden cleared", fmt.Sprintf("%d flowers were cleared.", p.FlowerCount)
	case plugin.EventKeepsake:
		return "Keepsake saved", p.Path
	case plugin.EventPlanted:
		return "Seed planted", fmt.Sprintf("%d flowers so far.", p.FlowerCount)
	default:
		return "Bloom", string(req.Event)
	}
}

func captionMessage(req *plugin.Request) (string, string) {
	if req.Payload.Text == "" {
		return eventMessage(req)
	}
	return "The gardener says", req.Payload.Text
}

func send(title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.Command("osascript", "-e", script)
	default:
		cmd = exec.Command("notify-send", "--app-name=bloom", title, body)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeResponse(err error) {
	resp := plugin.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
