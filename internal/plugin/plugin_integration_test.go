package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestPlugin_Journal_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginDir := findPluginDir("journal")
	if pluginDir == "" {
		t.Skip("journal plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	plug, err := mgr.Get("journal")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	file := filepath.Join(t.TempDir(), "events.jsonl")
	cfg, _ := json.Marshal(map[string]string{"file": file})
	executor := NewExecutor(5000)

	resp, err := executor.Execute(context.Background(), plug, &Request{
		Action:  "append",
		Event:   EventBloomed,
		Config:  cfg,
		Payload: Payload{FlowerCount: 4, Species: "daisy"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("append failed: %s", resp.Error)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("journal not written: %v", err)
	}
	if !strings.Contains(string(data), `"event":"bloomed"`) || !strings.Contains(string(data), `"species":"daisy"`) {
		t.Errorf("journal line = %s", data)
	}

	resp, err = executor.Execute(context.Background(), plug, &Request{Action: "truncate", Event: EventCleared})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for unknown action")
	}
}

// findPluginDir returns the bundled plugin directory when its executable has
// been built next to the manifest.
func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir
		}
	}
	return ""
}
