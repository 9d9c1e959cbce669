package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/bloom/internal/store"
)

type fakeHooks struct {
	mu    sync.Mutex
	hooks map[string][]*store.Hook
	err   error
	calls int
}

func (f *fakeHooks) ForEvent(event string) ([]*store.Hook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hooks[event], nil
}

// recorderPlugins installs a plugin that appends each request to out.jsonl
// in its own directory.
func recorderPlugins(t *testing.T, manifest Manifest) (*Manager, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	root := t.TempDir()
	manifest.Executable = "record.sh"
	dir := writeManifest(t, root, manifest.Name, manifest)
	script := "#!/bin/sh\ncat >> out.jsonl\necho >> out.jsonl\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "record.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return m, filepath.Join(dir, "out.jsonl")
}

func readRecorded(t *testing.T, path string) []Request {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var reqs []Request
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var r Request
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("bad recorded line %q: %v", line, err)
		}
		reqs = append(reqs, r)
	}
	return reqs
}

func TestDispatcher_Dispatch(t *testing.T) {
	plugins, out := recorderPlugins(t, Manifest{Name: "recorder", Actions: []string{"append"}})
	hooks := &fakeHooks{hooks: map[string][]*store.Hook{
		"planted": {{ID: "h1", Event: "planted", PluginName: "recorder", ActionName: "append", Config: json.RawMessage(`{"file":"x"}`)}},
	}}

	d := NewDispatcher(hooks, plugins, NewExecutor(5000), 4)
	defer d.Close()

	results := d.Dispatch(context.Background(), EventPlanted, Payload{FlowerCount: 2, Species: "rose"})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("hook failed: %v", results[0].Err)
	}
	if results[0].HookID != "h1" || !results[0].Response.Success {
		t.Errorf("unexpected result: %+v", results[0])
	}

	reqs := readRecorded(t, out)
	if len(reqs) != 1 {
		t.Fatalf("expected 1 recorded request, got %d", len(reqs))
	}
	if reqs[0].Event != EventPlanted || reqs[0].Action != "append" || reqs[0].Payload.Species != "rose" {
		t.Errorf("recorded request = %+v", reqs[0])
	}
	if string(reqs[0].Config) != `{"file":"x"}` {
		t.Errorf("config = %s", reqs[0].Config)
	}
	if d.Fired() != 1 {
		t.Errorf("Fired() = %d", d.Fired())
	}

	if got := d.Dispatch(context.Background(), EventBloomed, Payload{}); len(got) != 0 {
		t.Errorf("event without hooks produced %d results", len(got))
	}
}

func TestDispatcher_HookErrors(t *testing.T) {
	plugins, _ := recorderPlugins(t, Manifest{
		Name:    "recorder",
		Actions: []string{"append"},
		Events:  []Event{EventCleared},
	})

	tests := []struct {
		name    string
		event   Event
		hook    store.Hook
		wantErr string
	}{
		{"unknown plugin", EventCleared, store.Hook{PluginName: "ghost", ActionName: "append"}, "plugin not found"},
		{"unhandled event", EventPlanted, store.Hook{PluginName: "recorder", ActionName: "append"}, "does not handle"},
		{"unknown action", EventCleared, store.Hook{PluginName: "recorder", ActionName: "truncate"}, "no action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.hook
			hooks := &fakeHooks{hooks: map[string][]*store.Hook{string(tt.event): {&h}}}
			d := NewDispatcher(hooks, plugins, nil, 1)
			defer d.Close()

			results := d.Dispatch(context.Background(), tt.event, Payload{})
			if len(results) != 1 || results[0].Err == nil {
				t.Fatalf("expected one failed result, got %+v", results)
			}
			if !strings.Contains(results[0].Err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", results[0].Err, tt.wantErr)
			}
			if d.Fired() != 0 {
				t.Errorf("failed hooks counted as fired")
			}
		})
	}
}

func TestDispatcher_PluginReportsFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	root := t.TempDir()
	dir := writeManifest(t, root, "grumpy", Manifest{Name: "grumpy", Executable: "run.sh"})
	script := "#!/bin/sh\ncat > /dev/null\necho '{\"success\":false,\"error\":\"not today\"}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	plugins := NewManager(root)
	if err := plugins.Discover(); err != nil {
		t.Fatal(err)
	}

	hooks := &fakeHooks{hooks: map[string][]*store.Hook{
		"keepsake": {{ID: "k", PluginName: "grumpy", ActionName: "any"}},
	}}
	d := NewDispatcher(hooks, plugins, nil, 1)
	defer d.Close()

	results := d.Dispatch(context.Background(), EventKeepsake, Payload{Path: "/tmp/a.png"})
	if len(results) != 1 || results[0].Err == nil || results[0].Err.Error() != "not today" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Response == nil || results[0].Response.Success {
		t.Error("the failed response should be kept")
	}
}

func TestDispatcher_SourceError(t *testing.T) {
	hooks := &fakeHooks{err: errors.New("db closed")}
	d := NewDispatcher(hooks, NewManager(t.TempDir()), nil, 1)
	defer d.Close()

	if got := d.Dispatch(context.Background(), EventCleared, Payload{}); got != nil {
		t.Errorf("expected nil results, got %+v", got)
	}
}

func TestDispatcher_EmitRunsInBackground(t *testing.T) {
	plugins, out := recorderPlugins(t, Manifest{Name: "recorder"})
	hooks := &fakeHooks{hooks: map[string][]*store.Hook{
		"cleared": {{ID: "c", PluginName: "recorder", ActionName: "append"}},
	}}
	d := NewDispatcher(hooks, plugins, nil, 4)
	defer d.Close()

	if !d.Emit(EventCleared, Payload{FlowerCount: 7}) {
		t.Fatal("Emit dropped an event on an empty queue")
	}

	deadline := time.Now().Add(5 * time.Second)
	for d.Fired() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	reqs := readRecorded(t, out)
	if len(reqs) != 1 || reqs[0].Payload.FlowerCount != 7 {
		t.Fatalf("recorded = %+v", reqs)
	}
}

func TestDispatcher_EmitDropsWhenFull(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	root := t.TempDir()
	dir := writeManifest(t, root, "slow", Manifest{Name: "slow", Executable: "run.sh"})
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\nexec sleep 10\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	plugins := NewManager(root)
	if err := plugins.Discover(); err != nil {
		t.Fatal(err)
	}

	hooks := &fakeHooks{hooks: map[string][]*store.Hook{
		"planted": {{ID: "p", PluginName: "slow", ActionName: "x"}},
	}}
	d := NewDispatcher(hooks, plugins, NewExecutor(10000), 1)

	accepted := 0
	for range 10 {
		if d.Emit(EventPlanted, Payload{}) {
			accepted++
		}
	}
	if accepted > 2 {
		t.Errorf("accepted %d events with a queue of 1 and a busy worker", accepted)
	}
	if d.Dropped() == 0 {
		t.Error("no events were dropped")
	}

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not kill the running hook")
	}

	if d.Emit(EventPlanted, Payload{}) {
		t.Error("Emit after Close should report a drop")
	}
	d.Close()
}

func TestDispatcher_WithStore(t *testing.T) {
	plugins, out := recorderPlugins(t, Manifest{Name: "recorder"})

	s, err := store.New(filepath.Join(t.TempDir(), "bloom.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	for _, h := range []*store.Hook{
		{ID: "on", Event: "captioned", PluginName: "recorder", ActionName: "append", Enabled: true},
		{ID: "off", Event: "captioned", PluginName: "recorder", ActionName: "append", Enabled: false},
	} {
		if err := s.Hooks().Create(h); err != nil {
			t.Fatalf("Create(%s): %v", h.ID, err)
		}
	}

	d := NewDispatcher(s.Hooks(), plugins, nil, 1)
	defer d.Close()

	results := d.Dispatch(context.Background(), EventCaptioned, Payload{Text: "A quiet bloom."})
	if len(results) != 1 || results[0].HookID != "on" || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}
	if reqs := readRecorded(t, out); len(reqs) != 1 || reqs[0].Payload.Text != "A quiet bloom." {
		t.Errorf("recorded = %+v", reqs)
	}
}
