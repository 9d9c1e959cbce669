package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "hello", `printf '%s\n' '{"success":true,"data":{"message":"hello world"}}'
`)

	resp, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{
		Action: "greet",
		Event:  EventPlanted,
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success=true, got false")
	}
	if resp.Error != "" {
		t.Errorf("expected empty error, got %q", resp.Error)
	}

	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %q", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "echo", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	req := &Request{
		Action: "log",
		Event:  EventBloomed,
		Config: json.RawMessage(`{"setting":"enabled"}`),
		Payload: Payload{
			FlowerCount: 3,
			FlowerID:    "f-1",
			Species:     "tulip",
			Color:       "#ff69b4",
			At:          at,
		},
	}

	resp, err := NewExecutor(5000).Execute(context.Background(), plugin, req)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var got Request
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}
	if got.Action != "log" || got.Event != EventBloomed {
		t.Errorf("echoed action/event = %q/%q", got.Action, got.Event)
	}
	if string(got.Config) != `{"setting":"enabled"}` {
		t.Errorf("echoed config = %s", got.Config)
	}
	if got.Payload.FlowerCount != 3 || got.Payload.Species != "tulip" || !got.Payload.At.Equal(at) {
		t.Errorf("echoed payload = %+v", got.Payload)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, "slow", "exec sleep 10\n")

	start := time.Now()
	_, err := NewExecutor(100).Execute(context.Background(), plugin, &Request{Action: "slow"})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestExecutor_Cancelled(t *testing.T) {
	plugin := scriptPlugin(t, "slow", "exec sleep 10\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := NewExecutor(10000).Execute(ctx, plugin, &Request{Action: "slow"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExecutor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{
			name:   "error response",
			script: `echo '{"success":false,"error":"something went wrong"}'`,
		},
		{
			name:    "invalid json",
			script:  `echo 'this is not json'`,
			wantErr: "parse plugin response",
		},
		{
			name:    "non-zero exit",
			script:  `echo "boom" >&2; exit 1`,
			wantErr: "stderr: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plugin := scriptPlugin(t, "failing", tt.script+"\n")
			resp, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Action: "x"})

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() failed: %v", err)
			}
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Error != "something went wrong" {
				t.Errorf("error message = %q", resp.Error)
			}
		})
	}
}

func TestNewExecutor(t *testing.T) {
	tests := []struct {
		in   int
		want time.Duration
	}{
		{3000, 3 * time.Second},
		{0, DefaultTimeoutMs * time.Millisecond},
		{-5, DefaultTimeoutMs * time.Millisecond},
	}
	for _, tt := range tests {
		if got := NewExecutor(tt.in).Timeout(); got != tt.want {
			t.Errorf("NewExecutor(%d).Timeout() = %v, want %v", tt.in, got, tt.want)
		}
	}
}
