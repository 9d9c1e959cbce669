// Package main provides a plugin that appends every garden event it
// receives to a JSON lines file.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/bloom/internal/plugin"
)

const defaultFile = "garden-journal.jsonl"

// journalConfig is the hook config accepted by the append action.
type journalConfig struct {
	File string `json:"file"`
}

// entry is one line of the journal.
type entry struct {
	Event   plugin.Event   `json:"event"`
	Payload plugin.Payload `json:"payload"`
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(nil, fmt.Errorf("failed to decode request: %w", err))
		return
	}

	if req.Action != "append" {
		writeResponse(nil, fmt.Errorf("unknown action: %s", req.Action))
		return
	}

	path, err := appendEntry(&req)
	if err != nil {
		writeResponse(nil, fmt.Errorf("append failed: %w", err))
		return
	}
	data, _ := json.Marshal(map[string]string{"file": path})
	writeResponse(data, nil)
}

func appendEntry(req *plugin.Request) (string, error) {
	var cfg journalConfig
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("invalid config: %w", err)
		}
	}
	path := cfg.File
	if path == "" {
		path = defaultFile
	}
	if !req.Event.Valid() {
		return "", errors.New("missing or unknown event")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}

	line, err := json.Marshal(entry{Event: req.Event, Payload: req.Payload})
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

func writeResponse(data json.RawMessage, err error) {
	resp := plugin.Response{Success: err == nil, Data: data}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
