// Package installer patches the agent's settings file to register (or
// remove) the ClaudeCube hook bridge. It is a direct translation of the
// idempotence rule in spec §6: hooks previously installed by ClaudeCube are
// identified by a filename substring in their command, removed, and the
// fresh entry is appended after the event's foreign entries, which are kept
// in their original order.
package installer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/claudecube/claudecube/pkg/errors"
)

// ownedCommandSubstring identifies a hook command line as belonging to
// ClaudeCube, regardless of the binary's install path.
const ownedCommandSubstring = "claudecube"

// hookTimeouts maps each agent lifecycle event to the timeout (seconds)
// ClaudeCube's hook bridge should be installed with.
var hookTimeouts = map[string]int{
	"PreToolUse":   120,
	"Stop":         30,
	"SessionStart": 5,
	"SessionEnd":   5,
	"Notification": 5,
}

// hookEventOrder fixes iteration order so repeated installs produce a
// byte-stable settings file.
var hookEventOrder = []string{"PreToolUse", "Stop", "SessionStart", "SessionEnd", "Notification"}

// hookEntry mirrors the agent settings schema's per-event hook registration.
type hookEntry struct {
	Matcher string       `json:"matcher,omitempty"`
	Hooks   []hookAction `json:"hooks"`
}

type hookAction struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// settingsDoc is the subset of the agent's settings JSON this installer
// understands. Extra is not populated: other top-level keys travel in the
// separate raw map that readSettings returns and writeSettings re-emits.
type settingsDoc struct {
	Hooks map[string][]hookEntry     `json:"hooks"`
	Extra map[string]json.RawMessage `json:"-"`
}

// Install patches settingsPath so every event in hookEventOrder invokes
// binaryPath as a ClaudeCube-owned hook. Existing ClaudeCube entries for
// those events are replaced; entries belonging to other tools are kept.
func Install(settingsPath, binaryPath string) error {
	doc, raw, err := readSettings(settingsPath)
	if err != nil {
		return err
	}

	if doc.Hooks == nil {
		doc.Hooks = map[string][]hookEntry{}
	}

	for _, event := range hookEventOrder {
		command := fmt.Sprintf("%s --hook-event=%s", binaryPath, event)
		owned := hookEntry{
			Hooks: []hookAction{{
				Type:    "command",
				Command: command,
				Timeout: hookTimeouts[event],
			}},
		}
		doc.Hooks[event] = replaceOwned(doc.Hooks[event], owned)
	}

	return writeSettings(settingsPath, doc, raw)
}

// Uninstall removes every ClaudeCube-owned hook entry from settingsPath,
// leaving foreign entries and all other settings untouched.
func Uninstall(settingsPath string) error {
	doc, raw, err := readSettings(settingsPath)
	if err != nil {
		return err
	}
	if doc.Hooks == nil {
		return nil
	}

	for _, event := range hookEventOrder {
		entries := doc.Hooks[event]
		kept := entries[:0]
		for _, e := range entries {
			if !entryIsOwned(e) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(doc.Hooks, event)
		} else {
			doc.Hooks[event] = kept
		}
	}

	return writeSettings(settingsPath, doc, raw)
}

// replaceOwned drops any existing ClaudeCube-owned entries for the event and
// appends the fresh one, preserving the relative order of foreign entries.
func replaceOwned(entries []hookEntry, owned hookEntry) []hookEntry {
	kept := make([]hookEntry, 0, len(entries)+1)
	for _, e := range entries {
		if !entryIsOwned(e) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, owned)
	return kept
}

func entryIsOwned(e hookEntry) bool {
	for _, h := range e.Hooks {
		if containsOwnedCommand(h.Command) {
			return true
		}
	}
	return false
}

func containsOwnedCommand(command string) bool {
	return strings.Contains(command, ownedCommandSubstring)
}

func readSettings(path string) (settingsDoc, map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		raw = map[string]json.RawMessage{}
	case err != nil:
		return settingsDoc{}, nil, apperrors.NewInternal("read settings file", err)
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return settingsDoc{}, nil, apperrors.NewInvalidInput("settings file is not valid JSON: " + err.Error())
		}
	}

	var doc settingsDoc
	if hooksRaw, ok := raw["hooks"]; ok {
		if err := json.Unmarshal(hooksRaw, &doc.Hooks); err != nil {
			return settingsDoc{}, nil, apperrors.NewInvalidInput("settings.hooks is malformed: " + err.Error())
		}
	}
	delete(raw, "hooks")

	return doc, raw, nil
}

func writeSettings(path string, doc settingsDoc, extra map[string]json.RawMessage) error {
	merged := map[string]any{}
	for k, v := range extra {
		merged[k] = v
	}
	if len(doc.Hooks) > 0 {
		merged["hooks"] = doc.Hooks
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return apperrors.NewInternal("marshal settings file", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.NewInternal("create settings directory", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewInternal("write settings file", err)
	}
	return nil
}
