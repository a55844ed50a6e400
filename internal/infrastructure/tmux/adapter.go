// Package tmux implements the terminal multiplexer adapter capability (see
// spec §6) by shelling out to the tmux CLI. Every operation except SendKeys
// is best-effort: a tmux failure (not installed, no server running) yields
// an empty result rather than an error, since session discovery is a
// convenience, not a decision input.
package tmux

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/claudecube/claudecube/internal/domain/service"
)

// agentCommandSubstring identifies panes running the agent CLI among all
// tmux panes on the host.
const agentCommandSubstring = "claude"

// Adapter shells out to the tmux binary for pane discovery and key injection.
type Adapter struct {
	agentCommand string
}

var _ service.MultiplexerAdapter = (*Adapter)(nil)

// New builds an Adapter. agentCommand overrides the default substring used
// to filter panes down to ones running the agent CLI.
func New(agentCommand string) *Adapter {
	if agentCommand == "" {
		agentCommand = agentCommandSubstring
	}
	return &Adapter{agentCommand: agentCommand}
}

// ListPanes runs `tmux list-panes -a` and filters to panes whose command
// matches the configured agent command substring.
func (a *Adapter) ListPanes(ctx context.Context) []service.PaneInfo {
	out, err := a.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		return nil
	}
	return parsePanes(out, a.agentCommand)
}

const paneFormat = "#{session_name}\t#{window_index}\t#{window_name}\t#{pane_index}\t#{pane_id}\t#{pane_current_path}\t#{pane_current_command}"

func parsePanes(out, agentCommand string) []service.PaneInfo {
	var panes []service.PaneInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		if !strings.Contains(fields[6], agentCommand) {
			continue
		}
		windowIndex, _ := strconv.Atoi(fields[1])
		paneIndex, _ := strconv.Atoi(fields[3])
		panes = append(panes, service.PaneInfo{
			SessionName: fields[0],
			WindowIndex: windowIndex,
			WindowName:  fields[2],
			PaneIndex:   paneIndex,
			PaneID:      fields[4],
			PaneCwd:     fields[5],
			Command:     fields[6],
		})
	}
	return panes
}

// FindPaneForCwd returns the first agent pane whose current directory
// matches cwd exactly.
func (a *Adapter) FindPaneForCwd(ctx context.Context, cwd string) (string, bool) {
	for _, p := range a.ListPanes(ctx) {
		if p.PaneCwd == cwd {
			return p.PaneID, true
		}
	}
	return "", false
}

// ResolveLabel returns the window name of the first agent pane at cwd.
func (a *Adapter) ResolveLabel(ctx context.Context, cwd string) (string, bool) {
	for _, p := range a.ListPanes(ctx) {
		if p.PaneCwd == cwd {
			return p.WindowName, true
		}
	}
	return "", false
}

// SendKeys types text into paneID followed by Enter. Unlike the other
// operations, a failure here propagates: the caller asked to inject text
// into a running agent and needs to know whether it landed.
func (a *Adapter) SendKeys(ctx context.Context, paneID, text string) error {
	if _, err := a.run(ctx, "send-keys", "-t", paneID, text, "Enter"); err != nil {
		return err
	}
	return nil
}

func (a *Adapter) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}
