package tmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePanes_FiltersByAgentCommand(t *testing.T) {
	out := "main\t0\twork\t0\t%1\t/home/user/proj\tclaude\n" +
		"main\t1\tshell\t0\t%2\t/home/user\tzsh\n"

	panes := parsePanes(out, "claude")

	require.Len(t, panes, 1)
	assert.Equal(t, "%1", panes[0].PaneID)
	assert.Equal(t, "/home/user/proj", panes[0].PaneCwd)
	assert.Equal(t, "work", panes[0].WindowName)
}

func TestParsePanes_SkipsMalformedLines(t *testing.T) {
	out := "too\tfew\tfields\n"
	panes := parsePanes(out, "claude")
	assert.Empty(t, panes)
}

func TestParsePanes_EmptyOutput(t *testing.T) {
	assert.Empty(t, parsePanes("", "claude"))
}

func TestNew_DefaultsAgentCommand(t *testing.T) {
	a := New("")
	assert.Equal(t, agentCommandSubstring, a.agentCommand)
}
