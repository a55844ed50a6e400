package transcript

import (
	"fmt"
	"strings"

	"github.com/claudecube/claudecube/internal/domain/entity"
)

// FormatRecentActivity renders the last maxMessages messages as a short
// human-readable block for inclusion in a chat message.
func FormatRecentActivity(excerpt entity.TranscriptExcerpt, maxMessages int) string {
	if len(excerpt.Messages) == 0 {
		return "No recent activity."
	}

	msgs := excerpt.Messages
	if len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}

	var b strings.Builder
	for _, m := range msgs {
		text := m.Text
		if text == "" && len(m.ToolUses) > 0 {
			text = fmt.Sprintf("(used %s)", m.ToolUses[0].Name)
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, truncate(text, 160))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExtractRecentTools renders the names of up to maxTools tool uses, walking
// the excerpt's messages newest first. Tool uses inside one message keep
// their recorded order, and repeated names are not collapsed.
func ExtractRecentTools(excerpt entity.TranscriptExcerpt, maxTools int) string {
	var names []string
	for i := len(excerpt.Messages) - 1; i >= 0 && len(names) < maxTools; i-- {
		for _, tu := range excerpt.Messages[i].ToolUses {
			names = append(names, tu.Name)
			if len(names) >= maxTools {
				break
			}
		}
	}
	if len(names) == 0 {
		return "No tool calls yet."
	}
	return strings.Join(names, ", ")
}
