// Package transcript implements the transcript reader and summariser (C5).
package transcript

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

const toolInputSummaryMaxLen = 120

// rawLine is the subset of a transcript JSONL line's shape this reader cares
// about; unrecognized fields are ignored.
type rawLine struct {
	Type    string `json:"type"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Reader parses transcript JSONL files into TranscriptExcerpts. Any I/O or
// parse failure degrades to an empty excerpt rather than propagating an
// error: transcripts are best-effort context, not the decision itself.
type Reader struct{}

var _ service.TranscriptReader = Reader{}

func (Reader) Read(path string, lastN int) entity.TranscriptExcerpt {
	f, err := os.Open(path)
	if err != nil {
		return entity.TranscriptExcerpt{}
	}
	defer f.Close()

	var messages []entity.TranscriptMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw rawLine
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		if raw.Type != "user" && raw.Type != "assistant" {
			continue
		}
		messages = append(messages, parseMessage(raw))
	}
	if err := scanner.Err(); err != nil {
		return entity.TranscriptExcerpt{}
	}

	total := len(messages)
	if lastN > 0 && lastN < total {
		messages = messages[total-lastN:]
	}
	return entity.TranscriptExcerpt{Messages: messages, TotalMessages: total}
}

func parseMessage(raw rawLine) entity.TranscriptMessage {
	msg := entity.TranscriptMessage{Role: raw.Message.Role}

	// content is either a bare string or an array of typed blocks.
	var asString string
	if err := json.Unmarshal(raw.Message.Content, &asString); err == nil {
		msg.Text = asString
		return msg
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw.Message.Content, &blocks); err != nil {
		return msg
	}

	var text string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text += b.Text
		case "tool_use":
			msg.ToolUses = append(msg.ToolUses, entity.ToolUseSummary{
				Name:         b.Name,
				InputSummary: truncate(string(b.Input), toolInputSummaryMaxLen),
			})
		}
	}
	msg.Text = text
	return msg
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
