// Package audit implements the append-only JSONL decision and cost logs.
// Write failures never block a decision: they are logged and swallowed.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

// Sink writes AuditEntry records to .claudecube/audit/audit-YYYY-MM-DD.jsonl.
type Sink struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ service.AuditSink = (*Sink)(nil)

// NewSink builds a Sink rooted at dir (typically ".claudecube/audit").
func NewSink(dir string, logger *zap.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

// Write appends entry as one JSON line to today's audit file.
func (s *Sink) Write(entry entity.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.appendLine("audit-"+entry.Timestamp.Format("2006-01-02")+".jsonl", entry)
}

func (s *Sink) appendLine(filename string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("audit: mkdir failed", zap.Error(err))
		return
	}

	line, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("audit: marshal failed", zap.Error(err))
		return
	}

	f, err := os.OpenFile(filepath.Join(s.dir, filename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("audit: open failed", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("audit: write failed", zap.Error(err))
	}
}
