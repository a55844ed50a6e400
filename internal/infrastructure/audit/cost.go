package audit

import (
	"time"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

// CostSink writes CostEntry records to .claudecube/audit/costs-YYYY-MM-DD.jsonl.
type CostSink struct {
	sink *Sink
}

var _ service.CostSink = (*CostSink)(nil)

// NewCostSink builds a CostSink rooted at dir (typically ".claudecube/audit").
func NewCostSink(dir string, logger *zap.Logger) *CostSink {
	return &CostSink{sink: NewSink(dir, logger)}
}

// Write appends entry as one JSON line to today's cost file.
func (c *CostSink) Write(entry entity.CostEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	c.sink.appendLine("costs-"+entry.Timestamp.Format("2006-01-02")+".jsonl", entry)
}
