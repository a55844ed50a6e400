package pipeline

import (
	"context"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/transcript"
)

var (
	errorPattern        = regexp.MustCompile(`(?i)error|failed|cannot|unable|exception|traceback`)
	successAntiPattern  = regexp.MustCompile(`(?i)successfully|completed|fixed|resolved`)
)

const stopTranscriptLastN = 15

// StopPolicy carries the configurable knobs of the stop pipeline's retry
// and escalation behavior.
type StopPolicy struct {
	RetryOnError      bool
	MaxRetries        int
	EscalateToTelegram bool
}

// Stop runs the S0/S1/S2/S3 state machine described for the Stop hook:
// loop-guard, bounded retry-on-error, then optional human escalation with
// best-effort transcript context.
type Stop struct {
	registry   service.SessionRegistry
	reader     service.TranscriptReader
	summarizer service.Summarizer
	approval   service.ApprovalCoordinator // nil when no chat channel is configured
	policy     StopPolicy
	logger     *zap.Logger

	mu      sync.Mutex
	retries map[string]int
}

// StopConfig is the wiring for Stop. Approval and Summarizer may be nil.
type StopConfig struct {
	Registry   service.SessionRegistry
	Reader     service.TranscriptReader
	Summarizer service.Summarizer
	Approval   service.ApprovalCoordinator
	Policy     StopPolicy
}

// NewStop builds a Stop pipeline.
func NewStop(cfg StopConfig, logger *zap.Logger) *Stop {
	return &Stop{
		registry:   cfg.Registry,
		reader:     cfg.Reader,
		summarizer: cfg.Summarizer,
		approval:   cfg.Approval,
		policy:     cfg.Policy,
		logger:     logger,
		retries:    map[string]int{},
	}
}

// Handle runs one Stop event through the state machine.
func (s *Stop) Handle(ctx context.Context, ev entity.StopEvent) entity.StopResponse {
	s.registry.EnsureRegistered(ev.SessionID, ev.Cwd, ev.TranscriptPath)

	// S0: precheck.
	if ev.StopHookActive {
		return entity.StopResponse{}
	}
	if ev.LastAssistantMessage == "" {
		return entity.StopResponse{}
	}

	// S1: retry on error, bounded.
	if s.policy.RetryOnError && errorPattern.MatchString(ev.LastAssistantMessage) && !successAntiPattern.MatchString(ev.LastAssistantMessage) {
		count := s.incrementRetry(ev.SessionID)
		if count <= s.policy.MaxRetries {
			return entity.StopResponse{
				Decision: "block",
				Reason:   "The previous approach hit an error. Try a different approach to accomplish the task.",
			}
		}
		s.clearRetry(ev.SessionID)
		// fall through to S2
	}

	// S2: analyse + escalate.
	if s.policy.EscalateToTelegram && s.approval != nil {
		return s.escalate(ctx, ev)
	}

	// Fallback: no coordinator configured.
	s.clearRetry(ev.SessionID)
	return entity.StopResponse{}
}

func (s *Stop) escalate(ctx context.Context, ev entity.StopEvent) entity.StopResponse {
	label := s.registry.GetLabel(ev.SessionID)
	paneID := s.registry.GetPaneID(ev.SessionID)

	var summary, recentTools string
	if path := ev.TranscriptPath; path != "" {
		excerpt := s.reader.Read(path, stopTranscriptLastN)
		recentTools = transcript.ExtractRecentTools(excerpt, stopTranscriptLastN)
		if s.summarizer != nil {
			if text, err := s.summarizer.Summarize(ctx, excerpt); err == nil {
				summary = text
			} else {
				s.logger.Warn("transcript summary failed during stop escalation", zap.Error(err))
			}
		}
	}

	res := s.approval.RequestStopDecision(ctx, service.StopDecisionRequest{
		SessionID:       ev.SessionID,
		LastMessage:     ev.LastAssistantMessage,
		Label:           label,
		Cwd:             ev.Cwd,
		PaneID:          paneID,
		Summary:         summary,
		RecentToolsText: recentTools,
	})

	if !res.Approved {
		return entity.StopResponse{}
	}
	if res.PolicyText != "" {
		return entity.StopResponse{Decision: "block", Reason: "The user answered your question: " + res.PolicyText}
	}
	return entity.StopResponse{Decision: "block", Reason: "The user wants you to continue with the task."}
}

func (s *Stop) incrementRetry(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[sessionID]++
	return s.retries[sessionID]
}

func (s *Stop) clearRetry(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.retries, sessionID)
}
