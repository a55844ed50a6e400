package entity

import "time"

// ApprovalResolution is what the approval coordinator ultimately hands back
// to a waiting pipeline for one pending request.
type ApprovalResolution struct {
	Approved   bool
	Reason     string
	PolicyText string // set when the human typed a free-text reply used as guidance or a new policy
}

// PendingApproval tracks one outstanding human-approval request. resolve is
// unexported: only the approval coordinator that created the entry may
// settle it, and it does so exactly once.
type PendingApproval struct {
	ID        string
	ToolName  string
	MessageID int
	CreatedAt time.Time
	IsStop    bool
	SessionID string

	resolve func(ApprovalResolution)
	done    bool
}

// NewPendingApproval wires a resolver callback into a new pending entry.
func NewPendingApproval(id, toolName, sessionID string, isStop bool, resolve func(ApprovalResolution)) *PendingApproval {
	return &PendingApproval{
		ID:        id,
		ToolName:  toolName,
		SessionID: sessionID,
		IsStop:    isStop,
		CreatedAt: time.Now(),
		resolve:   resolve,
	}
}

// Resolve settles the approval exactly once; subsequent calls are no-ops and
// report false so the caller can answer a late callback with "expired".
func (p *PendingApproval) Resolve(res ApprovalResolution) bool {
	if p.done {
		return false
	}
	p.done = true
	p.resolve(res)
	return true
}

// MessageContext indexes an outgoing chat message back to the approval
// request and session it belongs to, so an inbound reply or button press can
// be routed to the right PendingApproval.
type MessageContext struct {
	ApprovalID string
	SessionID  string
	PaneID     string
	Label      string
	IsStop     bool
}
