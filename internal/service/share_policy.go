package service

import "context"

// ─────────────────────────────────────────────────────────────
// Shared-Block Policy — decision gate for editing shared blocks
// ─────────────────────────────────────────────────────────────

// ShareDecision is the caller's choice when a block linked from more than
// one document is about to be edited.
type ShareDecision int

const (
	// DecisionModify edits the block in place; every referencing document
	// sees the change.
	DecisionModify ShareDecision = iota
	// DecisionDuplicate clones the block, relinks the clone in place of the
	// original for the current document only, and edits the clone.
	DecisionDuplicate
	// DecisionCancel aborts the edit with no mutation.
	DecisionCancel
)

func (d ShareDecision) String() string {
	switch d {
	case DecisionModify:
		return "modify"
	case DecisionDuplicate:
		return "duplicate"
	case DecisionCancel:
		return "cancel"
	}
	return "unknown"
}

// ShareDecider supplies the decision. The engine blocks on it: no payload
// mutation happens before Decide returns. refCount is always > 1 when
// invoked.
type ShareDecider interface {
	Decide(ctx context.Context, blockID string, refCount int) (ShareDecision, error)
}

// ShareDeciderFunc adapts a function to the ShareDecider interface.
type ShareDeciderFunc func(ctx context.Context, blockID string, refCount int) (ShareDecision, error)

func (f ShareDeciderFunc) Decide(ctx context.Context, blockID string, refCount int) (ShareDecision, error) {
	return f(ctx, blockID, refCount)
}

// StaticDecider always answers with the same decision. Useful as a safe
// default (cancel) and in tests.
func StaticDecider(d ShareDecision) ShareDecider {
	return ShareDeciderFunc(func(context.Context, string, int) (ShareDecision, error) {
		return d, nil
	})
}
