// Package confirm implements the human-confirmation collaborator that
// gates sensitive tool calls.
package confirm

import (
	"context"
	"sync"
)

// Decision is the outcome of one confirmation request.
type Decision int

const (
	// Deny refuses the dispatch. It is the zero value: anything that
	// fails to produce an explicit decision denies.
	Deny Decision = iota
	// Approve allows this one dispatch.
	Approve
	// AlwaysAllow allows this dispatch and every later call to the same
	// tool for the rest of the session.
	AlwaysAllow
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case AlwaysAllow:
		return "always"
	default:
		return "deny"
	}
}

// Confirmer decides whether a sensitive tool call may be dispatched. The
// string return is an optional operator message relayed to the model on
// denial.
type Confirmer interface {
	Confirm(ctx context.Context, tool string, args map[string]any) (Decision, string, error)
}

type static struct {
	d Decision
}

func (s static) Confirm(context.Context, string, map[string]any) (Decision, string, error) {
	return s.d, "", nil
}

// AutoApprove approves everything. For tests and trusted setups only.
func AutoApprove() Confirmer { return static{Approve} }

// AutoDeny denies everything.
func AutoDeny() Confirmer { return static{Deny} }

// Session wraps a Confirmer and caches AlwaysAllow decisions per tool
// name for the lifetime of the process.
type Session struct {
	inner Confirmer

	mu      sync.Mutex
	allowed map[string]bool
}

// NewSession creates a session-scoped wrapper around inner.
func NewSession(inner Confirmer) *Session {
	return &Session{inner: inner, allowed: make(map[string]bool)}
}

// Confirm consults the always-allow cache before delegating.
func (s *Session) Confirm(ctx context.Context, tool string, args map[string]any) (Decision, string, error) {
	s.mu.Lock()
	ok := s.allowed[tool]
	s.mu.Unlock()
	if ok {
		return Approve, "", nil
	}

	d, msg, err := s.inner.Confirm(ctx, tool, args)
	if err != nil {
		return Deny, msg, err
	}
	if d == AlwaysAllow {
		s.mu.Lock()
		s.allowed[tool] = true
		s.mu.Unlock()
	}
	return d, msg, nil
}
