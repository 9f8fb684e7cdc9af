// Package cache provides invalidation of cached approval reads. Failures
// here never roll back a committed transition; callers log and move on.
package cache

import "context"

type Invalidator interface {
	// InvalidateApprovals drops all cached approval list/detail entries.
	InvalidateApprovals(ctx context.Context) error

	// InvalidateWorkflow drops cached entries for the domain entity an
	// approval targets.
	InvalidateWorkflow(ctx context.Context, workflowType, workflowID string) error

	Close() error
}

// Noop is used when no cache backend is configured.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) InvalidateApprovals(_ context.Context) error {
	return nil
}

func (n *Noop) InvalidateWorkflow(_ context.Context, _, _ string) error {
	return nil
}

func (n *Noop) Close() error {
	return nil
}
