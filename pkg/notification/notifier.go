// Package notification delivers best-effort assignee notifications from
// approval lifecycle events.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/signoffhq/signoff/pkg/eventbus"
	"github.com/signoffhq/signoff/pkg/events"
)

// Sender delivers one notification to one recipient. Implementations wrap
// whatever transport a deployment uses (mail gateway, chat webhook, ...).
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogSender writes notifications to the log. Default transport for local
// development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	s.logger.InfoContext(ctx, "Notification delivered",
		"recipient", recipient, "subject", subject, "body", body)

	return nil
}

// Notifier subscribes to approval events and notifies step assignees and
// requesters. Delivery is best-effort: failures are logged and the event is
// still acknowledged.
type Notifier struct {
	bus    eventbus.EventBus
	sender Sender
	logger *slog.Logger
}

func NewNotifier(bus eventbus.EventBus, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		bus:    bus,
		sender: sender,
		logger: logger,
	}
}

// Start registers event handlers and begins consuming.
func (n *Notifier) Start(ctx context.Context) error {
	err := n.bus.Handle(events.StepAssignedEvent, n.handleStepAssigned)
	if err != nil {
		return err
	}

	err = n.bus.Handle(events.ApprovalResolvedEvent, n.handleApprovalResolved)
	if err != nil {
		return err
	}

	return n.bus.Subscribe(ctx)
}

func (n *Notifier) handleStepAssigned(ctx context.Context, event interface{}) error {
	assigned, ok := event.(*events.StepAssigned)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if assigned.AssignedTo == "" {
		// Fallback-assigned step: the recipient is resolved by an
		// out-of-band rule, not by this service.
		n.logger.DebugContext(ctx, "Skipping notification for fallback-assigned step",
			"approval_id", assigned.ApprovalID, "step_id", assigned.StepID)

		return nil
	}

	subject := fmt.Sprintf("Approval pending: %s", assigned.Title)
	if assigned.Reminder {
		subject = fmt.Sprintf("Reminder - approval pending: %s", assigned.Title)
	}

	body := fmt.Sprintf("Step %d of approval %s awaits your decision.",
		assigned.StepOrder, assigned.ApprovalID)

	err := n.sender.Send(ctx, assigned.AssignedTo, subject, body)
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to deliver step notification",
			"recipient", assigned.AssignedTo, "approval_id", assigned.ApprovalID, "error", err)
	}

	return nil
}

func (n *Notifier) handleApprovalResolved(ctx context.Context, event interface{}) error {
	resolved, ok := event.(*events.ApprovalResolved)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	subject := fmt.Sprintf("Approval %s: %s", resolved.Status, resolved.ApprovalID)
	body := fmt.Sprintf("Your %s request was %s.", resolved.WorkflowType, resolved.Status)

	err := n.sender.Send(ctx, resolved.RequestedBy, subject, body)
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to deliver resolution notification",
			"recipient", resolved.RequestedBy, "approval_id", resolved.ApprovalID, "error", err)
	}

	return nil
}
