// Package reminder periodically re-notifies assignees of approvals that
// have been pending past a threshold. Approvals never expire; this only
// nudges the current assignee again.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/signoffhq/signoff/pkg/models"
	"github.com/signoffhq/signoff/pkg/services"
)

const pageSize = 100

// DefaultMinAge is how long an approval sits untouched before reminders kick in.
const DefaultMinAge = 48 * time.Hour

type Reminder struct {
	service  *services.Approval
	cron     *cron.Cron
	schedule string
	minAge   time.Duration
	logger   *slog.Logger
}

// New creates a reminder loop. schedule is a cron expression; minAge is how
// long an approval must have been untouched before it is re-notified.
func New(service *services.Approval, schedule string, minAge time.Duration, logger *slog.Logger) *Reminder {
	return &Reminder{
		service:  service,
		cron:     cron.New(),
		schedule: schedule,
		minAge:   minAge,
		logger:   logger,
	}
}

// Start schedules the reminder job and starts the cron runner.
func (r *Reminder) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		err := r.RunOnce(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "Reminder run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()

	return nil
}

// Stop stops the cron runner and waits for a running job to finish.
func (r *Reminder) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce walks all pending approvals and re-notifies those untouched for
// at least minAge.
func (r *Reminder) RunOnce(ctx context.Context) error {
	pending := models.ApprovalStatusPending
	cutoff := time.Now().UTC().Add(-r.minAge)

	offset := 0

	for {
		page, err := r.service.ListApprovals(ctx, services.ListApprovalsRequest{
			Limit:  pageSize,
			Offset: offset,
			Status: &pending,
		})
		if err != nil {
			return err
		}

		for _, approval := range page.Approvals {
			if approval.UpdatedAt.After(cutoff) {
				continue
			}

			r.service.NotifyPending(ctx, approval)
			r.logger.InfoContext(ctx, "Re-notified pending approval",
				"approval_id", approval.ID, "pending_since", approval.UpdatedAt)
		}

		if !page.HasNextPage {
			return nil
		}

		offset += pageSize
	}
}
