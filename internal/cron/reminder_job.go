package cron

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/medifast-dev/medifast-backend/internal/availability"
	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/whatsapp"
)

const (
	defaultReminderLead   = time.Hour
	defaultReminderWindow = 5 * time.Minute
)

type reminderStore interface {
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.Pickup, error)
	MarkBatchNotified(ctx context.Context, batchCode string) (int64, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type medicineReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.Medicine, error)
}

type siteReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.Site, error)
}

// ReminderJobParams configure the pickup reminder job.
type ReminderJobParams struct {
	Logger    *logger.Logger
	Pickups   reminderStore
	Users     userReader
	Medicines medicineReader
	Sites     siteReader
	Sender    whatsapp.Sender
	Lead      time.Duration
	Window    time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// ReminderJob messages users whose pickups come due about one lead interval
// from now. Pickups created together share a batch code and collapse into a
// single combined message.
type ReminderJob struct {
	logg      *logger.Logger
	pickups   reminderStore
	users     userReader
	medicines medicineReader
	sites     siteReader
	sender    whatsapp.Sender
	lead      time.Duration
	window    time.Duration
	now       func() time.Time
}

// NewReminderJob builds the reminder job.
func NewReminderJob(params ReminderJobParams) (*ReminderJob, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Pickups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup store is required")
	}
	if params.Users == nil || params.Medicines == nil || params.Sites == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup repositories are required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender is required")
	}
	lead := params.Lead
	if lead <= 0 {
		lead = defaultReminderLead
	}
	window := params.Window
	if window <= 0 {
		window = defaultReminderWindow
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ReminderJob{
		logg:      params.Logger,
		pickups:   params.Pickups,
		users:     params.Users,
		medicines: params.Medicines,
		sites:     params.Sites,
		sender:    params.Sender,
		lead:      lead,
		window:    window,
		now:       now,
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *ReminderJob) Name() string {
	return "pickup-reminder"
}

// Run scans the reminder window and sends one message per due batch. The
// notified flag flips only after a confirmed send, so an undelivered batch is
// retried while it remains inside the window.
func (j *ReminderJob) Run(ctx context.Context) error {
	now := j.now()
	target := now.Add(j.lead)
	from := target.Add(-j.window)
	to := target.Add(j.window)

	due, err := j.pickups.ListDueForReminder(ctx, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due pickups")
	}
	if len(due) == 0 {
		j.logg.Info(ctx, "no pickups due for reminder")
		return nil
	}

	batches := groupByBatchCode(due)
	var combined error
	sent := 0
	for _, batch := range batches {
		if err := j.remindBatch(ctx, batch); err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		sent++
	}

	summary := j.logg.WithFields(ctx, map[string]any{
		"batches": len(batches),
		"sent":    sent,
	})
	j.logg.Info(summary, "reminder scan complete")
	return combined
}

func (j *ReminderJob) remindBatch(ctx context.Context, batch []models.Pickup) error {
	head := batch[0]
	logCtx := j.logg.WithField(ctx, "batch_code", head.BatchCode)

	user, err := j.users.FindByID(ctx, head.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup user")
	}
	phone, usable := availability.NormalizePhone(user.Phone)
	if !usable {
		j.logg.Warn(j.logg.WithUserID(logCtx, user.ID.String()), "skipping reminder, phone not usable")
		return nil
	}

	site, err := j.sites.FindByID(ctx, head.SiteID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup site")
	}

	names, err := j.medicineNames(ctx, batch)
	if err != nil {
		return err
	}

	body := whatsapp.ReminderMessage(site.Name, head.ScheduledAt, names)
	if !j.sender.SendText(ctx, phone, body) {
		j.logg.Warn(logCtx, "reminder delivery failed, will retry next cycle")
		return nil
	}

	marked, err := j.pickups.MarkBatchNotified(ctx, head.BatchCode)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark batch notified")
	}
	j.logg.Info(j.logg.WithField(logCtx, "pickups", marked), "reminder sent")
	return nil
}

func (j *ReminderJob) medicineNames(ctx context.Context, batch []models.Pickup) ([]string, error) {
	seen := make(map[uuid.UUID]bool, len(batch))
	names := make([]string, 0, len(batch))
	for _, pickup := range batch {
		if seen[pickup.MedicineID] {
			continue
		}
		seen[pickup.MedicineID] = true
		medicine, err := j.medicines.FindByID(ctx, pickup.MedicineID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup medicine")
		}
		names = append(names, medicine.Name)
	}
	return names, nil
}

// groupByBatchCode buckets pickups by batch code preserving first-seen order.
func groupByBatchCode(rows []models.Pickup) [][]models.Pickup {
	index := make(map[string]int, len(rows))
	var batches [][]models.Pickup
	for _, row := range rows {
		at, ok := index[row.BatchCode]
		if !ok {
			index[row.BatchCode] = len(batches)
			batches = append(batches, []models.Pickup{row})
			continue
		}
		batches[at] = append(batches[at], row)
	}
	return batches
}
