package cron

import (
	"context"

	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

type overdueExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// ExpiryJobParams configure the pickup expiry job.
type ExpiryJobParams struct {
	Logger  *logger.Logger
	Pickups overdueExpirer
}

// ExpiryJob sweeps programmed pickups whose grace period has elapsed.
type ExpiryJob struct {
	logg    *logger.Logger
	pickups overdueExpirer
}

// NewExpiryJob builds the expiry job.
func NewExpiryJob(params ExpiryJobParams) (*ExpiryJob, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Pickups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup service is required")
	}
	return &ExpiryJob{logg: params.Logger, pickups: params.Pickups}, nil
}

// Name identifies the job in logs and metrics.
func (j *ExpiryJob) Name() string {
	return "pickup-expiry"
}

// Run expires every overdue pickup, reporting how many transitions this
// invocation won.
func (j *ExpiryJob) Run(ctx context.Context) error {
	expired, err := j.pickups.ExpireOverdue(ctx)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "expiry sweep complete")
	return nil
}
