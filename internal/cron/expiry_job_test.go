package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

type fakeExpirer struct {
	expired int
	err     error
	calls   int
}

func (f *fakeExpirer) ExpireOverdue(ctx context.Context) (int, error) {
	f.calls++
	return f.expired, f.err
}

func TestExpiryJobDelegatesToService(t *testing.T) {
	expirer := &fakeExpirer{expired: 3}
	job, err := NewExpiryJob(ExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Pickups: expirer,
	})
	if err != nil {
		t.Fatalf("NewExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected a single sweep, got %d", expirer.calls)
	}
}

func TestExpiryJobPropagatesSweepError(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("boom")}
	job, err := NewExpiryJob(ExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Pickups: expirer,
	})
	if err != nil {
		t.Fatalf("NewExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to propagate")
	}
}
