package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeBroadcaster struct {
	fail     bool
	channels []string
	payloads [][]byte
}

func (f *fakeBroadcaster) Ping(context.Context) error { return nil }

func (f *fakeBroadcaster) Publish(_ context.Context, channel string, payload any) error {
	if f.fail {
		return errors.New("redis down")
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload.([]byte))
	return nil
}

func newTestService(t *testing.T, repo *fakeRepo, broadcast *fakeBroadcaster) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.Channel = "medifast:events:test"
	cfg.Outbox.MaxAttempts = 3
	service, err := NewService(ServiceParams{
		Config:      cfg,
		Logger:      logger.New(logger.Options{ServiceName: "outbox-test"}),
		Repository:  repo,
		Broadcaster: broadcast,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func testEvent(attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventStockUpdated,
		AggregateType: enums.AggregateStockEntry,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     time.Now(),
		AttemptCount:  attempts,
	}
}

func TestDrainOncePublishesAndMarks(t *testing.T) {
	event := testEvent(0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	broadcast := &fakeBroadcaster{}
	service := newTestService(t, repo, broadcast)

	processed, err := service.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to be processed")
	}
	if len(repo.published) != 1 || repo.published[0] != event.ID {
		t.Fatalf("expected event marked published, got %v", repo.published)
	}
	if len(broadcast.channels) != 1 || broadcast.channels[0] != "medifast:events:test" {
		t.Fatalf("unexpected channels %v", broadcast.channels)
	}

	var message BroadcastMessage
	if err := json.Unmarshal(broadcast.payloads[0], &message); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if message.ID != event.ID || message.EventType != string(enums.EventStockUpdated) {
		t.Fatalf("unexpected message %+v", message)
	}
}

func TestDrainOnceMarksFailedAndKeepsGoing(t *testing.T) {
	first := testEvent(0)
	second := testEvent(0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	broadcast := &fakeBroadcaster{fail: true}
	service := newTestService(t, repo, broadcast)

	processed, err := service.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to be processed")
	}
	if len(repo.failed) != 2 {
		t.Fatalf("expected both events marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 0 {
		t.Fatalf("expected no events published, got %v", repo.published)
	}
}

func TestDrainOnceSkipsEventsPastAttemptBudget(t *testing.T) {
	exhausted := testEvent(3)
	repo := &fakeRepo{events: []models.OutboxEvent{exhausted}}
	broadcast := &fakeBroadcaster{}
	service := newTestService(t, repo, broadcast)

	processed, err := service.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if processed {
		t.Fatal("expected skipped batch to count as idle")
	}
	if len(broadcast.channels) != 0 {
		t.Fatalf("expected no publishes, got %v", broadcast.channels)
	}
}

func TestDrainOnceIdleWhenEmpty(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakeBroadcaster{})

	processed, err := service.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if processed {
		t.Fatal("expected idle result for empty table")
	}
}
