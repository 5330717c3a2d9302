package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/metrics"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	maxBackoff          = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond

	publishRetries      = 2
	publishRetryBackoff = 100 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type outboxRepository interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type broadcaster interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, channel string, payload any) error
}

// BroadcastMessage is the wire format pushed onto the redis channel. Payload
// carries the envelope the emitter stored at write time.
type BroadcastMessage struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Repository  outboxRepository
	Broadcaster broadcaster
	Metrics     *metrics.OutboxMetrics
}

// Service drains the outbox table onto the redis broadcast channel, oldest
// first. Events past the attempt budget are left in the table for inspection
// and no longer retried.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	repo         outboxRepository
	broadcast    broadcaster
	metrics      *metrics.OutboxMetrics
	channel      string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Broadcaster == nil {
		return nil, errors.New("broadcaster is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.Outbox.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	channel := params.Config.Outbox.Channel
	if channel == "" {
		return nil, errors.New("broadcast channel is required")
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		repo:         params.Repository,
		broadcast:    params.Broadcaster,
		metrics:      params.Metrics,
		channel:      channel,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.broadcast.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	backoff := s.pollInterval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.drainOnce(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox drain error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = s.pollInterval

		if processed {
			continue
		}
		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// drainOnce publishes one fetched batch. It reports whether any event was
// seen so the caller knows to poll again immediately.
func (s *Service) drainOnce(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(s.batchSize)
	if err != nil {
		return false, fmt.Errorf("fetching outbox events: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetPending(len(events))
	}
	if len(events) == 0 {
		return false, nil
	}

	attempted := false
	for _, event := range events {
		if event.AttemptCount >= s.maxAttempts {
			continue
		}
		attempted = true

		fields := map[string]any{
			"event_id":       event.ID.String(),
			"event_type":     event.EventType,
			"aggregate_id":   event.AggregateID.String(),
			"aggregate_type": event.AggregateType,
			"attempt_count":  event.AttemptCount,
		}
		eventCtx := s.logg.WithFields(ctx, fields)

		if err := s.publishEvent(ctx, event); err != nil {
			if s.metrics != nil {
				s.metrics.IncFailed()
			}
			s.logg.Error(eventCtx, "outbox publish failed", err)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				return true, fmt.Errorf("marking event failed: %w", markErr)
			}
			continue
		}

		if err := s.repo.MarkPublished(event.ID); err != nil {
			return true, fmt.Errorf("marking event published: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncPublished()
		}
		s.logg.Info(eventCtx, "outbox event broadcast")
	}

	return attempted, nil
}

// publishEvent pushes one message with a small retry budget around transient
// redis hiccups.
func (s *Service) publishEvent(ctx context.Context, event models.OutboxEvent) error {
	message := BroadcastMessage{
		ID:            event.ID,
		EventType:     string(event.EventType),
		AggregateType: string(event.AggregateType),
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		CreatedAt:     event.CreatedAt,
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding broadcast message: %w", err)
	}

	backoff := retry.WithMaxRetries(publishRetries, retry.NewConstant(publishRetryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.broadcast.Publish(ctx, s.channel, payload); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, floor, ceiling time.Duration) time.Duration {
	next := current * 2
	if next < floor {
		next = floor
	}
	if next > ceiling {
		next = ceiling
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
