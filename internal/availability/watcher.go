// Package availability fans out restock alerts to users who marked a
// medicine as favorite. An alert fires only on the exhausted-to-available
// edge: quantity was zero before the mutation and positive after it.
package availability

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/internal/favorites"
	"github.com/medifast-dev/medifast-backend/internal/medicines"
	"github.com/medifast-dev/medifast-backend/internal/sites"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/whatsapp"
)

// Replenishment describes one stock mutation as seen by the watcher.
type Replenishment struct {
	MedicineID uuid.UUID
	SiteID     uuid.UUID
	Before     int
	After      int
}

// Watcher is notified after every committed stock mutation.
type Watcher interface {
	StockChanged(ctx context.Context, change Replenishment)
}

// ServiceParams groups dependencies for the availability watcher.
type ServiceParams struct {
	FavoritesRepo *favorites.Repository
	MedicineRepo  *medicines.Repository
	SiteRepo      *sites.Repository
	Sender        whatsapp.Sender
	Logger        *logger.Logger
}

type service struct {
	favoritesRepo *favorites.Repository
	medicineRepo  *medicines.Repository
	siteRepo      *sites.Repository
	sender        whatsapp.Sender
	logg          *logger.Logger
}

// NewService builds the watcher with the required dependencies.
func NewService(params ServiceParams) (Watcher, error) {
	if params.FavoritesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "favorites repo is required")
	}
	if params.MedicineRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "medicine repo is required")
	}
	if params.SiteRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "site repo is required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		favoritesRepo: params.FavoritesRepo,
		medicineRepo:  params.MedicineRepo,
		siteRepo:      params.SiteRepo,
		sender:        params.Sender,
		logg:          params.Logger,
	}, nil
}

// StockChanged inspects the mutation and, when it crosses the restock edge,
// alerts every subscriber with a usable phone number. Per-user failures are
// logged and never abort the loop; the caller's mutation already committed.
func (s *service) StockChanged(ctx context.Context, change Replenishment) {
	if change.Before != 0 || change.After <= 0 {
		return
	}

	medicine, err := s.medicineRepo.FindByID(ctx, change.MedicineID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Error(ctx, "availability: load medicine", err)
		}
		return
	}
	site, err := s.siteRepo.FindByID(ctx, change.SiteID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Error(ctx, "availability: load site", err)
		}
		return
	}

	users, err := s.favoritesRepo.ListUsersByMedicine(ctx, change.MedicineID)
	if err != nil {
		s.logg.Error(ctx, "availability: list subscribers", err)
		return
	}
	if len(users) == 0 {
		return
	}

	body := whatsapp.AvailabilityMessage(medicine.Name, site.Name, change.After)
	notified := 0
	for _, user := range users {
		phone, ok := NormalizePhone(user.Phone)
		if !ok {
			logCtx := s.logg.WithUserID(ctx, user.ID.String())
			s.logg.Warn(logCtx, "availability: skipping user with unusable phone")
			continue
		}
		if !s.sender.SendText(ctx, phone, body) {
			logCtx := s.logg.WithUserID(ctx, user.ID.String())
			s.logg.Warn(logCtx, "availability: send failed")
			continue
		}
		notified++
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"medicine_id": change.MedicineID.String(),
		"site_id":     change.SiteID.String(),
		"subscribers": len(users),
		"notified":    notified,
	})
	s.logg.Info(logCtx, "availability alert fan-out complete")
}

// NormalizePhone strips every non-digit rune and reports whether the result
// has enough digits to be dialable.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return "", false
	}
	return digits, true
}
