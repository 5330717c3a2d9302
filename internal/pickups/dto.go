package pickups

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
)

const (
	scheduleDateLayout = "2006-01-02"
	scheduleTimeLayout = "15:04"

	// ExpiryGrace is how long after the appointment a pickup stays collectable.
	ExpiryGrace = time.Hour
)

// PickupDTO is the API projection of one reservation.
type PickupDTO struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	MedicineID    uuid.UUID         `json:"medicine_id"`
	SiteID        uuid.UUID         `json:"site_id"`
	Quantity      int               `json:"quantity"`
	BatchCode     string            `json:"batch_code"`
	State         enums.PickupState `json:"state"`
	StateName     string            `json:"state_name"`
	ScheduledDate string            `json:"scheduled_date"`
	ScheduledTime string            `json:"scheduled_time"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Notified      bool              `json:"notified"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CreatePickupInput schedules one medicine at one site.
type CreatePickupInput struct {
	UserID     uuid.UUID `json:"user_id" validate:"required"`
	MedicineID uuid.UUID `json:"medicine_id" validate:"required"`
	SiteID     uuid.UUID `json:"site_id" validate:"required"`
	Date       string    `json:"date" validate:"required"`
	Time       string    `json:"time" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
}

// BatchItem is one medicine line inside a batch submission.
type BatchItem struct {
	MedicineID uuid.UUID `json:"medicine_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
}

// CreateBatchInput schedules several medicines for one visit. Every item
// shares the user, site and appointment instant.
type CreateBatchInput struct {
	UserID uuid.UUID   `json:"user_id" validate:"required"`
	SiteID uuid.UUID   `json:"site_id" validate:"required"`
	Date   string      `json:"date" validate:"required"`
	Time   string      `json:"time" validate:"required"`
	Items  []BatchItem `json:"items" validate:"required,min=1,dive"`
}

// UpdateStateInput advances the lifecycle.
type UpdateStateInput struct {
	State int `json:"state" validate:"gte=0,lte=3"`
}

// RescheduleInput moves the appointment of a programmed pickup.
type RescheduleInput struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

// BatchResultDTO describes what a batch submission produced.
type BatchResultDTO struct {
	BatchCode string      `json:"batch_code"`
	Pickups   []PickupDTO `json:"pickups"`
}

// parseSchedule combines the date and time strings into the appointment
// instant and its expiry, rejecting instants that are not strictly future.
func parseSchedule(dateStr, timeStr string, now time.Time) (time.Time, time.Time, error) {
	combined, err := time.ParseInLocation(
		scheduleDateLayout+" "+scheduleTimeLayout,
		fmt.Sprintf("%s %s", dateStr, timeStr),
		now.Location(),
	)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err,
			"invalid schedule: expected date YYYY-MM-DD and time HH:MM")
	}
	if !combined.After(now) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation,
			"schedule must be strictly in the future")
	}
	return combined, combined.Add(ExpiryGrace), nil
}

func toDTO(p models.Pickup) PickupDTO {
	return PickupDTO{
		ID:            p.ID,
		UserID:        p.UserID,
		MedicineID:    p.MedicineID,
		SiteID:        p.SiteID,
		Quantity:      p.Quantity,
		BatchCode:     p.BatchCode,
		State:         p.State,
		StateName:     p.State.String(),
		ScheduledDate: p.ScheduledAt.Format(scheduleDateLayout),
		ScheduledTime: p.ScheduledAt.Format(scheduleTimeLayout),
		ScheduledAt:   p.ScheduledAt,
		ExpiresAt:     p.ExpiresAt,
		Notified:      p.Notified,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toDTOs(rows []models.Pickup) []PickupDTO {
	out := make([]PickupDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
