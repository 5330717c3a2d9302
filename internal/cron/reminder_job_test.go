package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

type fakeReminderStore struct {
	due       []models.Pickup
	listFrom  time.Time
	listTo    time.Time
	notified  []string
	markCount int64
}

func (f *fakeReminderStore) ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.Pickup, error) {
	f.listFrom = from
	f.listTo = to
	return f.due, nil
}

func (f *fakeReminderStore) MarkBatchNotified(ctx context.Context, batchCode string) (int64, error) {
	f.notified = append(f.notified, batchCode)
	return f.markCount, nil
}

type fakeUserReader struct {
	users map[uuid.UUID]models.User
}

func (f *fakeUserReader) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return f.users[id], nil
}

type fakeMedicineReader struct {
	medicines map[uuid.UUID]models.Medicine
}

func (f *fakeMedicineReader) FindByID(ctx context.Context, id uuid.UUID) (models.Medicine, error) {
	return f.medicines[id], nil
}

type fakeSiteReader struct {
	sites map[uuid.UUID]models.Site
}

func (f *fakeSiteReader) FindByID(ctx context.Context, id uuid.UUID) (models.Site, error) {
	return f.sites[id], nil
}

type fakeSender struct {
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	phone string
	body  string
}

func (f *fakeSender) SendText(ctx context.Context, phone, body string) bool {
	if f.fail {
		return false
	}
	f.sent = append(f.sent, sentMessage{phone: phone, body: body})
	return true
}

func newReminderJobTest(t *testing.T, store *fakeReminderStore, users *fakeUserReader, medicines *fakeMedicineReader, sites *fakeSiteReader, sender *fakeSender, now time.Time) *ReminderJob {
	t.Helper()
	job, err := NewReminderJob(ReminderJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Pickups:   store,
		Users:     users,
		Medicines: medicines,
		Sites:     sites,
		Sender:    sender,
		Lead:      time.Hour,
		Window:    5 * time.Minute,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewReminderJob: %v", err)
	}
	return job
}

func TestReminderJobCombinesBatchIntoSingleMessage(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	scheduled := now.Add(time.Hour)
	userID := uuid.New()
	siteID := uuid.New()
	medA := uuid.New()
	medB := uuid.New()

	store := &fakeReminderStore{
		due: []models.Pickup{
			{ID: uuid.New(), UserID: userID, MedicineID: medA, SiteID: siteID, BatchCode: "ABC123", ScheduledAt: scheduled},
			{ID: uuid.New(), UserID: userID, MedicineID: medB, SiteID: siteID, BatchCode: "ABC123", ScheduledAt: scheduled},
		},
		markCount: 2,
	}
	users := &fakeUserReader{users: map[uuid.UUID]models.User{
		userID: {ID: userID, Phone: "+51 987-654-321", FullName: "Maria"},
	}}
	medicines := &fakeMedicineReader{medicines: map[uuid.UUID]models.Medicine{
		medA: {ID: medA, Name: "Paracetamol"},
		medB: {ID: medB, Name: "Ibuprofeno"},
	}}
	sites := &fakeSiteReader{sites: map[uuid.UUID]models.Site{
		siteID: {ID: siteID, Name: "Sede Central"},
	}}
	sender := &fakeSender{}

	job := newReminderJobTest(t, store, users, medicines, sites, sender, now)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := now.Add(time.Hour).Add(-5 * time.Minute); !store.listFrom.Equal(got) {
		t.Fatalf("window start = %s, want %s", store.listFrom, got)
	}
	if got := now.Add(time.Hour).Add(5 * time.Minute); !store.listTo.Equal(got) {
		t.Fatalf("window end = %s, want %s", store.listTo, got)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected a single combined message, got %d", len(sender.sent))
	}
	if sender.sent[0].phone != "51987654321" {
		t.Fatalf("unexpected phone: %s", sender.sent[0].phone)
	}
	body := sender.sent[0].body
	if !strings.Contains(body, "Paracetamol") || !strings.Contains(body, "Ibuprofeno") {
		t.Fatalf("message missing medicine names: %s", body)
	}
	if !strings.Contains(body, "Sede Central") {
		t.Fatalf("message missing site name: %s", body)
	}
	if len(store.notified) != 1 || store.notified[0] != "ABC123" {
		t.Fatalf("expected batch ABC123 marked notified, got %v", store.notified)
	}
}

func TestReminderJobSendsOneMessagePerBatch(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	scheduled := now.Add(time.Hour)
	userID := uuid.New()
	siteID := uuid.New()
	medID := uuid.New()

	store := &fakeReminderStore{
		due: []models.Pickup{
			{ID: uuid.New(), UserID: userID, MedicineID: medID, SiteID: siteID, BatchCode: "AAA111", ScheduledAt: scheduled},
			{ID: uuid.New(), UserID: userID, MedicineID: medID, SiteID: siteID, BatchCode: "BBB222", ScheduledAt: scheduled},
		},
		markCount: 1,
	}
	users := &fakeUserReader{users: map[uuid.UUID]models.User{
		userID: {ID: userID, Phone: "51987654321"},
	}}
	medicines := &fakeMedicineReader{medicines: map[uuid.UUID]models.Medicine{
		medID: {ID: medID, Name: "Amoxicilina"},
	}}
	sites := &fakeSiteReader{sites: map[uuid.UUID]models.Site{
		siteID: {ID: siteID, Name: "Sede Norte"},
	}}
	sender := &fakeSender{}

	job := newReminderJobTest(t, store, users, medicines, sites, sender, now)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected one message per batch, got %d", len(sender.sent))
	}
	if len(store.notified) != 2 {
		t.Fatalf("expected both batches marked, got %v", store.notified)
	}
}

func TestReminderJobKeepsNotifiedFalseWhenDeliveryFails(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := uuid.New()
	siteID := uuid.New()
	medID := uuid.New()

	store := &fakeReminderStore{
		due: []models.Pickup{
			{ID: uuid.New(), UserID: userID, MedicineID: medID, SiteID: siteID, BatchCode: "CCC333", ScheduledAt: now.Add(time.Hour)},
		},
	}
	users := &fakeUserReader{users: map[uuid.UUID]models.User{
		userID: {ID: userID, Phone: "51987654321"},
	}}
	medicines := &fakeMedicineReader{medicines: map[uuid.UUID]models.Medicine{
		medID: {ID: medID, Name: "Loratadina"},
	}}
	sites := &fakeSiteReader{sites: map[uuid.UUID]models.Site{
		siteID: {ID: siteID, Name: "Sede Sur"},
	}}
	sender := &fakeSender{fail: true}

	job := newReminderJobTest(t, store, users, medicines, sites, sender, now)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.notified) != 0 {
		t.Fatalf("batch must stay unnotified after failed delivery, got %v", store.notified)
	}
}

func TestReminderJobSkipsUnusablePhone(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := uuid.New()
	siteID := uuid.New()
	medID := uuid.New()

	store := &fakeReminderStore{
		due: []models.Pickup{
			{ID: uuid.New(), UserID: userID, MedicineID: medID, SiteID: siteID, BatchCode: "DDD444", ScheduledAt: now.Add(time.Hour)},
		},
	}
	users := &fakeUserReader{users: map[uuid.UUID]models.User{
		userID: {ID: userID, Phone: "12345"},
	}}
	medicines := &fakeMedicineReader{medicines: map[uuid.UUID]models.Medicine{
		medID: {ID: medID, Name: "Loratadina"},
	}}
	sites := &fakeSiteReader{sites: map[uuid.UUID]models.Site{
		siteID: {ID: siteID, Name: "Sede Sur"},
	}}
	sender := &fakeSender{}

	job := newReminderJobTest(t, store, users, medicines, sites, sender, now)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends for short phone, got %d", len(sender.sent))
	}
	if len(store.notified) != 0 {
		t.Fatalf("batch must stay unnotified when phone is unusable, got %v", store.notified)
	}
}
