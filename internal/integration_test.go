package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"venue-booking-backend/config"
	"venue-booking-backend/internal/clock"
	"venue-booking-backend/internal/db"
	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/internal/model"
	"venue-booking-backend/internal/notification"
	"venue-booking-backend/internal/poller"
	"venue-booking-backend/internal/reminder"
	"venue-booking-backend/internal/store"
	"venue-booking-backend/pkg/logger"
	"venue-booking-backend/pkg/metrics"
)

// upstream serves one page of reservations whose statuses can be changed between polls.
type upstream struct {
	mu       sync.Mutex
	statuses map[string]string
}

func (u *upstream) set(id, status string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statuses[id] = status
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	items := []map[string]any{
		{"id": "r1", "placeId": "v1", "userId": "u1", "reservationTime": "2024-05-20T18:00:00Z", "numberOfPeople": 2, "status": u.statuses["r1"]},
		{"id": "r2", "placeId": "v1", "userId": "u2", "reservationTime": "2024-05-20T19:00:00Z", "numberOfPeople": 5, "status": u.statuses["r2"]},
	}
	json.NewEncoder(w).Encode(map[string]any{
		"code": 0,
		"data": map[string]any{"page": 1, "pageSize": 50, "total": len(items), "items": items},
	})
}

// TestReminderLifecycle drives a reservation from approval to cancellation through the
// poller and checks that the reminder and its record follow.
func TestReminderLifecycle(t *testing.T) {
	// --- Test Setup ---
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	// Only u1 can receive reminders.
	require.NoError(t, testDB.Create(&model.PushSubscription{
		Endpoint: "https://push.example.com/u1", P256DH: "key", Auth: "auth", UserID: "u1", CreatedAt: time.Now(),
	}).Error)

	up := &upstream{statuses: map[string]string{"r1": "APPROVED", "r2": "APPROVED"}}
	server := httptest.NewServer(up)
	defer server.Close()

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	kv := store.NewGormKV(testDB)
	scheduler := reminder.NewScheduler(notification.NewCalendar(testDB), kv, clock.Fixed(now), logger.NewNop(), m, reminder.Options{
		IOTimeout:   5 * time.Second,
		Concurrency: 1,
	})

	cfg := &config.PollerConfig{
		Reservations: config.RequestConfig{URL: server.URL, PageSize: 50},
	}
	service := poller.NewService(cfg, time.UTC, store.NewGormStore(testDB, logger.NewNop()), scheduler, logger.NewNop(), m)
	ctx := context.Background()

	// --- Step 1: first load creates a reminder for the subscribed user only ---
	service.PollOnce(ctx)
	scheduler.Wait()

	handle, found, err := kv.Get(ctx, reminder.Key("r1"))
	require.NoError(t, err)
	require.True(t, found, "approved reservation should have a reminder record")

	var event model.ReminderEvent
	require.NoError(t, testDB.Preload("Alarms").First(&event, "id = ?", handle).Error)
	assert.Equal(t, "r1", event.ReservationID)
	assert.Len(t, event.Alarms, 2)

	_, found, err = kv.Get(ctx, reminder.Key("r2"))
	require.NoError(t, err)
	assert.False(t, found, "user without subscription gets no reminder")

	// --- Step 2: an unchanged poll is a no-op ---
	service.PollOnce(ctx)
	scheduler.Wait()

	var count int64
	require.NoError(t, testDB.Model(&model.ReminderEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// --- Step 3: once u2 subscribes, the next unchanged poll creates the owed reminder ---
	require.NoError(t, testDB.Create(&model.PushSubscription{
		Endpoint: "https://push.example.com/u2", P256DH: "key", Auth: "auth", UserID: "u2", CreatedAt: time.Now(),
	}).Error)
	service.PollOnce(ctx)
	scheduler.Wait()

	_, found, err = kv.Get(ctx, reminder.Key("r2"))
	require.NoError(t, err)
	assert.True(t, found, "reminder should be created once permission is available")

	// --- Step 4: cancellation removes the reminder and its record ---
	up.set("r1", "CANCELLED")
	service.PollOnce(ctx)
	scheduler.Wait()

	_, found, err = kv.Get(ctx, reminder.Key("r1"))
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, testDB.Model(&model.ReminderEvent{}).Where("reservation_id = ?", "r1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, testDB.Model(&model.ReminderAlarm{}).Where("event_id = ?", handle).Count(&count).Error)
	assert.Zero(t, count)

	var stored model.Reservation
	require.NoError(t, testDB.First(&stored, "id = ?", "r1").Error)
	assert.Equal(t, "CANCELLED", stored.Status)

	// --- Step 5: a local cancellation survives an upstream that still reports APPROVED ---
	appStore := store.NewGormStore(testDB, logger.NewNop())
	before, err := appStore.GetReservation(ctx, "r2")
	require.NoError(t, err)
	after, err := lifecycle.Transition(before, lifecycle.StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, appStore.SaveReservationStatus(ctx, "r2", before.Status, after.Status))
	scheduler.Submit([]lifecycle.Reservation{before}, []lifecycle.Reservation{after})
	scheduler.Wait()

	service.PollOnce(ctx)
	scheduler.Wait()

	require.NoError(t, testDB.First(&stored, "id = ?", "r2").Error)
	assert.Equal(t, "CANCELLED", stored.Status)
	_, found, err = kv.Get(ctx, reminder.Key("r2"))
	require.NoError(t, err)
	assert.False(t, found)
}
