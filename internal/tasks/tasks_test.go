package tasks

import (
	"context"
	"testing"
	"time"

	"CityWatch/internal/listeners"
	"CityWatch/internal/models"
	"CityWatch/pkg/config"
	"CityWatch/pkg/metrics"
	"CityWatch/pkg/scheduler"
	"CityWatch/pkg/sse"
	"CityWatch/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newRunner(t *testing.T) (*Runner, *gorm.DB) {
	t.Helper()
	models.PasswordCost = bcrypt.MinCost
	db, err := util.InitDatabase("sqlite", "", nil)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	hub := sse.NewHub(time.Minute)
	t.Cleanup(func() { _ = hub.Close() })
	m := metrics.NewMetrics()
	r := NewRunner(db, config.Default(), listeners.NewNotifier(db, hub, m), m)
	return r, db
}

func TestRemindShiftsOnlyOnce(t *testing.T) {
	r, db := newRunner(t)
	now := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	staff, err := models.CreateUser(db, "staff@example.com", "secret123", "Staff", models.RoleStaff)
	require.NoError(t, err)
	soon := &models.StaffSchedule{StaffID: staff.IDString(), Shift: "morning", StartTime: now.Add(30 * time.Minute), EndTime: now.Add(8 * time.Hour)}
	later := &models.StaffSchedule{StaffID: staff.IDString(), Shift: "night", StartTime: now.Add(12 * time.Hour), EndTime: now.Add(20 * time.Hour)}
	require.NoError(t, db.Create(soon).Error)
	require.NoError(t, db.Create(later).Error)

	ctx := context.Background()
	require.NoError(t, r.RemindShifts(ctx))
	require.NoError(t, r.RemindShifts(ctx))

	items, err := models.ListNotifications(db, staff.IDString(), models.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "schedule.reminder", items[0].Kind)
	assert.Equal(t, soon.ID, items[0].ResourceID)

	var got models.StaffSchedule
	require.NoError(t, db.First(&got, later.ID).Error)
	assert.Nil(t, got.RemindedAt)
}

func TestRemindShiftsRetriesWhenNotificationFails(t *testing.T) {
	r, db := newRunner(t)
	now := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	sched := &models.StaffSchedule{StaffID: "9", Shift: "morning", StartTime: now.Add(30 * time.Minute), EndTime: now.Add(8 * time.Hour)}
	require.NoError(t, db.Create(sched).Error)

	require.NoError(t, db.Migrator().DropTable(&models.Notification{}))
	require.NoError(t, r.RemindShifts(context.Background()))
	var got models.StaffSchedule
	require.NoError(t, db.First(&got, sched.ID).Error)
	assert.Nil(t, got.RemindedAt)

	require.NoError(t, db.AutoMigrate(&models.Notification{}))
	require.NoError(t, r.RemindShifts(context.Background()))
	require.NoError(t, db.First(&got, sched.ID).Error)
	assert.NotNil(t, got.RemindedAt)
	items, err := models.ListNotifications(db, "9", models.NotificationQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestExpirePendingAccounts(t *testing.T) {
	r, db := newRunner(t)
	pa, err := models.CreatePendingAccount(db, &models.RegisterForm{
		Email: "late@example.com", Password: "secret123", DisplayName: "Late", Role: models.RoleStaff,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.ExpirePendingAccounts(ctx))
	got, err := models.GetPendingAccount(db, pa.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusPending, got.Status)

	r.now = func() time.Time { return time.Now().AddDate(0, 0, r.cfg.PendingAccountTTLDays+1) }
	require.NoError(t, r.ExpirePendingAccounts(ctx))
	got, err = models.GetPendingAccount(db, pa.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusExpired, got.Status)
}

func TestPurgeNotificationsKeepsUnread(t *testing.T) {
	r, db := newRunner(t)
	require.NoError(t, models.CreateNotifications(db, []*models.Notification{
		{UserID: "1", Title: "read", Read: true},
		{UserID: "1", Title: "unread"},
	}))

	r.now = func() time.Time { return time.Now().AddDate(0, 0, r.cfg.NotificationRetentionDays+1) }
	require.NoError(t, r.PurgeNotifications(context.Background()))

	items, err := models.ListNotifications(db, "1", models.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "unread", items[0].Title)
}

func TestRefreshGaugesAndRegister(t *testing.T) {
	r, _ := newRunner(t)
	require.NoError(t, r.RefreshGauges(context.Background()))

	cr := scheduler.NewCron(time.UTC, time.Second)
	defer cr.Stop()
	require.NoError(t, r.Register(cr))
	entries := cr.Entries()
	for _, name := range []string{"shift-reminders", "business-gauges", "expire-pending-accounts", "purge-notifications"} {
		assert.Contains(t, entries, name)
	}
	assert.NotContains(t, entries, "backup")
}
