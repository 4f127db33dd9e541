package models

import (
	"net/http"
	"testing"
	"time"

	"CityWatch/pkg/errors"
	"CityWatch/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	PasswordCost = bcrypt.MinCost
	db, err := util.InitDatabase("sqlite", "", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func mustUser(t *testing.T, db *gorm.DB, email, role string) *User {
	t.Helper()
	u, err := CreateUser(db, email, "secret123", email, role)
	require.NoError(t, err)
	return u
}

func TestPermissionMatrix(t *testing.T) {
	cases := []struct {
		role, resource, action string
		want                   Grant
	}{
		{RoleAdmin, ResUsers, ActionDelete, GrantAll},
		{RoleOfficer, ResUsers, ActionList, GrantNone},
		{RoleCitizen, ResCrimes, ActionList, GrantOwn},
		{RoleCitizen, ResCrimes, ActionCreate, GrantAll},
		{RoleCitizen, ResCrimes, ActionDelete, GrantNone},
		{RoleStaff, ResCrimes, ActionUpdate, GrantNone},
		{RoleOfficer, ResPatrolLogs, ActionUpdate, GrantOwn},
		{RoleStaff, ResPatrolLogs, ActionList, GrantNone},
		{RoleStaff, ResAssets, ActionCreate, GrantAll},
		{RoleOfficer, ResAssets, ActionCreate, GrantNone},
		{RoleCitizen, ResFeedback, ActionCreate, GrantAll},
		{RoleCitizen, ResFeedback, ActionList, GrantNone},
		{RoleStaff, ResStaffSchedules, ActionList, GrantOwn},
		{RoleStaff, ResStaffSchedules, ActionCreate, GrantNone},
		{RoleOfficer, ResSearch, ActionRead, GrantAll},
		{RoleStaff, ResSearch, ActionRead, GrantNone},
		{RoleAdmin, "unknown", ActionRead, GrantNone},
		{"ghost", ResCrimes, ActionList, GrantNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Access(tc.role, tc.resource, tc.action), "%s %s %s", tc.role, tc.resource, tc.action)
	}
	assert.True(t, Can(RoleStaff, ResIncidents, ActionList))
	assert.False(t, Can(RoleCitizen, ResIncidents, ActionList))
	assert.ElementsMatch(t, []string{RoleAdmin, RoleOfficer, RoleStaff}, RolesWithFullAccess(ResCrimes, ActionList))
	assert.Equal(t, "role:officer", RoleGroup(RoleOfficer))
}

func TestCreateUserNormalizesAndRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "  Alice@Example.COM ", RoleStaff)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("nope"))

	_, err := CreateUser(db, "alice@example.com", "secret123", "dup", RoleStaff)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	_, err = CreateUser(db, "bob@example.com", "123", "short", RoleStaff)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	_, err = CreateUser(db, "carol@example.com", "secret123", "bad role", "mayor")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	got, err := GetUserByEmail(db, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestActiveUserWithRole(t *testing.T) {
	db := newTestDB(t)
	officer := mustUser(t, db, "o@x.io", RoleOfficer)
	staff := mustUser(t, db, "s@x.io", RoleStaff)

	got, err := ActiveUserWithRole(db, officer.IDString(), RoleOfficer)
	require.NoError(t, err)
	assert.Equal(t, officer.ID, got.ID)

	_, err = ActiveUserWithRole(db, staff.IDString(), RoleOfficer)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
	_, err = ActiveUserWithRole(db, "999", RoleOfficer)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
	_, err = ActiveUserWithRole(db, "abc")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	require.NoError(t, db.Model(officer).Update("status", UserStatusDisabled).Error)
	_, err = ActiveUserWithRole(db, officer.IDString(), RoleOfficer)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	ids, err := ActiveUserIDsByRoles(db, RoleOfficer, RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, []string{staff.IDString()}, ids)
}

func TestEnsureAdmin(t *testing.T) {
	db := newTestDB(t)
	u, created, err := EnsureAdmin(db, "root@x.io", "secret123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, RoleAdmin, u.Role)

	_, created, err = EnsureAdmin(db, "other@x.io", "secret123")
	require.NoError(t, err)
	assert.False(t, created)

	_, created, err = EnsureAdmin(newTestDB(t), "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPendingAccountApproveOfficer(t *testing.T) {
	db := newTestDB(t)
	pa, err := CreatePendingAccount(db, &RegisterForm{
		Email: "Cop@X.io", Password: "secret123", DisplayName: "Cop", Role: RoleOfficer, BadgeNumber: "B-77",
	})
	require.NoError(t, err)
	assert.Equal(t, PendingStatusPending, pa.Status)
	assert.Equal(t, "cop@x.io", pa.Email)

	_, err = CreatePendingAccount(db, &RegisterForm{Email: "cop@x.io", Password: "secret123", DisplayName: "again"})
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	user, reviewed, err := ApprovePendingAccount(db, pa.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, RoleOfficer, user.Role)
	assert.True(t, user.CheckPassword("secret123"))
	assert.Equal(t, PendingStatusApproved, reviewed.Status)
	assert.Equal(t, "1", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.UserID)
	assert.Equal(t, user.ID, *reviewed.UserID)

	var officer Officer
	require.NoError(t, db.Where("user_id = ?", user.IDString()).First(&officer).Error)
	assert.Equal(t, "B-77", officer.BadgeNumber)

	_, _, err = ApprovePendingAccount(db, pa.ID, "1")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
	_, _, err = ApprovePendingAccount(db, 999, "1")
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(err))

	_, err = CreatePendingAccount(db, &RegisterForm{Email: "cop@x.io", Password: "secret123", DisplayName: "taken"})
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
}

func TestPendingAccountApproveRollsBackOnBadgeClash(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&Officer{BadgeNumber: "B-1", FullName: "Existing"}).Error)
	pa, err := CreatePendingAccount(db, &RegisterForm{
		Email: "new@x.io", Password: "secret123", DisplayName: "New", Role: RoleOfficer, BadgeNumber: "B-1",
	})
	require.NoError(t, err)

	_, _, err = ApprovePendingAccount(db, pa.ID, "1")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	taken, err := EmailTaken(db, "new@x.io", 0)
	require.NoError(t, err)
	assert.False(t, taken)
	got, err := GetPendingAccount(db, pa.ID)
	require.NoError(t, err)
	assert.Equal(t, PendingStatusPending, got.Status)
}

func TestPendingAccountRejectAndExpire(t *testing.T) {
	db := newTestDB(t)
	a, err := CreatePendingAccount(db, &RegisterForm{Email: "a@x.io", Password: "secret123", DisplayName: "A", Role: RoleStaff})
	require.NoError(t, err)
	b, err := CreatePendingAccount(db, &RegisterForm{Email: "b@x.io", Password: "secret123", DisplayName: "B", Role: RoleStaff})
	require.NoError(t, err)

	rejected, err := RejectPendingAccount(db, a.ID, "1", "no vacancy")
	require.NoError(t, err)
	assert.Equal(t, PendingStatusRejected, rejected.Status)
	assert.Equal(t, "no vacancy", rejected.Note)
	_, err = RejectPendingAccount(db, a.ID, "1", "")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	n, err := ExpirePendingAccounts(db, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err := GetPendingAccount(db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, PendingStatusExpired, got.Status)
}

func TestNotifications(t *testing.T) {
	db := newTestDB(t)
	var items []*Notification
	for i := 0; i < 5; i++ {
		items = append(items, &Notification{UserID: "7", Title: "t", Kind: "test"})
	}
	items = append(items, &Notification{UserID: "8", Title: "other"})
	require.NoError(t, CreateNotifications(db, items))

	all, err := ListNotifications(db, "7", NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Greater(t, all[0].ID, all[4].ID)

	latest, err := ListNotifications(db, "7", NotificationQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, all[0].ID, latest[0].ID)
	assert.Equal(t, all[1].ID, latest[1].ID)

	// 游标之后按升序
	since, err := ListNotifications(db, "7", NotificationQuery{SinceID: all[2].ID})
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, all[1].ID, since[0].ID)
	assert.Equal(t, all[0].ID, since[1].ID)

	require.NoError(t, MarkNotificationRead(db, "7", all[0].ID))
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(MarkNotificationRead(db, "8", all[1].ID)))
	n, err := UnreadCount(db, "7")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	unread, err := ListNotifications(db, "7", NotificationQuery{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 4)

	updated, err := MarkAllNotificationsRead(db, "7")
	require.NoError(t, err)
	assert.EqualValues(t, 4, updated)

	require.NoError(t, DeleteNotification(db, "7", all[1].ID))
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(DeleteNotification(db, "7", all[1].ID)))

	purged, err := PurgeNotifications(db, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 4, purged)
	n, err = UnreadCount(db, "8")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestShiftReminders(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	soon := &StaffSchedule{StaffID: "3", Shift: "morning", StartTime: now.Add(30 * time.Minute), EndTime: now.Add(8 * time.Hour)}
	later := &StaffSchedule{StaffID: "3", Shift: "night", StartTime: now.Add(5 * time.Hour), EndTime: now.Add(12 * time.Hour)}
	past := &StaffSchedule{StaffID: "3", Shift: "night", StartTime: now.Add(-10 * time.Hour), EndTime: now.Add(-2 * time.Hour)}
	require.NoError(t, db.Create([]*StaffSchedule{soon, later, past}).Error)

	due, err := DueShiftReminders(db, now, time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)

	require.NoError(t, MarkReminded(db, soon.ID, now))
	due, err = DueShiftReminders(db, now, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)

	upcoming, err := UpcomingSchedules(db, "3", now, 10)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, soon.ID, upcoming[0].ID)
}

func TestDashboardStats(t *testing.T) {
	db := newTestDB(t)
	mustUser(t, db, "a@x.io", RoleAdmin)
	require.NoError(t, db.Create(&Crime{Title: "a", Description: "d"}).Error)
	require.NoError(t, db.Create(&Crime{Title: "b", Description: "d", Status: CrimeResolved}).Error)
	require.NoError(t, db.Create(&Incident{Title: "i"}).Error)
	require.NoError(t, db.Create(&Incident{Title: "j", Status: IncidentClosed}).Error)
	require.NoError(t, db.Create(&Asset{Name: "car", SerialNumber: "S1"}).Error)
	require.NoError(t, db.Create(&Feedback{Subject: "s", Message: "m"}).Error)

	stats, err := GetDashboardStats(db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Totals[ResUsers])
	assert.EqualValues(t, 2, stats.Totals[ResCrimes])
	assert.Equal(t, map[string]int64{CrimeSubmitted: 1, CrimeResolved: 1}, stats.CrimesByStatus)
	assert.Equal(t, map[string]int64{AssetAvailable: 1}, stats.AssetsByStatus)
	assert.EqualValues(t, 1, stats.OpenIncidents)
	assert.EqualValues(t, 1, stats.NewFeedback)
	assert.EqualValues(t, 0, stats.PendingAccounts)
}

func TestAuthTokenRoundTrip(t *testing.T) {
	db := newTestDB(t)
	u := mustUser(t, db, "t@x.io", RoleOfficer)
	auth := NewAuth(db, "0123456789abcdef", time.Hour)

	token, expires, err := auth.BuildAuthToken(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	id, err := auth.ParseAuthToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	other := NewAuth(db, "another-secret-value", time.Hour)
	_, err = other.ParseAuthToken(token)
	assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatus(err))
	_, err = auth.ParseAuthToken("garbage")
	assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatus(err))
}
