package listeners

import (
	"context"
	"strconv"
	"testing"
	"time"

	"CityWatch/internal/models"
	"CityWatch/pkg/search"
	"CityWatch/pkg/sse"
	"CityWatch/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	sig      *util.Signals
	notifier *Notifier
	engine   search.Engine
}

func newFixture(t *testing.T) *fixture {
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
	engine, err := search.New(search.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	sig := util.NewSignals()
	n := NewNotifier(db, hub, nil)
	Init(sig, n, engine, nil)
	return &fixture{db: db, sig: sig, notifier: n, engine: engine}
}

func (f *fixture) user(t *testing.T, email, role string) *models.User {
	t.Helper()
	u, err := models.CreateUser(f.db, email, "secret123", email, role)
	require.NoError(t, err)
	return u
}

func (f *fixture) inbox(t *testing.T, u *models.User) []models.Notification {
	t.Helper()
	items, err := models.ListNotifications(f.db, u.IDString(), models.NotificationQuery{})
	require.NoError(t, err)
	return items
}

func TestNotifyUsersSkipsEmptyAndDuplicates(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com", models.RoleStaff)

	items, err := f.notifier.NotifyUsers([]string{"", u.IDString(), u.IDString()}, Notice{Title: "hi", Kind: "test"})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = f.notifier.NotifyUsers([]string{""}, Notice{Title: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNotifyRolesExcludesActorAndDisabledUsers(t *testing.T) {
	f := newFixture(t)
	actor := f.user(t, "actor@example.com", models.RoleOfficer)
	peer := f.user(t, "peer@example.com", models.RoleOfficer)
	off := f.user(t, "off@example.com", models.RoleOfficer)
	f.user(t, "staff@example.com", models.RoleStaff)
	require.NoError(t, f.db.Model(off).Update("status", models.UserStatusDisabled).Error)

	items, err := f.notifier.NotifyRoles([]string{models.RoleOfficer}, actor.IDString(), Notice{Title: "x", Kind: "test"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, peer.IDString(), items[0].UserID)
}

func TestReplayReturnsNotificationsAfterLastEventID(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com", models.RoleStaff)
	var ids []uint
	for i := 0; i < 3; i++ {
		items, err := f.notifier.NotifyUsers([]string{u.IDString()}, Notice{Title: strconv.Itoa(i), Kind: "test"})
		require.NoError(t, err)
		ids = append(ids, items[0].ID)
	}

	replay := f.notifier.Replay(u.IDString())
	assert.Nil(t, replay(""))
	events := replay(strconv.FormatUint(uint64(ids[0]), 10))
	require.Len(t, events, 2)
	assert.Equal(t, EventNotification, events[0].Type)
	assert.Equal(t, strconv.FormatUint(uint64(ids[1]), 10), events[0].ID)
}

func TestCrimeSignals(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin@example.com", models.RoleAdmin)
	officer := f.user(t, "officer@example.com", models.RoleOfficer)
	citizen := f.user(t, "citizen@example.com", models.RoleCitizen)

	crime := &models.Crime{Title: "Theft", Description: "wallet", ReportedBy: citizen.IDString()}
	require.NoError(t, f.db.Create(crime).Error)
	f.sig.Emit(models.SigCrimeReported, crime, citizen)
	assert.Len(t, f.inbox(t, admin), 1)
	assert.Len(t, f.inbox(t, officer), 1)
	assert.Empty(t, f.inbox(t, citizen))

	crime.AssignedTo = officer.IDString()
	f.sig.Emit(models.SigCrimeAssigned, crime, admin)
	assert.Len(t, f.inbox(t, officer), 2)
	assert.Len(t, f.inbox(t, citizen), 1)

	crime.Status = models.CrimeResolved
	f.sig.Emit(models.SigCrimeStatusChanged, crime, officer, models.CrimeUnderReview)
	inbox := f.inbox(t, citizen)
	require.Len(t, inbox, 2)
	assert.Equal(t, models.SigCrimeStatusChanged, inbox[0].Kind)

	// 报案人自己改状态不通知自己
	f.sig.Emit(models.SigCrimeStatusChanged, crime, citizen, models.CrimeResolved)
	assert.Len(t, f.inbox(t, citizen), 2)
}

func TestAnonymousCrimeAssignmentOnlyNotifiesAssignee(t *testing.T) {
	f := newFixture(t)
	officer := f.user(t, "officer@example.com", models.RoleOfficer)

	crime := &models.Crime{Title: "Noise", Description: "late", Anonymous: true, AssignedTo: officer.IDString()}
	require.NoError(t, f.db.Create(crime).Error)
	f.sig.Emit(models.SigCrimeAssigned, crime, (*models.User)(nil))

	var n int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestUserSignals(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin@example.com", models.RoleAdmin)
	pa, err := models.CreatePendingAccount(f.db, &models.RegisterForm{
		Email: "new@example.com", Password: "secret123", DisplayName: "New", Role: models.RoleStaff,
	})
	require.NoError(t, err)

	f.sig.Emit(models.SigAccountRequested, pa)
	inbox := f.inbox(t, admin)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.SigAccountRequested, inbox[0].Kind)
	assert.Equal(t, pa.ID, inbox[0].ResourceID)

	user, _, err := models.ApprovePendingAccount(f.db, pa.ID, admin.IDString())
	require.NoError(t, err)
	f.sig.Emit(models.SigAccountApproved, user, admin)
	assert.Len(t, f.inbox(t, user), 1)
}

func TestSearchListenerKeepsIndexInSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	crime := &models.Crime{Title: "Arson at depot", Description: "fire"}
	require.NoError(t, f.db.Create(crime).Error)
	f.sig.Emit(models.SigRecordChanged, &models.RecordEvent{Resource: models.ResCrimes, Action: models.ActionCreate, ID: crime.ID, Record: crime})

	res, err := f.engine.Search(ctx, search.Request{Keyword: "arson"})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, search.DocID(search.TypeCrime, crime.ID), res.Hits[0].ID)

	// 不可检索的资源被忽略
	f.sig.Emit(models.SigRecordChanged, &models.RecordEvent{Resource: models.ResAssets, Action: models.ActionCreate, ID: 1, Record: &models.Asset{ID: 1, Name: "arson kit"}})
	res, err = f.engine.Search(ctx, search.Request{Keyword: "arson"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)

	f.sig.Emit(models.SigRecordChanged, &models.RecordEvent{Resource: models.ResCrimes, Action: models.ActionDelete, ID: crime.ID})
	res, err = f.engine.Search(ctx, search.Request{Keyword: "arson"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Total)
}

func TestReindexAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.Crime{Title: "Pickpocket", Description: "market"}).Error)
	require.NoError(t, f.db.Create(&models.Incident{Title: "Market brawl"}).Error)
	require.NoError(t, f.db.Create(&models.Criminal{FullName: "Jo Market"}).Error)

	n, err := ReindexAll(ctx, f.db, f.engine)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := f.engine.Search(ctx, search.Request{Keyword: "market"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)

	res, err = f.engine.Search(ctx, search.Request{Keyword: "market", Types: []string{search.TypeIncident}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
}
