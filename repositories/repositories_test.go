package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
	"cleanzone-api/testutil"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func seedEvent(t *testing.T, store *Store, startAt time.Time) (*models.User, *models.Event) {
	t.Helper()
	ctx := context.Background()

	user := &models.User{Name: "Olga", Email: "olga@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, store.Users.Create(ctx, user))

	zone := &models.Zone{
		Latitude: 48.85, Longitude: 2.35, RadiusMeters: 60, Description: "Glass on the quay",
		ReporterID: user.ID, Status: models.ZoneStatusCleaningScheduled, Severity: models.SeverityLow,
	}
	require.NoError(t, store.Zones.Create(ctx, zone))

	event := &models.Event{
		Title: "Quay cleanup", Description: "Sturdy shoes", StartAt: startAt,
		ZoneID: zone.ID, OrganizerID: user.ID, Status: models.EventStatusPlanned,
	}
	require.NoError(t, store.Events.Create(ctx, event))
	return user, event
}

func TestTileCacheRepository_LastWriteWins(t *testing.T) {
	repo := NewTileCacheRepository(testutil.NewDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "3/1/2")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	require.NoError(t, repo.Put(ctx, &models.TileCacheEntry{Key: "3/1/2", Data: []byte("old"), ContentType: "image/png", FetchedAt: now}))
	require.NoError(t, repo.Put(ctx, &models.TileCacheEntry{Key: "3/1/2", Data: []byte("new"), ContentType: "image/png", FetchedAt: now.Add(time.Hour)}))

	entry, err := repo.Get(ctx, "3/1/2")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), entry.Data)
	assert.True(t, entry.FetchedAt.Equal(now.Add(time.Hour)))
}

func TestEventRepository_ChatPositionsIncrease(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	ctx := context.Background()
	_, event := seedEvent(t, store, now.Add(time.Hour))

	for want := uint32(1); want <= 3; want++ {
		got, err := store.Events.NextChatPosition(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := store.Events.NextChatPosition(ctx, event.ID+100)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestEventRepository_Participants(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	ctx := context.Background()
	_, event := seedEvent(t, store, now.Add(time.Hour))

	vic := &models.User{Name: "Vic", Email: "vic@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, store.Users.Create(ctx, vic))

	require.NoError(t, store.Events.AddParticipant(ctx, event.ID, vic.ID))
	err := store.Events.AddParticipant(ctx, event.ID, vic.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	loaded, err := store.Events.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{vic.ID}, loaded.ParticipantIDs())

	require.NoError(t, store.Events.RemoveParticipant(ctx, event.ID, vic.ID))
	err = store.Events.RemoveParticipant(ctx, event.ID, vic.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestEventRepository_LifecycleQueries(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	ctx := context.Background()
	user, event := seedEvent(t, store, now.Add(time.Hour))

	active, err := store.Events.HasActiveForZone(ctx, event.ZoneID)
	require.NoError(t, err)
	assert.True(t, active)

	started, err := store.Events.ListStarted(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, started)

	started, err = store.Events.ListStarted(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, event.ID, started[0].ID)

	requested := now
	require.NoError(t, store.Events.Update(ctx, event.ID, map[string]interface{}{
		"pending_organizer_id":  user.ID,
		"transfer_request_time": requested,
	}))

	stale, err := store.Events.ListStaleTransfers(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = store.Events.ListStaleTransfers(ctx, now)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	require.NoError(t, store.Events.ClearTransfer(ctx, event.ID))
	loaded, err := store.Events.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, loaded.HasPendingTransfer())
	assert.Nil(t, loaded.TransferRequestTime)

	require.NoError(t, store.Events.Update(ctx, event.ID, map[string]interface{}{"status": models.EventStatusCancelled}))
	active, err = store.Events.HasActiveForZone(ctx, event.ZoneID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestAttendanceRepository_OnePerUser(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	ctx := context.Background()
	user, event := seedEvent(t, store, now)

	checkedIn, err := store.Attendance.Exists(ctx, event.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, checkedIn)

	require.NoError(t, store.Attendance.Create(ctx, &models.Attendance{EventID: event.ID, UserID: user.ID, CheckedInAt: now}))
	err = store.Attendance.Create(ctx, &models.Attendance{EventID: event.ID, UserID: user.ID, CheckedInAt: now.Add(time.Minute)})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	checkedIn, err = store.Attendance.Exists(ctx, event.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, checkedIn)

	list, err := store.Attendance.ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestZoneRepository_LockTouchesRow(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	ctx := context.Background()
	_, event := seedEvent(t, store, now)

	later := now.Add(time.Hour)
	require.NoError(t, store.Transaction(ctx, func(tx *Store) error {
		return tx.Zones.Lock(ctx, event.ZoneID, later)
	}))

	zone, err := store.Zones.FindByID(ctx, event.ZoneID)
	require.NoError(t, err)
	assert.True(t, zone.UpdatedAt.Equal(later))
}

func TestStore_TransactionRollsBack(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx *Store) error {
		u := &models.User{Name: "Ghost", Email: "ghost@example.com", Password: "x", Role: models.RoleUser}
		require.NoError(t, tx.Users.Create(ctx, u))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := store.Users.ExistsByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
