package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cleanzone-api/clock"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
	"cleanzone-api/testutil"
)

var baseTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []models.StateChangeMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg models.StateChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// statuses returns the published statuses for one entity kind, in order.
func (p *recordingPublisher) statuses(entity string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.messages {
		if m.Entity == entity {
			out = append(out, m.Status)
		}
	}
	return out
}

type fakeNotifier struct {
	mu        sync.Mutex
	transfers []uint32
	cancelled [][]string
}

func (n *fakeNotifier) TransferRequested(_ *models.Event, _ *models.User, to *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transfers = append(n.transfers, to.ID)
}

func (n *fakeNotifier) EventCancelled(_ *models.Event, recipients []models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	emails := make([]string, 0, len(recipients))
	for _, u := range recipients {
		emails = append(emails, u.Email)
	}
	n.cancelled = append(n.cancelled, emails)
}

// recordingChat remembers which chat streams were revoked, as "event/user" or "event/*".
type recordingChat struct {
	mu      sync.Mutex
	revoked []string
}

func (r *recordingChat) Disconnect(eventID, userID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, fmt.Sprintf("%d/%d", eventID, userID))
}

func (r *recordingChat) CloseRoom(eventID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, fmt.Sprintf("%d/*", eventID))
}

func (r *recordingChat) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.revoked...)
}

type fixture struct {
	store     *repositories.Store
	clock     *clock.Manual
	publisher *recordingPublisher
	notifier  *fakeNotifier
	chat      *recordingChat
	events    *EventService
	zones     *ZoneService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewStore(testutil.NewDB(t))
	clk := clock.NewManual(baseTime)
	publisher := &recordingPublisher{}
	notifier := &fakeNotifier{}
	chat := &recordingChat{}
	log := quietLogger()

	events := NewEventService(store, clk, publisher, notifier, chat, 48*time.Hour, log)
	events.dispatch = func(f func()) { f() }

	return &fixture{
		store:     store,
		clock:     clk,
		publisher: publisher,
		notifier:  notifier,
		chat:      chat,
		events:    events,
		zones:     NewZoneService(store, clk, publisher, log),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) zone(t *testing.T, reporter *models.User) *models.Zone {
	t.Helper()
	z, err := f.zones.Report(context.Background(), reporter.ID, models.CreateZoneRequest{
		Latitude:     48.8566,
		Longitude:    2.3522,
		RadiusMeters: 100,
		Description:  "Plastic bags along the canal",
	})
	require.NoError(t, err)
	return z
}

func (f *fixture) event(t *testing.T, organizer *models.User, zone *models.Zone, capacity *int) *models.Event {
	t.Helper()
	e, err := f.events.Create(context.Background(), organizer.ID, models.CreateEventRequest{
		Title:           "Canal cleanup",
		Description:     "Bring gloves",
		StartAt:         f.clock.Now().Add(24 * time.Hour),
		ZoneID:          zone.ID,
		MaxParticipants: capacity,
	})
	require.NoError(t, err)
	return e
}

func intPtr(v int) *int { return &v }
