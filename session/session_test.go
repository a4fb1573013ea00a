package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsenfayyazi/billder/database"
	"github.com/mohsenfayyazi/billder/models"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.Open(database.Options{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	return NewGormStore(db)
}

func newTestManager(t *testing.T, now *time.Time) (*Manager, *GormStore, *Hub) {
	t.Helper()
	store := setupTestStore(t)
	hub := NewHub()
	m := NewManager(store, hub, "browser:abc", WithClock(func() time.Time { return *now }))
	return m, store, hub
}

func storedKeys(t *testing.T, store Store, ns string) map[string]string {
	t.Helper()
	values, err := store.Get(context.Background(), ns, allKeys...)
	require.NoError(t, err)
	return values
}

func TestSaveAndLoad(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()
	user := models.User{ID: 7, Email: "owner@example.com", FirstName: "Olive", Role: models.RoleBusinessOwner}

	require.NoError(t, m.Save(ctx, "tok-1", user, 24*time.Hour))

	values := storedKeys(t, store, "browser:abc")
	assert.Equal(t, "tok-1", values[KeyToken])
	assert.Equal(t, "1772442000000", values[KeyExpiry])

	s, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, user, s.User)

	token, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestSaveOverwritesExistingKeys(t *testing.T) {
	now := epoch
	m, _, _ := newTestManager(t, &now)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, "old", models.User{Role: models.RoleCustomer}, time.Hour))
	require.NoError(t, m.Save(ctx, "new", models.User{Role: models.RoleCustomer}, time.Hour))

	token, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", token)
}

func TestHomeRouteByRole(t *testing.T) {
	now := epoch
	ctx := context.Background()

	m, _, _ := newTestManager(t, &now)
	require.NoError(t, m.Save(ctx, "t", models.User{Role: models.RoleBusinessOwner}, time.Hour))
	route, err := m.HomeRoute(ctx)
	require.NoError(t, err)
	assert.Equal(t, RouteAdmin, route)

	m, _, _ = newTestManager(t, &now)
	require.NoError(t, m.Save(ctx, "t", models.User{Role: models.RoleCustomer}, time.Hour))
	route, err = m.HomeRoute(ctx)
	require.NoError(t, err)
	assert.Equal(t, RouteCustomer, route)
}

func TestHomeRouteUnknownRoleStays(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "t", models.User{Role: "auditor"}, time.Hour))

	route, err := m.HomeRoute(ctx)
	require.NoError(t, err)
	assert.Empty(t, route)
	assert.Len(t, storedKeys(t, store, m.Namespace()), 3)
}

func TestHomeRouteExpiredClearsAllKeys(t *testing.T) {
	now := epoch
	m, store, hub := newTestManager(t, &now)
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "t", models.User{Role: models.RoleBusinessOwner}, time.Hour))

	var events []Event
	hub.Subscribe(func(e Event) { events = append(events, e) })

	now = now.Add(time.Hour)
	route, err := m.HomeRoute(ctx)
	require.NoError(t, err)
	assert.Empty(t, route)
	assert.Empty(t, storedKeys(t, store, m.Namespace()))
	require.Len(t, events, 1)
	assert.Equal(t, EventCleared, events[0].Kind)
	assert.Equal(t, ReasonExpired, events[0].Reason)
}

func TestHomeRouteGarbledUserClears(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, m.Namespace(), map[string]string{
		KeyToken:  "t",
		KeyUser:   "{not json",
		KeyExpiry: "1772442000000",
	}))

	route, err := m.HomeRoute(ctx)
	require.NoError(t, err)
	assert.Empty(t, route)
	assert.Empty(t, storedKeys(t, store, m.Namespace()))
}

func TestHomeRouteMissingKeyIsNoop(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, m.Namespace(), map[string]string{
		KeyUser:   "{not json",
		KeyExpiry: "1",
	}))

	route, err := m.HomeRoute(ctx)
	require.NoError(t, err)
	assert.Empty(t, route)
	assert.Len(t, storedKeys(t, store, m.Namespace()), 2)
}

func TestTokenErrors(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()

	_, err := m.Token(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Set(ctx, m.Namespace(), map[string]string{KeyToken: "t", KeyExpiry: "soon"}))
	_, err = m.Token(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Empty(t, storedKeys(t, store, m.Namespace()))
}

func TestGreetingFallsBackOnGarbledUser(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()

	assert.Equal(t, "Customer", m.Greeting(ctx, "Customer"))

	require.NoError(t, store.Set(ctx, m.Namespace(), map[string]string{KeyUser: "][", KeyToken: "t"}))
	assert.Equal(t, "Business Owner", m.Greeting(ctx, "Business Owner"))

	require.NoError(t, m.Save(ctx, "t", models.User{FirstName: "Cara"}, time.Hour))
	assert.Equal(t, "Cara", m.Greeting(ctx, "Customer"))
}

func TestAuthenticateKeepsLiveTokenWithGarbledUser(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "tok-1", models.User{FirstName: "Olive", Role: models.RoleBusinessOwner}, time.Hour))
	require.NoError(t, store.Set(ctx, m.Namespace(), map[string]string{KeyUser: "{not json"}))

	s, err := m.Authenticate(ctx)
	assert.ErrorIs(t, err, ErrUnreadableUser)
	require.NotNil(t, s)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, models.User{}, s.User)
	assert.Len(t, storedKeys(t, store, m.Namespace()), 3)

	// the landing guard still treats the same data as corrupt
	_, err = m.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Empty(t, storedKeys(t, store, m.Namespace()))
}

func TestAuthenticateExpiredClears(t *testing.T) {
	now := epoch
	m, store, _ := newTestManager(t, &now)
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "tok-1", models.User{}, time.Hour))

	now = epoch.Add(2 * time.Hour)
	_, err := m.Authenticate(ctx)

	assert.ErrorIs(t, err, ErrExpired)
	assert.Empty(t, storedKeys(t, store, m.Namespace()))
}

func TestNamespacesAreIsolated(t *testing.T) {
	now := epoch
	store := setupTestStore(t)
	hub := NewHub()
	a := NewManager(store, hub, "cli:work", WithClock(func() time.Time { return now }))
	b := NewManager(store, hub, "cli:home", WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "work-token", models.User{}, time.Hour))
	_, err := b.Token(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, b.Clear(ctx, ReasonLogout))
	token, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "work-token", token)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	calls := 0
	unsubscribe := hub.Subscribe(func(Event) { calls++ })

	hub.Publish(Event{Kind: EventSaved})
	unsubscribe()
	hub.Publish(Event{Kind: EventSaved})

	assert.Equal(t, 1, calls)
}

func TestStoreResetForgetsEveryNamespace(t *testing.T) {
	now := epoch
	store := setupTestStore(t)
	hub := NewHub()
	ctx := context.Background()
	for _, ns := range []string{"cli:work", "cli:home"} {
		m := NewManager(store, hub, ns, WithClock(func() time.Time { return now }))
		require.NoError(t, m.Save(ctx, "tok-"+ns, models.User{}, time.Hour))
	}

	require.NoError(t, store.Reset(ctx))

	assert.Empty(t, storedKeys(t, store, "cli:work"))
	assert.Empty(t, storedKeys(t, store, "cli:home"))
}
