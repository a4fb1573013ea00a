// Package session owns the three client-held session keys. Every reader and
// writer goes through a Manager so changes are published on one Hub.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mohsenfayyazi/billder/models"
)

const (
	KeyToken  = "token"
	KeyUser   = "user"
	KeyExpiry = "tokenExpiry"
)

var allKeys = []string{KeyToken, KeyUser, KeyExpiry}

var (
	ErrNoSession = errors.New("no session")
	ErrExpired   = errors.New("session expired")
	ErrCorrupt   = errors.New("session data unreadable")

	// ErrUnreadableUser accompanies a live session whose stored user does
	// not decode.
	ErrUnreadableUser = errors.New("stored user unreadable")
)

const (
	RouteAdmin    = "/admin"
	RouteCustomer = "/customer"
)

type Session struct {
	Token     string
	User      models.User
	ExpiresAt time.Time
}

// Manager reads and writes one namespace.
type Manager struct {
	store     Store
	hub       *Hub
	namespace string
	now       func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store Store, hub *Hub, namespace string, opts ...Option) *Manager {
	m := &Manager{store: store, hub: hub, namespace: namespace, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Namespace() string { return m.namespace }

// Save writes the token, user, and an expiry ttl from now.
func (m *Manager) Save(ctx context.Context, token string, user models.User, ttl time.Duration) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	expiry := m.now().Add(ttl).UnixMilli()
	err = m.store.Set(ctx, m.namespace, map[string]string{
		KeyToken:  token,
		KeyUser:   string(raw),
		KeyExpiry: strconv.FormatInt(expiry, 10),
	})
	if err != nil {
		return err
	}
	m.hub.Publish(Event{Namespace: m.namespace, Kind: EventSaved})
	return nil
}

// Clear removes all three keys.
func (m *Manager) Clear(ctx context.Context, reason string) error {
	if err := m.store.Delete(ctx, m.namespace, allKeys...); err != nil {
		return err
	}
	log.Debug().Str("namespace", m.namespace).Str("reason", reason).Msg("session cleared")
	m.hub.Publish(Event{Namespace: m.namespace, Kind: EventCleared, Reason: reason})
	return nil
}

// Token returns the stored token while it is unexpired. An expired or
// unreadable expiry clears the session.
func (m *Manager) Token(ctx context.Context) (string, error) {
	values, err := m.store.Get(ctx, m.namespace, KeyToken, KeyExpiry)
	if err != nil {
		return "", err
	}
	token, expiry := values[KeyToken], values[KeyExpiry]
	if token == "" || expiry == "" {
		return "", ErrNoSession
	}
	expiresAt, err := parseExpiry(expiry)
	if err != nil {
		return "", m.clearWith(ctx, ReasonCorrupt, ErrCorrupt)
	}
	if !m.now().Before(expiresAt) {
		return "", m.clearWith(ctx, ReasonExpired, ErrExpired)
	}
	return token, nil
}

// Load returns the full session. Missing keys leave storage untouched;
// expired or unreadable data is cleared.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	values, err := m.store.Get(ctx, m.namespace, allKeys...)
	if err != nil {
		return nil, err
	}
	token, rawUser, expiry := values[KeyToken], values[KeyUser], values[KeyExpiry]
	if token == "" || rawUser == "" || expiry == "" {
		return nil, ErrNoSession
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, m.clearWith(ctx, ReasonCorrupt, ErrCorrupt)
	}
	expiresAt, err := parseExpiry(expiry)
	if err != nil {
		return nil, m.clearWith(ctx, ReasonCorrupt, ErrCorrupt)
	}
	if !m.now().Before(expiresAt) {
		return nil, m.clearWith(ctx, ReasonExpired, ErrExpired)
	}
	return &Session{Token: token, User: user, ExpiresAt: expiresAt}, nil
}

// Authenticate is Load for protected pages. A live token whose user does not
// decode still authenticates: the session comes back with a zero User and
// ErrUnreadableUser, and nothing is cleared.
func (m *Manager) Authenticate(ctx context.Context) (*Session, error) {
	values, err := m.store.Get(ctx, m.namespace, allKeys...)
	if err != nil {
		return nil, err
	}
	token, rawUser, expiry := values[KeyToken], values[KeyUser], values[KeyExpiry]
	if token == "" || rawUser == "" || expiry == "" {
		return nil, ErrNoSession
	}
	expiresAt, err := parseExpiry(expiry)
	if err != nil {
		return nil, m.clearWith(ctx, ReasonCorrupt, ErrCorrupt)
	}
	if !m.now().Before(expiresAt) {
		return nil, m.clearWith(ctx, ReasonExpired, ErrExpired)
	}
	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		log.Debug().Err(err).Str("namespace", m.namespace).Msg("stored user unreadable")
		return &Session{Token: token, ExpiresAt: expiresAt}, ErrUnreadableUser
	}
	return &Session{Token: token, User: user, ExpiresAt: expiresAt}, nil
}

// User decodes the stored user without validating the rest of the session.
func (m *Manager) User(ctx context.Context) (models.User, bool) {
	values, err := m.store.Get(ctx, m.namespace, KeyUser)
	if err != nil || values[KeyUser] == "" {
		return models.User{}, false
	}
	var user models.User
	if err := json.Unmarshal([]byte(values[KeyUser]), &user); err != nil {
		log.Debug().Err(err).Str("namespace", m.namespace).Msg("stored user unreadable")
		return models.User{}, false
	}
	return user, true
}

// Greeting is the stored user's first name, or fallback when there is none.
func (m *Manager) Greeting(ctx context.Context, fallback string) string {
	user, ok := m.User(ctx)
	if !ok || user.FirstName == "" {
		return fallback
	}
	return user.FirstName
}

// HomeRoute decides where the landing page sends a returning visitor. An
// empty route means stay.
func (m *Manager) HomeRoute(ctx context.Context) (string, error) {
	s, err := m.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrExpired), errors.Is(err, ErrCorrupt):
		return "", nil
	case err != nil:
		return "", err
	}
	return RouteFor(s.User.Role), nil
}

// RouteFor maps a role to its dashboard; unknown roles have none.
func RouteFor(role models.Role) string {
	switch role {
	case models.RoleBusinessOwner:
		return RouteAdmin
	case models.RoleCustomer:
		return RouteCustomer
	}
	return ""
}

func (m *Manager) clearWith(ctx context.Context, reason string, cause error) error {
	if err := m.Clear(ctx, reason); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func parseExpiry(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
