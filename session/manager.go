package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/carefleet/carefleet-client/credentials"
	"github.com/carefleet/carefleet-client/gateway"
	errs "github.com/carefleet/carefleet-client/internal/errors"
	"github.com/carefleet/carefleet-client/token"
	"github.com/carefleet/carefleet-client/users"
)

// State is the session manager's lifecycle state
type State string

const (
	StateUninitialized   State = "UNINITIALIZED"
	StateLoading         State = "LOADING"
	StateAuthenticated   State = "AUTHENTICATED"
	StateUnauthenticated State = "UNAUTHENTICATED"
)

// AuthGateway is the network surface the manager depends on
type AuthGateway interface {
	Login(ctx context.Context, email, password string) (*gateway.TokenResponse, error)
	Register(ctx context.Context, req gateway.RegisterRequest) error
	VerifyEmail(ctx context.Context, token, otp string) (*gateway.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*gateway.TokenResponse, error)
}

// Observer receives every session state transition
type Observer func(state State, user *users.User)

// Manager owns the in-memory session state machine. It is the only writer
// to the credential store and the single-flight coordinator for refresh.
type Manager struct {
	store   credentials.Store
	gw      AuthGateway
	nowTime func() time.Time // injectable for testing

	mu        sync.RWMutex
	state     State
	user      *users.User
	epoch     uint64 // bumped on login/logout; a stale refresh result is discarded
	observers []Observer
	flight    singleflight.Group
}

// Option defines a function type to modify the Manager instance
type Option func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager initializes a Manager with required dependencies
func NewManager(store credentials.Store, gw AuthGateway, options ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] credential store is required")
	}
	if gw == nil {
		return nil, errors.New("[NewManager] auth gateway is required")
	}

	m := &Manager{
		store:   store,
		gw:      gw,
		nowTime: time.Now,
		state:   StateUninitialized,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the current session identity, nil when unauthenticated
func (m *Manager) User() *users.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// AccessToken returns the stored access credential, empty when absent
func (m *Manager) AccessToken() string {
	pair, err := m.store.Pair()
	if err != nil {
		log.Err(err).Msg("Failed to read credential pair")
		return ""
	}
	return pair.AccessToken
}

// OnChange registers an observer for session state transitions
func (m *Manager) OnChange(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// BootSnapshot returns the persisted advisory {user, isAuthenticated}
// snapshot for fast UI boot before Initialize completes. It must be
// reconciled against decoded claims, never trusted as authoritative.
func (m *Manager) BootSnapshot() (credentials.Snapshot, error) {
	return m.store.Snapshot()
}

// Initialize loads any persisted credential at application start. An absent
// credential is the normal unauthenticated cold start, not an error. A
// valid credential authenticates without a network call; an expired one
// triggers exactly one refresh; a malformed one is silently discarded.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return errors.New("[Manager.Initialize] already initialized")
	}
	notify := m.transitionLocked(StateLoading, nil)
	m.mu.Unlock()
	notify()

	pair, err := m.store.Pair()
	if err != nil {
		log.Err(err).Msg("Failed to load persisted credentials")
		pair = credentials.Pair{}
	}
	if pair.Empty() {
		m.mu.Lock()
		notify = m.transitionLocked(StateUnauthenticated, nil)
		m.mu.Unlock()
		notify()
		return nil
	}

	claims, err := token.Decode(pair.AccessToken)
	if err != nil {
		// Corrupted storage is a normal cold-start case: silent logout,
		// no error surfaced
		log.Warn().Msg("Discarding malformed stored access token")
		m.Logout()
		return nil
	}

	if claims.ValidAt(m.nowTime()) {
		user := claims.User()
		m.mu.Lock()
		m.writeSnapshotLocked(user)
		notify = m.transitionLocked(StateAuthenticated, user)
		m.mu.Unlock()
		notify()
		return nil
	}

	// Expired access credential: attempt a silent refresh. Refresh already
	// forces logout on failure, so that outcome is not an Initialize error.
	if _, err := m.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Silent refresh at startup failed")
	}
	return nil
}

// Login authenticates with the gateway and replaces any prior session
// unconditionally
func (m *Manager) Login(ctx context.Context, email, password string) (*users.User, error) {
	resp, err := m.gw.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.adopt(resp, false)
}

// Register creates an account. Session state is untouched: the account
// still has to be verified and logged in.
func (m *Manager) Register(ctx context.Context, req gateway.RegisterRequest) error {
	return m.gw.Register(ctx, req)
}

// VerifyEmail confirms the verification token and OTP; the resulting
// session is always marked email-verified
func (m *Manager) VerifyEmail(ctx context.Context, verifyToken, otp string) (*users.User, error) {
	resp, err := m.gw.VerifyEmail(ctx, verifyToken, otp)
	if err != nil {
		return nil, err
	}
	return m.adopt(resp, true)
}

// Logout clears the credential store and the session synchronously. It is
// idempotent and never fails; a store error is logged and the in-memory
// session is cleared regardless.
func (m *Manager) Logout() {
	m.mu.Lock()
	if err := m.store.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear credential store")
	}
	m.epoch++
	if m.state == StateUnauthenticated {
		// Already logged out; no duplicate transition
		m.mu.Unlock()
		return
	}
	notify := m.transitionLocked(StateUnauthenticated, nil)
	m.mu.Unlock()
	notify()
}

// Refresh rotates the credential pair. It is single-flight: concurrent
// callers share one network call and observe the same outcome, so two
// racing 401s can never rotate the refresh token twice. Any failure forces
// Logout and surfaces ErrSessionExpired.
func (m *Manager) Refresh(ctx context.Context) (*users.User, error) {
	m.mu.RLock()
	if m.state == StateUnauthenticated {
		// No-op: re-enters UNAUTHENTICATED
		m.mu.RUnlock()
		return nil, errs.ErrSessionExpired
	}
	startEpoch := m.epoch
	m.mu.RUnlock()

	v, err, _ := m.flight.Do("refresh", func() (any, error) {
		user, err := m.doRefresh(ctx, startEpoch)
		if err != nil {
			// Logout inside the flight: one failed rotation is one logical
			// transition, however many callers share it
			m.Logout()
		}
		return user, err
	})
	if err != nil {
		if errs.Is(err, errs.ErrSessionExpired) {
			return nil, err
		}
		return nil, errs.Wrapf(errs.ErrSessionExpired, "[Manager.Refresh] %v", err)
	}
	return v.(*users.User), nil
}

func (m *Manager) doRefresh(ctx context.Context, startEpoch uint64) (*users.User, error) {
	pair, err := m.store.Pair()
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Refresh] store.Pair")
	}
	if pair.RefreshToken == "" {
		return nil, errs.ErrSessionExpired
	}

	resp, err := m.gw.RefreshToken(ctx, pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	claims, err := token.Decode(resp.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Refresh] decode rotated token")
	}

	m.mu.Lock()
	if m.epoch != startEpoch {
		// An explicit logout (or new login) raced the in-flight refresh
		// and wins; the rotated pair is discarded
		m.mu.Unlock()
		return nil, errs.ErrSessionExpired
	}
	if err := m.store.SetPair(credentials.Pair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}); err != nil {
		m.mu.Unlock()
		return nil, errors.Wrap(err, "[Manager.Refresh] store.SetPair")
	}
	user := claims.User()
	m.writeSnapshotLocked(user)
	notify := m.transitionLocked(StateAuthenticated, user)
	m.mu.Unlock()
	notify()
	return user, nil
}

// adopt persists a token response and installs the decoded session
func (m *Manager) adopt(resp *gateway.TokenResponse, forceVerified bool) (*users.User, error) {
	claims, err := token.Decode(resp.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager] decode access token")
	}
	user := claims.User()
	if forceVerified {
		user.EmailVerified = true
	}

	m.mu.Lock()
	if err := m.store.SetPair(credentials.Pair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}); err != nil {
		m.mu.Unlock()
		return nil, errors.Wrap(err, "[Manager] store.SetPair")
	}
	m.epoch++
	m.writeSnapshotLocked(user)
	notify := m.transitionLocked(StateAuthenticated, user)
	m.mu.Unlock()
	notify()
	return user, nil
}

// transitionLocked updates state under m.mu and returns the deferred
// observer notification, to be invoked after unlocking
func (m *Manager) transitionLocked(state State, user *users.User) func() {
	m.state = state
	m.user = user
	observers := append([]Observer(nil), m.observers...)
	return func() {
		for _, fn := range observers {
			fn(state, user)
		}
	}
}

func (m *Manager) writeSnapshotLocked(user *users.User) {
	if err := m.store.SetSnapshot(credentials.Snapshot{
		User:            user,
		IsAuthenticated: user != nil,
	}); err != nil {
		log.Err(err).Msg("Failed to persist session snapshot")
	}
}
