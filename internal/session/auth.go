package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/singleflight"

	"github.com/lachlan2k/vitrine/internal/api"
	"github.com/lachlan2k/vitrine/internal/token"
)

type Backend interface {
	Login(ctx context.Context, email, senha string) (*api.LoginResponse, error)
	CheckSession(ctx context.Context) (*api.SessionStatus, error)
}

// Auth is the single source of truth for who is logged in. Build one at startup, call
// Restore once, and Close it on teardown.
//
// Every login, logout and teardown bumps a generation counter. A validation started under
// an older generation is thrown away when it comes back, so a slow restore can't undo a
// logout or overwrite a fresh login.
type Auth struct {
	store   *Store
	backend Backend
	logger  *log.Logger
	now     func() time.Time
	flight  singleflight.Group

	mu     sync.RWMutex
	state  State
	user   *User
	gen    uint64
	closed bool
}

func NewAuth(store *Store, backend Backend, logger *log.Logger) *Auth {
	return &Auth{
		store:   store,
		backend: backend,
		logger:  logger,
		now:     time.Now,
		state:   StateUnresolved,
	}
}

// Restore rebuilds the session from storage. Callers that arrive while a validation is in
// flight wait on that one instead of starting another. Any failure ends in StateLoggedOut;
// nothing is returned to the caller but the resulting snapshot.
func (a *Auth) Restore(ctx context.Context) Snapshot {
	a.flight.Do("restore", func() (any, error) {
		a.restore(ctx)
		return nil, nil
	})
	return a.Snapshot()
}

func (a *Auth) restore(ctx context.Context) {
	gen, claims, ok := a.begin(ctx)
	if !ok {
		return
	}

	status, err := a.backend.CheckSession(ctx)
	if err != nil && ctx.Err() != nil {
		// Shutting down mid-validation says nothing about the session; keep it stored
		a.logger.Debugf("Session validation abandoned: %v", ctx.Err())
		a.abandon(gen)
		return
	}
	if err == nil && (status == nil || !status.Logado) {
		err = fmt.Errorf("%w: backend says the session isn't logged in", ErrSessionValidationFailed)
	}
	if err != nil {
		a.logger.Infof("Dropping stored session: %v", err)
		a.discard(ctx, gen)
		return
	}

	user := &User{
		ID:   string(status.ID),
		Name: status.Nome,
		Role: status.Tipo,
	}
	if strings.Contains(claims.Subject, "@") {
		user.Email = claims.Subject
	}
	if user.ID == "" {
		user.ID, _ = a.store.UserID(ctx)
	}
	if user.ID == "" && user.Email == "" {
		user.ID = claims.Subject
	}
	if user.Role == "" {
		user.Role = claims.Role
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || gen != a.gen {
		a.logger.Debugf("Ignoring session validation from generation %d, now at %d", gen, a.gen)
		return
	}
	a.user = user
	a.state = StateLoggedIn
}

// begin does the local half of a restore. It reports false when there is nothing left
// to validate remotely.
func (a *Auth) begin(ctx context.Context) (uint64, *token.Claims, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.state != StateUnresolved {
		return 0, nil, false
	}

	raw, ok := a.store.Resume(ctx)
	if !ok {
		a.state = StateLoggedOut
		return 0, nil, false
	}

	claims, err := token.Decode(raw)
	if err == nil && token.IsExpired(claims, a.now()) {
		err = fmt.Errorf("token expired at %v", claims.ExpiresAt.Time)
	}
	if err != nil {
		a.logger.Infof("Dropping stored session: %v", err)
		a.clearLocked(ctx)
		return 0, nil, false
	}

	a.state = StateValidating
	return a.gen, claims, true
}

// abandon puts a cancelled validation back to unresolved so a later Restore can retry it.
func (a *Auth) abandon(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || gen != a.gen {
		return
	}
	a.state = StateUnresolved
}

func (a *Auth) discard(ctx context.Context, gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || gen != a.gen {
		return
	}
	a.clearLocked(ctx)
}

func (a *Auth) clearLocked(ctx context.Context) {
	if err := a.store.Clear(ctx); err != nil {
		a.logger.Warnf("Couldn't clear stored session: %v", err)
	}
	a.user = nil
	a.state = StateLoggedOut
}

// Login records an already authenticated user and its token.
func (a *Auth) Login(ctx context.Context, user User, tok string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	if err := a.store.Save(ctx, tok, user.ID); err != nil {
		return fmt.Errorf("couldn't persist session: %w", err)
	}

	a.gen++
	a.user = &user
	a.state = StateLoggedIn
	return nil
}

// SignIn authenticates against the backend and logs the user in. Backend failures come
// back as *api.LoginRejected.
func (a *Auth) SignIn(ctx context.Context, email, senha string) (*User, error) {
	res, err := a.backend.Login(ctx, email, senha)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:    string(res.ID),
		Name:  res.Nome,
		Email: email,
		Role:  res.Tipo,
	}
	if err := a.Login(ctx, user, res.Token); err != nil {
		return nil, err
	}

	return &user, nil
}

// Logout always ends logged out in memory, even when storage can't be cleared.
func (a *Auth) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gen++
	a.user = nil
	a.state = StateLoggedOut

	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("couldn't clear stored session: %w", err)
	}
	return nil
}

// Close tears the session down. Validations still in flight are ignored when they finish.
func (a *Auth) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.gen++
}

func (a *Auth) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{State: a.state}
	if a.user != nil {
		u := *a.user
		snap.User = &u
	}
	return snap
}

func (a *Auth) State() State {
	return a.Snapshot().State
}

func (a *Auth) User() *User {
	return a.Snapshot().User
}

func (a *Auth) IsClient() bool {
	return a.Snapshot().IsClient()
}

func (a *Auth) IsEmployee() bool {
	return a.Snapshot().IsEmployee()
}
