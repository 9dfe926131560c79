package goStage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goStage/api"
	"github.com/MrEthical07/goStage/guard"
	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/token"
	"github.com/MrEthical07/goStage/user"
	"go.uber.org/zap"
)

// Client is the Session Manager: the single owner of "who is logged in" for
// the running process. All methods are safe for concurrent use; only Client
// methods write the session.
type Client struct {
	config     Config
	store      *session.Store
	api        *api.Client
	httpClient *http.Client
	navigator  Navigator
	logger     *zap.Logger
	metrics    *Metrics
	audit      *audit.Dispatcher
	stages     *Stages
	now        func() time.Time

	mu    sync.RWMutex
	state session.State

	ready     chan struct{}
	readyOnce sync.Once
	closed    bool
}

/*
====================================
STATE
====================================
*/

// State returns a snapshot of the session. The returned record is a copy.
func (c *Client) State() session.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot(c.state)
}

func (c *Client) Phase() session.Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Phase
}

// Token implements transport.TokenSource.
func (c *Client) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.Authenticated {
		return "", false
	}
	return c.state.Token, true
}

// Ready is closed once the first restore has finalized.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// WaitReady blocks until Ready is closed or ctx is done.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Environment() session.Environment {
	return c.config.Environment
}

// HTTPClient returns the client that attaches the bearer credential and
// forces logout on 401.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// API returns the typed backend client bound to HTTPClient.
func (c *Client) API() *api.Client {
	return c.api
}

// Stages returns the stage service bound to this session.
func (c *Client) Stages() *Stages {
	return c.stages
}

func (c *Client) Metrics() *Metrics {
	return c.metrics
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes the audit dispatcher. The session is left as is.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.audit.Close()
}

/*
====================================
LOGIN / REGISTER
====================================
*/

// Login exchanges credentials for a session, persists it, and redirects to the
// home area of the user's role. Transport failures come back as *LoginError;
// a response without a usable credential fails with
// ErrInvalidCredentialResponse. On any failure nothing is persisted and the
// session is left unauthenticated.
func (c *Client) Login(ctx context.Context, email, password string) (*user.Record, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	start := c.now()

	resp, err := c.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, audit.Event{EventType: audit.EventLoginFailure, Error: Categorize(err).String()})
		c.logger.Warn("login failed", zap.String("category", Categorize(err).String()), zap.Error(err))
		return nil, newLoginError(err)
	}

	rec, raw, err := c.acceptCredential(resp)
	if err != nil {
		c.metrics.Inc(MetricLoginInvalidResponse)
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, audit.Event{EventType: audit.EventLoginFailure, Error: "invalid credential response"})
		c.logger.Warn("login response rejected", zap.Error(err))
		return nil, &LoginError{Category: CategoryGeneric, Err: err}
	}

	if c.store != nil {
		if err := c.store.Save(ctx, session.Entry{User: rec, Token: raw}); err != nil {
			c.metrics.Inc(MetricLoginFailure)
			c.logger.Error("persist session", zap.Error(err))
			return nil, &LoginError{Category: CategoryGeneric, Err: err}
		}
	}

	c.mu.Lock()
	c.state.User = &rec
	c.state.Token = raw
	c.state.Authenticated = true
	c.state.Phase = session.PhaseAuthenticated
	c.state.Reason = ""
	c.mu.Unlock()

	c.metrics.Inc(MetricLoginSuccess)
	c.metrics.Observe(MetricLoginLatency, c.now().Sub(start))
	c.emit(ctx, audit.Event{
		EventType: audit.EventLoginSuccess,
		UserID:    audit.UserIDString(rec.ID),
		Role:      rec.Role.String(),
		Success:   true,
	})
	c.logger.Info("login", zap.Int64("user_id", rec.ID), zap.String("role", rec.Role.String()))

	c.navigator.Navigate(ctx, c.HomeFor(rec.Role))

	out := rec.Clone()
	return &out, nil
}

// acceptCredential checks the credential of a login response and builds the
// session record. The record's role wins over the credential's; both are
// normalized.
func (c *Client) acceptCredential(resp *api.LoginResponse) (user.Record, string, error) {
	raw := strings.TrimSpace(resp.Token)
	if raw == "" {
		return user.Record{}, "", fmt.Errorf("%w: no credential", ErrInvalidCredentialResponse)
	}
	claims, err := token.Decode(raw)
	if err != nil {
		return user.Record{}, "", fmt.Errorf("%w: %w", ErrInvalidCredentialResponse, err)
	}
	if token.IsExpired(claims, c.now()) {
		return user.Record{}, "", fmt.Errorf("%w: %w", ErrInvalidCredentialResponse, token.ErrExpired)
	}

	rec := resp.Record()
	role := rec.Role
	if strings.TrimSpace(string(role)) == "" {
		role = claims.Role
	}
	if parsed, ok := user.ParseRole(string(role)); ok {
		rec.Role = parsed
	} else {
		rec.Role = user.Role(strings.ToUpper(strings.TrimSpace(string(role))))
	}
	if rec.Email == "" {
		rec.Email = claims.Email
	}
	return rec, raw, nil
}

// Register creates an account and then logs in with the same credentials,
// so a registered user is always backed by a credential.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*user.Record, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if _, err := c.api.Register(ctx, req); err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		c.logger.Warn("register failed", zap.String("category", Categorize(err).String()), zap.Error(err))
		return nil, newLoginError(err)
	}
	c.metrics.Inc(MetricRegisterSuccess)
	return c.Login(ctx, req.Email, req.Password)
}

// HomeFor returns the landing path of role. Roles without a home area land
// on Routes.Root.
func (c *Client) HomeFor(role user.Role) string {
	normalized, ok := user.ParseRole(string(role))
	if !ok {
		return c.config.Routes.Root
	}
	switch normalized {
	case user.RoleAdmin:
		return c.config.Routes.AdminHome
	case user.RoleEnseignant:
		return c.config.Routes.TeacherHome
	case user.RoleEtudiant:
		return c.config.Routes.StudentHome
	case user.RoleSousAdmin:
		return c.config.Routes.Root
	}
	return c.config.Routes.Root
}

/*
====================================
RESTORE
====================================
*/

// Restore rebuilds the session from the durable store. A missing pair
// finalizes as unauthenticated; a partial, malformed or expired pair is purged
// first. Every call finalizes, and the first one closes Ready. A
// non-interactive Client never reads a store and returns its current state.
func (c *Client) Restore(ctx context.Context) (session.State, error) {
	if c.store == nil {
		c.finalize(session.State{Phase: session.PhaseUnauthenticated})
		return c.State(), nil
	}

	entry, status, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Error("restore session", zap.Error(err))
		c.finalize(session.State{Phase: session.PhaseUnauthenticated})
		return c.State(), err
	}

	switch status {
	case session.LoadEmpty:
		c.metrics.Inc(MetricRestoreEmpty)
		c.finalize(session.State{Phase: session.PhaseUnauthenticated})
		return c.State(), nil
	case session.LoadPurged:
		c.purged(ctx, "unparseable entry")
		c.finalize(session.State{Phase: session.PhaseUnauthenticated})
		return c.State(), nil
	}

	if _, err := token.Check(entry.Token, c.now()); err != nil {
		reason := "malformed credential"
		if errors.Is(err, token.ErrExpired) {
			reason = "expired credential"
		}
		if perr := c.store.Purge(ctx); perr != nil {
			c.logger.Error("purge session", zap.Error(perr))
			c.finalize(session.State{Phase: session.PhaseUnauthenticated})
			return c.State(), perr
		}
		c.purged(ctx, reason)
		c.finalize(session.State{Phase: session.PhaseUnauthenticated})
		return c.State(), nil
	}

	rec := entry.User
	if parsed, ok := user.ParseRole(string(rec.Role)); ok {
		rec.Role = parsed
	}
	c.finalize(session.State{
		User:          &rec,
		Token:         entry.Token,
		Authenticated: true,
		Phase:         session.PhaseAuthenticated,
	})

	c.metrics.Inc(MetricRestoreAuthenticated)
	c.emit(ctx, audit.Event{
		EventType: audit.EventSessionRestored,
		UserID:    audit.UserIDString(rec.ID),
		Role:      rec.Role.String(),
		Success:   true,
	})
	c.logger.Debug("session restored", zap.Int64("user_id", rec.ID))
	return c.State(), nil
}

func (c *Client) purged(ctx context.Context, reason string) {
	c.metrics.Inc(MetricRestorePurged)
	c.emit(ctx, audit.Event{
		EventType: audit.EventSessionPurged,
		Success:   true,
		Metadata:  map[string]string{"reason": reason},
	})
	c.logger.Info("stored session purged", zap.String("reason", reason))
}

// finalize installs next as the session, marks it initialized, and closes
// Ready on the first call.
func (c *Client) finalize(next session.State) {
	next.Initialized = true
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })
}

/*
====================================
LOGOUT / EXPIRY
====================================
*/

// Logout clears the session in memory and in the store, then navigates to the
// login path. It is idempotent; the store error, if any, is returned after the
// in-memory session is already gone.
func (c *Client) Logout(ctx context.Context) error {
	prev := c.clear("")

	var err error
	if c.store != nil {
		err = c.store.Purge(ctx)
		if err != nil {
			c.logger.Error("purge session on logout", zap.Error(err))
		}
	}

	c.metrics.Inc(MetricLogout)
	if prev.User != nil {
		c.emit(ctx, audit.Event{
			EventType: audit.EventLogout,
			UserID:    audit.UserIDString(prev.User.ID),
			Role:      prev.User.Role.String(),
			Success:   true,
		})
	}
	c.navigator.Navigate(ctx, c.config.Routes.LoginPath)
	return err
}

// Expire is the forced logout that follows a 401 from the backend. It clears
// the session like Logout and redirects to the login path with the
// session-expired reason. Repeated 401s after the first only clear state
// again; they do not redirect twice.
func (c *Client) Expire(ctx context.Context) error {
	prev := c.clear(session.ReasonSessionExpired)

	var err error
	if c.store != nil {
		err = c.store.Purge(ctx)
		if err != nil {
			c.logger.Error("purge session on expiry", zap.Error(err))
		}
	}

	if !prev.Authenticated {
		return err
	}

	c.metrics.Inc(MetricSessionExpired)
	ev := audit.Event{EventType: audit.EventSessionExpired, Success: true}
	if prev.User != nil {
		ev.UserID = audit.UserIDString(prev.User.ID)
		ev.Role = prev.User.Role.String()
	}
	c.emit(ctx, ev)
	c.logger.Info("session expired by backend")

	redirect := guard.Decision{RedirectTo: c.config.Routes.LoginPath, Reason: session.ReasonSessionExpired}
	c.navigator.Navigate(ctx, redirect.URL())
	return err
}

func (c *Client) onUnauthorized(req *http.Request) {
	ctx := context.WithoutCancel(req.Context())
	_ = c.Expire(ctx)
}

// clear resets the in-memory session and returns the previous one.
// Initialized is preserved. reason is recorded only when an authenticated
// session ends; a repeated expiry keeps the reason already set.
func (c *Client) clear(reason string) session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = session.State{
		Initialized: prev.Initialized,
		Phase:       session.PhaseUnauthenticated,
	}
	switch {
	case reason == "":
	case prev.Authenticated:
		c.state.Reason = reason
	default:
		c.state.Reason = prev.Reason
	}
	if !prev.Initialized {
		c.state.Phase = prev.Phase
	}
	return prev
}

/*
====================================
PROFILE
====================================
*/

// SyncProfile refreshes the user record from the backend and persists it.
// The credential is unchanged.
func (c *Client) SyncProfile(ctx context.Context) (*user.Record, error) {
	tok, ok := c.Token()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	rec, err := c.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	if parsed, ok := user.ParseRole(string(rec.Role)); ok {
		rec.Role = parsed
	}

	c.mu.Lock()
	// A logout or expiry that raced the call wins. The record is persisted
	// under the lock so a later purge always follows the write.
	if !c.state.Authenticated || c.state.Token != tok {
		c.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	if c.store != nil {
		if err := c.store.SaveUser(ctx, *rec); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	updated := rec.Clone()
	c.state.User = &updated
	c.mu.Unlock()

	c.metrics.Inc(MetricProfileSync)
	out := rec.Clone()
	return &out, nil
}

/*
====================================
GUARD
====================================
*/

// Decide evaluates checks against the current session with the configured
// environment and login path.
func (c *Client) Decide(checks ...guard.Check) guard.Decision {
	d := guard.Decide(c.config.Environment, c.State(), c.config.Routes.LoginPath, checks...)
	if d.Allow {
		c.metrics.Inc(MetricGuardAllow)
	} else {
		c.metrics.Inc(MetricGuardRedirect)
	}
	return d
}

// Area is Decide for a role-restricted area.
func (c *Client) Area(role user.Role) guard.Decision {
	return c.Decide(guard.RequireAuthenticated(), guard.RequireRole(role))
}

/*
====================================
HELPERS
====================================
*/

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Client) emit(ctx context.Context, ev audit.Event) {
	c.audit.Emit(ctx, ev)
}

func snapshot(s session.State) session.State {
	out := s
	if s.User != nil {
		rec := s.User.Clone()
		out.User = &rec
	}
	return out
}
