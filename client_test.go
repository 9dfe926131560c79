package goStage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goStage/api"
	"github.com/MrEthical07/goStage/guard"
	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/token"
	"github.com/MrEthical07/goStage/transport"
	"github.com/MrEthical07/goStage/user"
)

func student() user.Record {
	return user.Record{Nom: "Durand", Prenom: "Alice", Email: "alice@example.com", Role: user.RoleEtudiant}
}

func TestRestoreEmptyStoreIsUnauthenticatedAndInitialized(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)

	if tc.client.Phase() != session.PhaseRestoring {
		t.Fatalf("expected restoring before restore, got %v", tc.client.Phase())
	}

	st := mustRestore(t, tc.client)
	if st.Authenticated || !st.Initialized || st.Phase != session.PhaseUnauthenticated {
		t.Fatalf("unexpected state %+v", st)
	}
	if got := tc.client.Metrics().Value(MetricRestoreEmpty); got != 1 {
		t.Fatalf("expected restore-empty metric 1, got %d", got)
	}
}

func TestRestoreExpiredTokenPurgesStore(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	rec := student()
	rec.ID = 4
	seedSession(t, tc.kv, rec, mintToken(t, rec, time.Now().Add(-time.Minute)))

	st := mustRestore(t, tc.client)
	if st.Authenticated || !st.Initialized {
		t.Fatalf("expected unauthenticated initialized state, got %+v", st)
	}
	if tc.kv.Len() != 0 {
		t.Fatalf("expected purged store, %d entries left", tc.kv.Len())
	}
	if got := tc.client.Metrics().Value(MetricRestorePurged); got != 1 {
		t.Fatalf("expected restore-purged metric 1, got %d", got)
	}
}

func TestRestoreMalformedTokenPurgesStore(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	seedSession(t, tc.kv, student(), "not-a-credential")

	st := mustRestore(t, tc.client)
	if st.Authenticated {
		t.Fatalf("malformed credential must not authenticate: %+v", st)
	}
	if tc.kv.Len() != 0 {
		t.Fatalf("expected purged store, %d entries left", tc.kv.Len())
	}
}

func TestRestorePartialPairPurged(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	if err := tc.kv.Set(context.Background(), map[string]string{"token": "abc"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st := mustRestore(t, tc.client)
	if st.Authenticated || tc.kv.Len() != 0 {
		t.Fatalf("expected partial pair purged, state %+v, len %d", st, tc.kv.Len())
	}
}

func TestRestoreValidSessionAuthenticates(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	rec := student()
	rec.ID = 9
	rec.Role = "etudiant"
	raw := mintToken(t, rec, time.Now().Add(time.Hour))
	seedSession(t, tc.kv, rec, raw)

	st := mustRestore(t, tc.client)
	if !st.Authenticated || st.Phase != session.PhaseAuthenticated {
		t.Fatalf("expected authenticated, got %+v", st)
	}
	if st.User == nil || st.User.ID != 9 || st.User.Role != user.RoleEtudiant {
		t.Fatalf("unexpected user %+v", st.User)
	}
	if st.Token != raw {
		t.Fatal("expected restored token")
	}
	if d := tc.client.Area(user.RoleEtudiant); !d.Allow {
		t.Fatalf("expected student area allowed, got %+v", d)
	}
	if d := tc.client.Area(user.RoleAdmin); d.Allow || d.RedirectTo != "/login" {
		t.Fatalf("expected admin area redirect, got %+v", d)
	}
}

func TestReadyClosedOnceAcrossRestores(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)

	select {
	case <-tc.client.Ready():
		t.Fatal("ready must not be closed before restore")
	default:
	}

	mustRestore(t, tc.client)
	mustRestore(t, tc.client)

	select {
	case <-tc.client.Ready():
	default:
		t.Fatal("ready must be closed after restore")
	}
	if !tc.client.State().Initialized {
		t.Fatal("expected initialized")
	}
}

func TestWaitReadyHonoursContext(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tc.client.WaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- tc.client.WaitReady(context.Background()) }()
	mustRestore(t, tc.client)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitReady failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return after restore")
	}
}

func TestNonInteractiveNeverReadsStoreAndAlwaysAllows(t *testing.T) {
	b := newFakeBackend(t)
	rec := student()
	tc := newTestClient(t, b, func(bld *Builder) {
		bld.WithEnvironment(session.NonInteractive)
	})
	seedSession(t, tc.kv, rec, mintToken(t, rec, time.Now().Add(-time.Hour)))

	select {
	case <-tc.client.Ready():
	default:
		t.Fatal("non-interactive client must be ready at build")
	}
	st := mustRestore(t, tc.client)
	if st.Authenticated || st.Phase != session.PhaseUnauthenticated {
		t.Fatalf("unexpected state %+v", st)
	}
	if tc.kv.Len() != 2 {
		t.Fatalf("store must be untouched, got %d entries", tc.kv.Len())
	}
	for _, role := range user.Roles() {
		if d := tc.client.Area(role); !d.Allow {
			t.Fatalf("expected allow for %s, got %+v", role, d)
		}
	}
}

func TestLoginRedirectsByRole(t *testing.T) {
	tests := []struct {
		role user.Role
		want string
	}{
		{user.RoleAdmin, "/admin/dashboard"},
		{user.RoleEnseignant, "/teacher/dashboard"},
		{user.RoleEtudiant, "/student/dashboard"},
		{user.RoleSousAdmin, "/"},
		{" etudiant ", "/student/dashboard"},
		{"VISITOR", "/"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			b := newFakeBackend(t)
			tc := newTestClient(t, b)
			mustRestore(t, tc.client)
			email := strings.ToLower(strings.TrimSpace(string(tt.role))) + "@example.com"
			b.addAccount(user.Record{Nom: "N", Prenom: "P", Email: email, Role: tt.role}, "secret")

			rec, err := tc.client.Login(context.Background(), email, "secret")
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if got := tc.nav.Last(); got != tt.want {
				t.Fatalf("expected redirect %q, got %q", tt.want, got)
			}
			if want := user.Role(strings.ToUpper(strings.TrimSpace(string(tt.role)))); rec.Role != want {
				t.Fatalf("expected normalized role %q, got %q", want, rec.Role)
			}
		})
	}
}

func TestLoginPersistsSession(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b, func(bld *Builder) { bld.WithLatencyHistograms(true) })
	mustRestore(t, tc.client)
	b.addAccount(student(), "secret")

	if _, err := tc.client.Login(context.Background(), " alice@example.com ", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	st := tc.client.State()
	if !st.Authenticated || st.User == nil || st.Token == "" || st.Phase != session.PhaseAuthenticated {
		t.Fatalf("unexpected state %+v", st)
	}

	store := session.NewStore(tc.kv, session.DefaultKeys())
	entry, status, err := store.Load(context.Background())
	if err != nil || status != session.LoadFound {
		t.Fatalf("expected persisted pair, status %v err %v", status, err)
	}
	if entry.User.Email != "alice@example.com" || entry.Token != st.Token {
		t.Fatalf("unexpected persisted entry %+v", entry)
	}

	snap := tc.client.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected login success 1, got %d", snap.Counters[MetricLoginSuccess])
	}
	var samples uint64
	for _, v := range snap.Histograms[MetricLoginLatency] {
		samples += v
	}
	if samples != 1 {
		t.Fatalf("expected one latency sample, got %d", samples)
	}
}

func TestLoginWithoutCredentialFailsInvalidCredentialResponse(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T, rec user.Record) string
	}{
		{"missing", func(*testing.T, user.Record) string { return "" }},
		{"garbage", func(*testing.T, user.Record) string { return "a.b.c" }},
		{"expired", func(t *testing.T, rec user.Record) string {
			return mintToken(t, rec, time.Now().Add(-time.Minute))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(t)
			b.loginToken = func(rec user.Record) string { return tt.token(t, rec) }
			tc := newTestClient(t, b)
			mustRestore(t, tc.client)
			b.addAccount(student(), "secret")

			_, err := tc.client.Login(context.Background(), "alice@example.com", "secret")
			if !errors.Is(err, ErrInvalidCredentialResponse) {
				t.Fatalf("expected ErrInvalidCredentialResponse, got %v", err)
			}
			if tc.kv.Len() != 0 {
				t.Fatalf("nothing must be persisted, got %d entries", tc.kv.Len())
			}
			if tc.client.Phase() != session.PhaseUnauthenticated {
				t.Fatalf("expected unauthenticated, got %v", tc.client.Phase())
			}
			if len(tc.nav.Paths()) != 0 {
				t.Fatalf("no redirect expected, got %v", tc.nav.Paths())
			}
		})
	}
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		category LoginCategory
		message  string
	}{
		{"bad credentials", http.StatusUnauthorized, CategoryBadCredentials, MessageBadCredentials},
		{"forbidden", http.StatusForbidden, CategoryBadCredentials, MessageBadCredentials},
		{"validation", http.StatusBadRequest, CategoryValidation, MessageValidation},
		{"server", http.StatusInternalServerError, CategoryGeneric, MessageGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(t)
			b.loginStatus = tt.status
			tc := newTestClient(t, b)
			mustRestore(t, tc.client)

			_, err := tc.client.Login(context.Background(), "alice@example.com", "secret")
			var le *LoginError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoginError, got %T %v", err, err)
			}
			if le.Category != tt.category || err.Error() != tt.message {
				t.Fatalf("expected %v %q, got %v %q", tt.category, tt.message, le.Category, err.Error())
			}
			if tc.client.State().Authenticated {
				t.Fatal("failed login must stay unauthenticated")
			}
		})
	}
}

func TestLoginUnreachableServer(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)
	b.srv.Close()

	_, err := tc.client.Login(context.Background(), "alice@example.com", "secret")
	if !errors.Is(err, transport.ErrUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if err.Error() != MessageUnreachable {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestUnauthorizedMidSessionForcesExpiry(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)
	b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	b.mu.Lock()
	b.forceStatus = http.StatusUnauthorized
	b.mu.Unlock()

	_, err := tc.client.Stages().Mine(context.Background())
	if !errors.Is(err, transport.ErrUnauthorized) {
		t.Fatalf("caller must still see the 401, got %v", err)
	}

	st := tc.client.State()
	if st.Authenticated || st.User != nil || st.Token != "" {
		t.Fatalf("expected cleared session, got %+v", st)
	}
	if st.Reason != session.ReasonSessionExpired {
		t.Fatalf("expected expiry reason, got %q", st.Reason)
	}
	if tc.kv.Len() != 0 {
		t.Fatalf("expected purged store, got %d entries", tc.kv.Len())
	}
	if got := tc.nav.Last(); got != "/login?reason=session-expired" {
		t.Fatalf("unexpected redirect %q", got)
	}

	for _, role := range []user.Role{user.RoleAdmin, user.RoleEnseignant, user.RoleEtudiant} {
		d := tc.client.Area(role)
		if d.Allow || d.Reason != session.ReasonSessionExpired {
			t.Fatalf("expected expired redirect for %s, got %+v", role, d)
		}
	}
	if d := tc.client.Decide(guard.RequireAuthenticated()); d.URL() != "/login?reason=session-expired" {
		t.Fatalf("unexpected decision url %q", d.URL())
	}

	// A second 401 does not redirect again.
	_, _ = tc.client.Stages().Mine(context.Background())
	if n := tc.client.Metrics().Value(MetricSessionExpired); n != 1 {
		t.Fatalf("expected one expiry, got %d", n)
	}
}

func TestExpireWithoutSessionCarriesNoReason(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)

	if err := tc.client.Expire(context.Background()); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if st := tc.client.State(); st.Reason != "" {
		t.Fatalf("expected no reason for a visitor, got %q", st.Reason)
	}
	if d := tc.client.Decide(guard.RequireAuthenticated()); d.URL() != "/login" {
		t.Fatalf("unexpected decision url %q", d.URL())
	}
	if n := tc.client.Metrics().Value(MetricSessionExpired); n != 0 {
		t.Fatalf("expected no expiry, got %d", n)
	}

	b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_ = tc.client.Expire(context.Background())
	_ = tc.client.Expire(context.Background())
	if st := tc.client.State(); st.Reason != session.ReasonSessionExpired {
		t.Fatalf("a repeated expiry must keep the reason, got %q", st.Reason)
	}

	if err := tc.client.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if st := tc.client.State(); st.Reason != "" {
		t.Fatalf("logout must clear the reason, got %q", st.Reason)
	}
}

func TestUnauthorizedOnLoginPathDoesNotExpire(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)

	_, err := tc.client.Login(context.Background(), "nobody@example.com", "wrong")
	if !errors.Is(err, transport.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if tc.client.State().Reason != "" || len(tc.nav.Paths()) != 0 {
		t.Fatalf("login failure must not look like an expiry: %+v %v", tc.client.State(), tc.nav.Paths())
	}
}

func TestBearerOnlyOnProtectedPaths(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)
	b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := tc.client.SyncProfile(context.Background()); err != nil {
		t.Fatalf("SyncProfile failed: %v", err)
	}

	if got := b.authFor(api.PathLogin); got != "" {
		t.Fatalf("login must not carry a bearer, got %q", got)
	}
	tok, _ := tc.client.Token()
	if got := b.authFor(api.PathMe); got != "Bearer "+tok {
		t.Fatalf("expected bearer on protected path, got %q", got)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)
	b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := tc.client.Logout(context.Background()); err != nil {
			t.Fatalf("Logout %d failed: %v", i, err)
		}
	}

	st := tc.client.State()
	if st.Authenticated || st.Reason != "" || !st.Initialized {
		t.Fatalf("unexpected state after logout %+v", st)
	}
	if tc.kv.Len() != 0 {
		t.Fatalf("expected empty store, got %d", tc.kv.Len())
	}
	if got := tc.nav.Last(); got != "/login" {
		t.Fatalf("expected /login, got %q", got)
	}
	if d := tc.client.Area(user.RoleEtudiant); d.Allow || d.Reason != "" {
		t.Fatalf("explicit logout must redirect without reason, got %+v", d)
	}
}

func TestRegisterCreatesAccountAndLogsIn(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)

	rec, err := tc.client.Register(context.Background(), api.RegisterRequest{
		Nom:      "Martin",
		Prenom:   "Paul",
		Email:    "paul@example.com",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if rec.Role != user.RoleEtudiant || !tc.client.State().Authenticated {
		t.Fatalf("expected authenticated student, got %+v", rec)
	}
	if got := tc.nav.Last(); got != "/student/dashboard" {
		t.Fatalf("unexpected redirect %q", got)
	}

	_, err = tc.client.Register(context.Background(), api.RegisterRequest{Email: "paul@example.com", Password: "x"})
	var le *LoginError
	if !errors.As(err, &le) || le.Category != CategoryValidation {
		t.Fatalf("expected validation login error, got %v", err)
	}
}

func TestSyncProfile(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)

	if _, err := tc.client.SyncProfile(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	created := b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	b.mu.Lock()
	b.accounts["alice@example.com"].rec.Nom = "Durand-Leroy"
	b.mu.Unlock()

	rec, err := tc.client.SyncProfile(context.Background())
	if err != nil {
		t.Fatalf("SyncProfile failed: %v", err)
	}
	if rec.ID != created.ID || rec.Nom != "Durand-Leroy" {
		t.Fatalf("unexpected profile %+v", rec)
	}
	if tc.client.State().User.Nom != "Durand-Leroy" {
		t.Fatal("in-memory record not updated")
	}

	store := session.NewStore(tc.kv, session.DefaultKeys())
	entry, _, err := store.Load(context.Background())
	if err != nil || entry.User.Nom != "Durand-Leroy" {
		t.Fatalf("persisted record not updated: %+v %v", entry.User, err)
	}
}

func TestSyncProfileRacingLogoutPersistsNothing(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)
	b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	b.mu.Lock()
	b.beforeMe = func() {
		if err := tc.client.Logout(context.Background()); err != nil {
			t.Errorf("Logout failed: %v", err)
		}
	}
	b.mu.Unlock()

	if _, err := tc.client.SyncProfile(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if tc.kv.Len() != 0 {
		t.Fatalf("expected an empty store, got %d entries", tc.kv.Len())
	}
}

func TestStateSnapshotIsACopy(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	mustRestore(t, tc.client)
	b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	st := tc.client.State()
	st.User.Role = user.RoleAdmin
	if tc.client.State().User.Role != user.RoleEtudiant {
		t.Fatal("snapshot mutation leaked into the client")
	}
}

func TestLoginAfterCloseFails(t *testing.T) {
	b := newFakeBackend(t)
	tc := newTestClient(t, b)
	tc.client.Close()
	if _, err := tc.client.Login(context.Background(), "a@b.c", "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLoginEmitsAudit(t *testing.T) {
	b := newFakeBackend(t)
	sink := NewChannelSink(16)
	tc := newTestClient(t, b, func(bld *Builder) {
		cfg := DefaultConfig()
		cfg.Transport.BaseURL = b.srv.URL
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		bld.WithConfig(cfg).WithAuditSink(sink)
	})
	mustRestore(t, tc.client)
	b.addAccount(student(), "secret")
	if _, err := tc.client.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	tc.client.Close()

	select {
	case ev := <-sink.Events():
		if ev.EventType != AuditLoginSuccess || ev.Role != "ETUDIANT" || !ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected a login audit event")
	}
}

func TestRestoreExpiredCredentialMatchesCodec(t *testing.T) {
	rec := student()
	raw := mintToken(t, rec, time.Now().Add(-time.Second))
	if _, err := token.Check(raw, time.Now()); !errors.Is(err, token.ErrExpired) {
		t.Fatalf("codec must report expiry, got %v", err)
	}
}
