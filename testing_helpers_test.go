package goStage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goStage/api"
	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/token"
	"github.com/MrEthical07/goStage/user"
	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func mintToken(t *testing.T, rec user.Record, exp time.Time) string {
	t.Helper()
	claims := token.Claims{
		Email: rec.Email,
		Role:  rec.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   rec.Subject(),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

type account struct {
	rec      user.Record
	password string
}

// fakeBackend is an in-process stand-in for the stage server.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	accounts   map[string]*account
	nextID     int64
	loginToken func(rec user.Record) string
	// forceStatus answers every protected path with this status when set.
	forceStatus int
	loginStatus int
	// beforeMe runs inside the profile handler before it answers.
	beforeMe func()
	auth     map[string]string
	stages   map[int64]stage.Stage
	calls    []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:        t,
		accounts: map[string]*account{},
		nextID:   1,
		auth:     map[string]string{},
		stages:   map[int64]stage.Stage{},
	}
	b.loginToken = func(rec user.Record) string {
		return mintToken(t, rec, time.Now().Add(time.Hour))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.PathLogin, b.login)
	mux.HandleFunc("POST "+api.PathRegister, b.register)
	mux.HandleFunc("GET "+api.PathMe, b.protected(b.me))
	mux.HandleFunc("GET /api/stages/my-stages", b.protected(b.myStages))
	mux.HandleFunc("POST /api/stages", b.protected(b.createStage))
	mux.HandleFunc("PUT /api/stages/{id}/submit", b.protected(b.setState(stage.EnAttenteValidation)))
	mux.HandleFunc("PUT /api/stages/{id}/validate", b.protected(b.setState(stage.Valide)))
	mux.HandleFunc("PUT /api/stages/{id}/refuse", b.protected(b.setState(stage.Refuse)))
	mux.HandleFunc("PUT /api/stages/{id}/cancel", b.protected(b.setState(stage.Annule)))
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) addAccount(rec user.Record, password string) user.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec.ID = b.nextID
	b.nextID++
	b.accounts[rec.Email] = &account{rec: rec, password: password}
	return rec
}

func (b *fakeBackend) authFor(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth[path]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) record(r *http.Request) {
	b.mu.Lock()
	b.auth[r.URL.Path] = r.Header.Get("Authorization")
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	b.mu.Unlock()
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	b.mu.Lock()
	status := b.loginStatus
	b.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "rejected"})
		return
	}

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return
	}
	b.mu.Lock()
	acc, ok := b.accounts[req.Email]
	b.mu.Unlock()
	if !ok || acc.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, api.LoginResponse{
		ID:        acc.rec.ID,
		Nom:       acc.rec.Nom,
		Prenom:    acc.rec.Prenom,
		Email:     acc.rec.Email,
		Role:      acc.rec.Role,
		Token:     b.loginToken(acc.rec),
		FiliereID: acc.rec.FiliereID,
		Annee:     acc.rec.Annee,
	})
}

func (b *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid"})
		return
	}
	b.mu.Lock()
	_, exists := b.accounts[req.Email]
	b.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email already used"})
		return
	}
	role := req.Role
	if role == "" {
		role = user.RoleEtudiant
	}
	rec := b.addAccount(user.Record{Nom: req.Nom, Prenom: req.Prenom, Email: req.Email, Role: role}, req.Password)
	writeJSON(w, http.StatusCreated, rec)
}

func (b *fakeBackend) protected(next func(http.ResponseWriter, *http.Request, *token.Claims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		b.mu.Lock()
		forced := b.forceStatus
		b.mu.Unlock()
		if forced != 0 {
			writeJSON(w, forced, map[string]string{"message": "forced"})
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing bearer"})
			return
		}
		claims, err := token.Check(raw, time.Now())
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid bearer"})
			return
		}
		next(w, r, claims)
	}
}

func (b *fakeBackend) me(w http.ResponseWriter, _ *http.Request, claims *token.Claims) {
	b.mu.Lock()
	acc, ok := b.accounts[claims.Email]
	hook := b.beforeMe
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown"})
		return
	}
	writeJSON(w, http.StatusOK, acc.rec)
}

func (b *fakeBackend) myStages(w http.ResponseWriter, _ *http.Request, _ *token.Claims) {
	b.mu.Lock()
	out := make([]stage.Stage, 0, len(b.stages))
	for _, st := range b.stages {
		out = append(out, st)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) createStage(w http.ResponseWriter, r *http.Request, claims *token.Claims) {
	var d stage.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return
	}
	id, _ := strconv.ParseInt(claims.Subject, 10, 64)
	b.mu.Lock()
	st := stage.Stage{
		ID:          int64(len(b.stages) + 1),
		Sujet:       d.Sujet,
		Description: d.Description,
		Entreprise:  d.Entreprise,
		Ville:       d.Ville,
		DateDebut:   d.DateDebut,
		DateFin:     d.DateFin,
		Etat:        stage.Brouillon,
		EtudiantID:  id,
	}
	b.stages[st.ID] = st
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, st)
}

func (b *fakeBackend) setState(to stage.State) func(http.ResponseWriter, *http.Request, *token.Claims) {
	return func(w http.ResponseWriter, r *http.Request, _ *token.Claims) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad id"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		st, ok := b.stages[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "no stage"})
			return
		}
		st.Etat = to
		if enc := r.URL.Query().Get("encadrantId"); enc != "" {
			v, _ := strconv.ParseInt(enc, 10, 64)
			st.EncadrantID = &v
		}
		if c := r.URL.Query().Get("commentaire"); c != "" {
			st.CommentaireRefus = &c
		} else {
			st.CommentaireRefus = nil
		}
		b.stages[id] = st
		writeJSON(w, http.StatusOK, st)
	}
}

func (b *fakeBackend) put(st stage.Stage) {
	b.mu.Lock()
	b.stages[st.ID] = st
	b.mu.Unlock()
}

type testClient struct {
	client *Client
	kv     *session.MemoryKV
	nav    *RecordingNavigator
}

func newTestClient(t *testing.T, b *fakeBackend, opts ...func(*Builder)) testClient {
	t.Helper()
	kv := session.NewMemoryKV()
	nav := &RecordingNavigator{}
	builder := New().
		WithBaseURL(b.srv.URL).
		WithStore(kv).
		WithNavigator(nav)
	for _, opt := range opts {
		opt(builder)
	}
	c, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(c.Close)
	return testClient{client: c, kv: kv, nav: nav}
}

func seedSession(t *testing.T, kv session.KV, rec user.Record, raw string) {
	t.Helper()
	store := session.NewStore(kv, session.DefaultKeys())
	if err := store.Save(context.Background(), session.Entry{User: rec, Token: raw}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func mustRestore(t *testing.T, c *Client) session.State {
	t.Helper()
	st, err := c.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	return st
}
