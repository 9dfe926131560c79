package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/internal/rate"
	"github.com/MrEthical07/goStage/internal/repository"
	"github.com/MrEthical07/goStage/password"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/token"
	"github.com/MrEthical07/goStage/user"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	t       *testing.T
	app     *httptest.Server
	users   *repository.MemoryUsers
	stages  repository.Stages
	signer  *token.Signer
	hasher  *password.Hasher
	logs    *observer.ObservedLogs
	events  *audit.ChannelSink
	uploads string
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	signer, err := token.NewSigner(token.SignerConfig{
		TTL:           time.Hour,
		SigningMethod: token.MethodHS256,
		PrivateKey:    testKey,
	})
	require.NoError(t, err)

	hasher, err := password.New(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	core, logs := observer.New(zapcore.DebugLevel)
	events := audit.NewChannelSink(64)
	dispatcher := audit.NewDispatcher(audit.Config{Enabled: true, BufferSize: 64}, events)
	t.Cleanup(dispatcher.Close)

	env := &testEnv{
		t:       t,
		users:   repository.NewMemoryUsers(),
		signer:  signer,
		hasher:  hasher,
		logs:    logs,
		events:  events,
		uploads: t.TempDir(),
	}
	deps := Deps{
		Users:   env.users,
		Stages:  repository.NewMemoryStages(),
		Signer:  signer,
		Hasher:  hasher,
		Limiter: rate.New(rdb, rate.Config{MaxAttempts: 3, Window: time.Minute}),
		Audit:   dispatcher,
		Logger:  zap.New(core),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.stages = deps.Stages

	srv, err := New(Config{UploadDir: env.uploads}, deps)
	require.NoError(t, err)
	env.app = httptest.NewServer(srv.Router())
	t.Cleanup(env.app.Close)
	return env
}

func (e *testEnv) account(rec user.Record, pw string) user.Record {
	e.t.Helper()
	hash, err := e.hasher.Hash(pw)
	require.NoError(e.t, err)
	acc, err := e.users.Create(context.Background(), repository.Account{Record: rec, PasswordHash: hash})
	require.NoError(e.t, err)
	return acc.Record
}

func (e *testEnv) tokenFor(rec user.Record) string {
	e.t.Helper()
	raw, _, err := e.signer.Issue(rec)
	require.NoError(e.t, err)
	return raw
}

func (e *testEnv) do(method, path, bearer string, body any) (*http.Response, []byte) {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.app.URL+path, rd)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, bearer)
}

func (e *testEnv) send(req *http.Request, bearer string) (*http.Response, []byte) {
	e.t.Helper()
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, data
}

func decodeStage(t *testing.T, data []byte) stage.Stage {
	t.Helper()
	var st stage.Stage
	require.NoError(t, json.Unmarshal(data, &st), string(data))
	return st
}

func studentRec() user.Record {
	filiere := int64(4)
	return user.Record{Nom: "Durand", Prenom: "Lea", Email: "lea@example.com", Role: user.RoleEtudiant, FiliereID: &filiere}
}

func teacherRec() user.Record {
	return user.Record{Nom: "Petit", Prenom: "Jean", Email: "jean@example.com", Role: user.RoleEnseignant}
}

func adminRec() user.Record {
	return user.Record{Nom: "Roux", Prenom: "Anne", Email: "anne@example.com", Role: user.RoleAdmin}
}

func fullDraft() stage.Draft {
	return stage.Draft{
		Sujet:       "Plateforme de suivi",
		Description: "Refonte du suivi des stages",
		Entreprise:  "Acme",
		Ville:       "Lyon",
		DateDebut:   stage.NewDate(2026, time.February, 2),
		DateFin:     stage.NewDate(2026, time.July, 31),
	}
}
