package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	goStage "github.com/MrEthical07/goStage"
	"github.com/MrEthical07/goStage/internal/repository"
	"github.com/MrEthical07/goStage/internal/server"
	"github.com/MrEthical07/goStage/password"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/token"
)

type cli struct {
	t       *testing.T
	baseURL string
	session string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	signer, err := token.NewSigner(token.SignerConfig{
		TTL:           time.Hour,
		SigningMethod: token.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
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

	srv, err := server.New(server.Config{UploadDir: t.TempDir()}, server.Deps{
		Users:  repository.NewMemoryUsers(),
		Stages: repository.NewMemoryStages(),
		Signer: signer,
		Hasher: hasher,
		Engine: stage.NewEngine(),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &cli{
		t:       t,
		baseURL: ts.URL,
		session: filepath.Join(t.TempDir(), "session.json"),
	}
}

func (c *cli) run(args ...string) (string, string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--base-url", c.baseURL, "--session", c.session}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (c *cli) must(args ...string) string {
	c.t.Helper()
	out, stderr, err := c.run(args...)
	require.NoError(c.t, err, "stagectl %v: %s", args, stderr)
	return out
}

func TestStagectlLifecycle(t *testing.T) {
	c := newCLI(t)

	out := c.must("register", "--nom", "Petit", "--prenom", "Jean", "--email", "jean@example.com", "--password", "secret1", "--role", "enseignant")
	assert.Contains(t, out, "Jean Petit (ENSEIGNANT) with id 1")
	c.must("logout")

	out = c.must("register", "--nom", "Durand", "--prenom", "Alice", "--email", "alice@example.com", "--password", "secret2", "--filiere", "4", "--annee", "3")
	assert.Contains(t, out, "with id 2")

	out = c.must("whoami")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "ETUDIANT")

	out = c.must("stages", "create",
		"--sujet", "Plateforme de suivi",
		"--description", "Refonte",
		"--entreprise", "Acme",
		"--ville", "Lyon",
		"--debut", "2026-02-02",
		"--fin", "2026-07-31",
	)
	assert.Contains(t, out, "BROUILLON")

	out = c.must("stages", "submit", "1")
	assert.Contains(t, out, string(stage.EnAttenteValidation))

	out = c.must("stages", "mine")
	assert.Contains(t, out, "Plateforme de suivi")

	c.must("logout")
	out = c.must("login", "--email", "jean@example.com", "--password", "secret1")
	assert.Contains(t, out, "/teacher/dashboard")

	out = c.must("stages", "to-validate")
	assert.Contains(t, out, "Plateforme de suivi")

	out = c.must("stages", "validate", "1", "1")
	assert.Contains(t, out, string(stage.Valide))

	out = c.must("stages", "encadrant", "1")
	assert.Contains(t, out, "Acme")
}

func TestStagectlUploadsReport(t *testing.T) {
	c := newCLI(t)
	c.must("register", "--nom", "Petit", "--prenom", "Jean", "--email", "jean@example.com", "--password", "secret1", "--role", "ENSEIGNANT")
	c.must("logout")
	c.must("register", "--nom", "Durand", "--prenom", "Alice", "--email", "alice@example.com", "--password", "secret2")
	c.must("stages", "create", "--sujet", "S", "--entreprise", "E", "--ville", "V", "--debut", "2026-02-02", "--fin", "2026-07-31")
	c.must("stages", "submit", "1")
	c.must("logout")
	c.must("login", "--email", "jean@example.com", "--password", "secret1")
	c.must("stages", "validate", "1", "1")
	c.must("logout")
	c.must("login", "--email", "alice@example.com", "--password", "secret2")

	report := filepath.Join(t.TempDir(), "rapport.pdf")
	require.NoError(t, os.WriteFile(report, []byte("%PDF-1.4"), 0o600))

	out := c.must("stages", "upload", "1", report)
	assert.Contains(t, out, "rapport")
	assert.Contains(t, out, ".pdf")
}

func TestStagectlRequiresSession(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("stages", "mine")
	require.ErrorIs(t, err, goStage.ErrNotAuthenticated)

	_, _, err = c.run("whoami")
	require.ErrorIs(t, err, goStage.ErrNotAuthenticated)
}

func TestStagectlRejectsIllegalTransitionLocally(t *testing.T) {
	c := newCLI(t)
	c.must("register", "--nom", "Durand", "--prenom", "Alice", "--email", "alice@example.com", "--password", "secret2")
	c.must("stages", "create", "--sujet", "S", "--entreprise", "E", "--ville", "V", "--debut", "2026-02-02", "--fin", "2026-07-31")

	_, _, err := c.run("stages", "status", "1", "termine")
	require.Error(t, err)
	assert.ErrorIs(t, err, goStage.ErrIllegalTransition)
}

func TestStagectlUsageErrors(t *testing.T) {
	c := newCLI(t)

	_, stderr, err := c.run()
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "usage: stagectl")

	_, _, err = c.run("frobnicate")
	require.ErrorIs(t, err, errUsage)

	_, _, err = c.run("login", "--email", "a@example.com")
	require.ErrorIs(t, err, errUsage)
}

func TestStagectlPrintsMetrics(t *testing.T) {
	c := newCLI(t)
	c.must("register", "--nom", "Durand", "--prenom", "Alice", "--email", "alice@example.com", "--password", "secret2")

	_, stderr, err := c.run("--metrics", "login", "--email", "alice@example.com", "--password", "secret2")
	require.NoError(t, err)
	assert.Contains(t, stderr, "gostage_login_success_total 1")
	assert.True(t, strings.Contains(stderr, "gostage_login_latency_seconds_count 1"), stderr)
}
