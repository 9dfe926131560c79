package goStage

import (
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goStage/session"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "non-interactive valid",
			mutate:    func(c *Config) { c.Environment = session.NonInteractive },
			wantValid: true,
		},
		{
			name:      "unknown environment",
			mutate:    func(c *Config) { c.Environment = session.Environment(9) },
			wantValid: false,
		},
		{
			name:      "relative login path",
			mutate:    func(c *Config) { c.Routes.LoginPath = "login" },
			wantValid: false,
		},
		{
			name:      "login path with query",
			mutate:    func(c *Config) { c.Routes.LoginPath = "/login?x=1" },
			wantValid: false,
		},
		{
			name:      "empty root",
			mutate:    func(c *Config) { c.Routes.Root = "" },
			wantValid: false,
		},
		{
			name:      "blank user key",
			mutate:    func(c *Config) { c.Storage.UserKey = "  " },
			wantValid: false,
		},
		{
			name:      "same keys",
			mutate:    func(c *Config) { c.Storage.TokenKey = c.Storage.UserKey },
			wantValid: false,
		},
		{
			name:      "prefixed keys valid",
			mutate:    func(c *Config) { c.Storage.KeyPrefix = "stage:" },
			wantValid: true,
		},
		{
			name:      "ftp base url",
			mutate:    func(c *Config) { c.Transport.BaseURL = "ftp://example.com" },
			wantValid: false,
		},
		{
			name:      "hostless base url",
			mutate:    func(c *Config) { c.Transport.BaseURL = "http://" },
			wantValid: false,
		},
		{
			name:      "zero timeout",
			mutate:    func(c *Config) { c.Transport.RequestTimeout = 0 },
			wantValid: false,
		},
		{
			name:      "huge timeout",
			mutate:    func(c *Config) { c.Transport.RequestTimeout = time.Hour },
			wantValid: false,
		},
		{
			name:      "relative public path",
			mutate:    func(c *Config) { c.Transport.PublicPaths = []string{"api/auth/login"} },
			wantValid: false,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesPublicPaths(t *testing.T) {
	cfg := DefaultConfig()
	clone := cloneConfig(cfg)
	clone.Transport.PublicPaths[0] = "/changed"
	if cfg.Transport.PublicPaths[0] == "/changed" {
		t.Fatal("clone shares PublicPaths with the original")
	}
}

func TestBuilderRequiresStoreWhenInteractive(t *testing.T) {
	_, err := New().Build()
	if !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}

	c, err := New().WithEnvironment(session.NonInteractive).Build()
	if err != nil {
		t.Fatalf("non-interactive build failed: %v", err)
	}
	defer c.Close()
	if !c.State().Initialized {
		t.Fatal("non-interactive client must be initialized at build")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithStore(session.NewMemoryKV())
	c, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second build")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.RequestTimeout = -time.Second
	if _, err := New().WithConfig(cfg).WithStore(session.NewMemoryKV()).Build(); err == nil {
		t.Fatal("expected invalid config to fail the build")
	}
}

func TestHomeForCoversEveryRole(t *testing.T) {
	c, err := New().WithEnvironment(session.NonInteractive).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	routes := DefaultConfig().Routes
	want := map[string]string{
		"ADMIN":      routes.AdminHome,
		"ENSEIGNANT": routes.TeacherHome,
		"ETUDIANT":   routes.StudentHome,
		"SOUS_ADMIN": routes.Root,
		"admin":      routes.AdminHome,
		"":           routes.Root,
		"GUEST":      routes.Root,
	}
	for role, path := range want {
		if got := c.HomeFor(userRole(role)); got != path {
			t.Fatalf("HomeFor(%q) = %q, want %q", role, got, path)
		}
	}
}
