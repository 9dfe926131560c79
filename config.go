package goStage

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/transport"
)

// Config is the complete Client configuration. Start from [DefaultConfig]
// and override fields; [Builder.Build] calls Validate.
type Config struct {
	Environment session.Environment
	Routes      RoutesConfig
	Storage     StorageConfig
	Transport   TransportConfig
	Metrics     MetricsConfig
	Audit       AuditConfig
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig holds the navigation targets of login, logout and expiry.
type RoutesConfig struct {
	// LoginPath is the unauthenticated entry point.
	LoginPath   string
	AdminHome   string
	TeacherHome string
	StudentHome string
	// Root is where a role without a home area lands.
	Root string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig names the durable entries of the session.
type StorageConfig struct {
	KeyPrefix string
	UserKey   string
	TokenKey  string
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig configures backend calls.
type TransportConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// PublicPaths never carry the bearer credential and never force logout
	// on 401.
	PublicPaths []string
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters and the login latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns an interactive configuration pointed at a local
// backend.
func DefaultConfig() Config {
	return Config{
		Environment: session.Interactive,
		Routes: RoutesConfig{
			LoginPath:   "/login",
			AdminHome:   "/admin/dashboard",
			TeacherHome: "/teacher/dashboard",
			StudentHome: "/student/dashboard",
			Root:        "/",
		},
		Storage: StorageConfig{
			UserKey:  session.DefaultKeys().User,
			TokenKey: session.DefaultKeys().Token,
		},
		Transport: TransportConfig{
			BaseURL:        "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
			PublicPaths:    append([]string(nil), transport.DefaultPublicPaths...),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Transport.PublicPaths != nil {
		out.Transport.PublicPaths = append([]string(nil), cfg.Transport.PublicPaths...)
	}
	return out
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Environment != session.Interactive && c.Environment != session.NonInteractive {
		return errors.New("unknown Environment")
	}

	// Routes
	routes := []struct {
		name  string
		value string
	}{
		{"Routes LoginPath", c.Routes.LoginPath},
		{"Routes AdminHome", c.Routes.AdminHome},
		{"Routes TeacherHome", c.Routes.TeacherHome},
		{"Routes StudentHome", c.Routes.StudentHome},
		{"Routes Root", c.Routes.Root},
	}
	for _, r := range routes {
		if !strings.HasPrefix(r.value, "/") {
			return errors.New(r.name + " must be an absolute path")
		}
	}
	if strings.Contains(c.Routes.LoginPath, "?") {
		return errors.New("Routes LoginPath must not carry a query")
	}

	// Storage
	if strings.TrimSpace(c.Storage.UserKey) == "" || strings.TrimSpace(c.Storage.TokenKey) == "" {
		return errors.New("Storage UserKey and TokenKey must be set")
	}
	if c.Storage.UserKey == c.Storage.TokenKey {
		return errors.New("Storage UserKey and TokenKey must differ")
	}

	// Transport
	u, err := url.Parse(c.Transport.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Transport BaseURL must be an absolute http(s) URL")
	}
	if c.Transport.RequestTimeout <= 0 {
		return errors.New("Transport RequestTimeout must be > 0")
	}
	if c.Transport.RequestTimeout > 2*time.Minute {
		return errors.New("Transport RequestTimeout must be <= 2m")
	}
	for _, p := range c.Transport.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Transport PublicPaths entries must be absolute paths")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c *Config) sessionKeys() session.Keys {
	return session.Keys{
		Prefix: c.Storage.KeyPrefix,
		User:   c.Storage.UserKey,
		Token:  c.Storage.TokenKey,
	}
}
