package goStage

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goStage/api"
	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/transport"
	"go.uber.org/zap"
)

// Builder assembles a Client. A Builder can be built once.
type Builder struct {
	config Config
	kv     session.KV
	base   http.RoundTripper

	navigator Navigator
	logger    *zap.Logger
	auditSink AuditSink
	engine    *stage.Engine
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the durable backend of the session. It is required for an
// interactive Client and ignored for a non-interactive one.
func (b *Builder) WithStore(kv session.KV) *Builder {
	b.kv = kv
	return b
}

// WithHTTPTransport sets the round tripper under the bearer transport.
// The default is http.DefaultTransport.
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.base = rt
	return b
}

func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Transport.BaseURL = baseURL
	return b
}

func (b *Builder) WithEnvironment(env session.Environment) *Builder {
	b.config.Environment = env
	return b
}

func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithEngine replaces the default stage engine, for instance to install
// different role grants.
func (b *Builder) WithEngine(e *stage.Engine) *Builder {
	b.engine = e
	return b
}

func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready-to-restore Client.
// A non-interactive Client is already initialized as unauthenticated.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Environment == session.Interactive && b.kv == nil {
		return nil, ErrStoreRequired
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	nav := b.navigator
	if nav == nil {
		nav = nopNavigator{}
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	engine := b.engine
	if engine == nil {
		engine = stage.NewEngine(stage.WithClock(now))
	}

	c := &Client{
		config:    cfg,
		navigator: nav,
		logger:    logger.Named("session"),
		now:       now,
		ready:     make(chan struct{}),
		metrics:   NewMetrics(cfg.Metrics),
		state:     session.State{Phase: session.PhaseRestoring},
	}

	if cfg.Environment == session.Interactive {
		c.store = session.NewStore(b.kv, cfg.sessionKeys())
	}

	c.httpClient = &http.Client{
		Transport: &transport.Transport{
			Base:           b.base,
			Tokens:         c,
			OnUnauthorized: c.onUnauthorized,
			PublicPaths:    cfg.Transport.PublicPaths,
		},
	}

	backend, err := api.New(cfg.Transport.BaseURL, c.httpClient, cfg.Transport.RequestTimeout)
	if err != nil {
		return nil, err
	}
	c.api = backend

	c.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	c.stages = &Stages{client: c, engine: engine}

	if cfg.Environment == session.NonInteractive {
		c.finalize(session.State{Phase: session.PhaseUnauthenticated})
	}

	b.built = true
	return c, nil
}
