package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	goStage "github.com/MrEthical07/goStage"
	"github.com/MrEthical07/goStage/guard"
	"github.com/MrEthical07/goStage/internal/config"
	"github.com/MrEthical07/goStage/metrics/export/prometheus"
	"github.com/MrEthical07/goStage/session"
)

const usage = `usage: stagectl [flags] <command> [args]

commands:
  login --email E --password P
  register --nom N --prenom P --email E --password P [--role R] [--filiere ID] [--annee N]
  logout
  whoami
  stages list|mine|to-validate|search Q|show ID
  stages create --sujet S --entreprise E --ville V --debut YYYY-MM-DD --fin YYYY-MM-DD [--description D]
  stages submit|cancel|delete ID
  stages validate ID ENCADRANT_ID
  stages refuse ID COMMENT
  stages status ID STATE
  stages reassign ID ENCADRANT_ID
  stages upload ID FILE
  stages filiere|student|encadrant REF

flags:
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, pflag.ErrHelp):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "stagectl: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configFile  string
	baseURL     string
	sessionFile string
	timeout     time.Duration
	verbose     bool
	metrics     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("stagectl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVarP(&opts.configFile, "config", "c", "", "env file with CLIENT_* settings")
	fs.StringVar(&opts.baseURL, "base-url", "", "stage server URL, overrides CLIENT_BASE_URL")
	fs.StringVar(&opts.sessionFile, "session", "", "session file, overrides CLIENT_SESSION_FILE")
	fs.DurationVar(&opts.timeout, "timeout", 0, "request timeout, overrides CLIENT_REQUEST_TIMEOUT")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log session activity to stderr")
	fs.BoolVar(&opts.metrics, "metrics", false, "print client metrics to stderr on exit")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	if err := opts.resolve(); err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, opts, logger, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.client.Close()
	if opts.metrics {
		defer func() {
			_, _ = prometheus.NewExporter(a.client).WriteTo(stderr)
		}()
	}

	return a.dispatch(ctx, fs.Args())
}

// resolve fills unset options from the environment and the optional env file.
func (o *options) resolve() error {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadWithPath(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if o.baseURL == "" {
		o.baseURL = cfg.Client.BaseURL
	}
	if o.timeout <= 0 {
		o.timeout = cfg.Client.RequestTimeout
	}
	if o.sessionFile == "" {
		o.sessionFile = cfg.Client.SessionFile
	}
	if o.sessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate session file: %w", err)
		}
		o.sessionFile = filepath.Join(dir, "gostage", "session.json")
	}
	return nil
}

type app struct {
	client *goStage.Client
	out    io.Writer
	errOut io.Writer
}

func newApp(ctx context.Context, opts options, logger *zap.Logger, stdout, stderr io.Writer) (*app, error) {
	cfg := goStage.DefaultConfig()
	cfg.Transport.BaseURL = opts.baseURL
	cfg.Transport.RequestTimeout = opts.timeout
	cfg.Metrics.EnableLatencyHistograms = opts.metrics

	nav := goStage.NavigatorFunc(func(_ context.Context, path string) {
		logger.Debug("navigate", zap.String("path", path))
	})

	client, err := goStage.New().
		WithConfig(cfg).
		WithStore(session.NewFileKV(opts.sessionFile)).
		WithNavigator(nav).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, err
	}

	if _, err := client.Restore(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.WaitReady(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return &app{client: client, out: stdout, errOut: stderr}, nil
}

// requireSession fails commands that need a logged-in user.
func (a *app) requireSession() error {
	d := a.client.Decide(guard.RequireAuthenticated())
	if d.Allow {
		return nil
	}
	if d.Reason != "" {
		return fmt.Errorf("%w (%s), run stagectl login", goStage.ErrNotAuthenticated, d.Reason)
	}
	return fmt.Errorf("%w, run stagectl login", goStage.ErrNotAuthenticated)
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "stages":
		if err := a.requireSession(); err != nil {
			return err
		}
		return a.stages(ctx, rest)
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n", cmd)
		return errUsage
	}
}
