package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backoff"
	"github.com/xraph/vigil/client"
	"github.com/xraph/vigil/discovery"
	"github.com/xraph/vigil/middleware"
	"github.com/xraph/vigil/monitor"
)

// envPrefix is prepended to upper-cased flag names to form the environment
// variable a flag falls back to.
const envPrefix = "VIGIL_"

type rootOptions struct {
	backends  []string
	defaultID string
	logFormat string
	logLevel  string
	json      bool
	migrate   bool
	server    string
	token     string

	refreshInterval     int
	jobsPerPage         int
	enableNotifications bool
	notificationEmail   string
}

// app is the state shared by every subcommand once the root pre-run hook has
// opened the backends.
type app struct {
	opts     rootOptions
	logger   *slog.Logger
	settings vigil.Settings
	registry *discovery.Registry
	opened   []*opened
	remote   *client.Client
}

func (a *app) service(opts ...monitor.Option) *monitor.Service {
	opts = append([]monitor.Option{monitor.WithLogger(a.logger)}, opts...)
	return monitor.New(a.registry, vigil.StaticSettings(a.settings), opts...)
}

// ops returns the remote monitor when --server is set, the local one
// otherwise.
func (a *app) ops() operator {
	if a.remote != nil {
		return a.remote
	}
	return localOperator{a.service()}
}

func (a *app) close() {
	for _, o := range a.opened {
		if o.close != nil {
			o.close()
		}
	}
	a.opened = nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	defaults := vigil.DefaultSettings()

	root := &cobra.Command{
		Use:          "vigil",
		Short:        "Monitor and operate job queue backends.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindEnv(cmd.Flags()); err != nil {
				return err
			}
			return a.setup(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	f := root.PersistentFlags()
	f.StringArrayVar(&a.opts.backends, "backend", nil, "Backend as id=url; repeatable (schemes: memory, redis, postgres, sqlite, mongodb)")
	f.StringVar(&a.opts.defaultID, "default-id", vigil.DefaultConfig().DefaultBackendID, "Backend id excluded from management")
	f.StringVar(&a.opts.logFormat, "log-format", "text", "Log format (text|json)")
	f.StringVar(&a.opts.logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	f.BoolVar(&a.opts.json, "json", false, "JSON output")
	f.BoolVar(&a.opts.migrate, "migrate", false, "Create missing tables and indexes on SQL and MongoDB backends")
	f.StringVar(&a.opts.server, "server", "", "Base URL of a running monitor; commands go through its API instead of --backend")
	f.StringVar(&a.opts.token, "token", "", "Bearer token sent to --server")
	f.IntVar(&a.opts.refreshInterval, "refresh-interval", defaults.RefreshInterval, "UI refresh interval in milliseconds")
	f.IntVar(&a.opts.jobsPerPage, "jobs-per-page", defaults.JobsPerPage, "Default number of jobs listed")
	f.BoolVar(&a.opts.enableNotifications, "enable-notifications", false, "Send an email on a job's first failure")
	f.StringVar(&a.opts.notificationEmail, "notification-email", "", "Destination address for failure emails")

	root.AddCommand(
		newServeCmd(a),
		newQueuesCmd(a),
		newJobsCmd(a),
		newJobCmd(a),
		newRetryCmd(a),
		newReleaseCmd(a),
		newRetryAllCmd(a),
		newReleaseAllCmd(a),
		newBadgeCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context, logOut io.Writer) error {
	logger, err := newLogger(logOut, a.opts.logFormat, a.opts.logLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	a.settings = vigil.Settings{
		RefreshInterval:          a.opts.refreshInterval,
		JobsPerPage:              a.opts.jobsPerPage,
		EnableEmailNotifications: a.opts.enableNotifications,
		NotificationEmail:        a.opts.notificationEmail,
	}
	if err := a.settings.Validate(); err != nil {
		return err
	}

	if a.opts.server != "" {
		if len(a.opts.backends) > 0 {
			return fmt.Errorf("%w: --server and --backend are mutually exclusive", vigil.ErrInvalidBackend)
		}
		a.remote, err = client.New(a.opts.server,
			client.WithToken(a.opts.token),
			client.WithLogger(logger),
			client.WithRetry(3, backoff.DefaultStrategy()),
		)
		return err
	}

	a.registry = discovery.New(
		discovery.WithLogger(logger),
		discovery.WithDefaultID(a.opts.defaultID),
		discovery.WithMiddleware(
			middleware.Recover(logger),
			middleware.Tracing(),
			middleware.Metrics(),
			middleware.Logging(logger),
		),
	)

	for _, raw := range a.opts.backends {
		spec, err := parseBackendFlag(raw)
		if err != nil {
			a.close()
			return err
		}
		o, err := openBackend(ctx, spec, openOptions{logger: logger, migrate: a.opts.migrate})
		if err != nil {
			a.close()
			return fmt.Errorf("backend %s: %w", spec.ID, err)
		}
		a.opened = append(a.opened, o)
		a.registry.RegisterAdapter(spec.ID, o.adapter, discovery.WithChannel(spec.Channel))
		logger.Debug("backend registered",
			slog.String("backend", spec.ID),
			slog.String("scheme", spec.Scheme),
			slog.String("channel", spec.Channel),
		)
	}
	return nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

// bindEnv fills every flag the user did not set from its VIGIL_* variable.
// Array flags take a comma-separated list.
func bindEnv(fs *pflag.FlagSet) error {
	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}
		v, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}
		values := []string{v}
		if f.Value.Type() == "stringArray" {
			values = splitList(v)
		}
		for _, val := range values {
			if err := fs.Set(f.Name, val); err != nil {
				firstErr = fmt.Errorf("%s: %w", envName(f.Name), err)
				return
			}
		}
	})
	return firstErr
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
