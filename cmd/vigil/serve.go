package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/api"
	audithook "github.com/xraph/vigil/audit_hook"
	"github.com/xraph/vigil/backoff"
	"github.com/xraph/vigil/ext"
	"github.com/xraph/vigil/monitor"
	"github.com/xraph/vigil/notify"
	"github.com/xraph/vigil/observability"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	addr        string
	monitorURL  string
	monitorPath string

	smtp        notify.SMTPConfig
	notifyRate  float64
	notifyBurst int
	audit       bool
}

func newServeCmd(a *app) *cobra.Command {
	cfg := vigil.DefaultConfig()
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor HTTP API and failure notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", ":8080", "HTTP listen address")
	f.StringVar(&opts.monitorURL, "monitor-url", cfg.MonitorURL, "Public base URL of the monitor, used in notification links")
	f.StringVar(&opts.monitorPath, "monitor-path", cfg.MonitorPath, "Monitor path appended to --monitor-url")
	f.StringVar(&opts.smtp.Host, "smtp-host", "", "SMTP host; failure emails are only logged when empty")
	f.IntVar(&opts.smtp.Port, "smtp-port", 25, "SMTP port")
	f.StringVar(&opts.smtp.Username, "smtp-username", "", "SMTP username")
	f.StringVar(&opts.smtp.Password, "smtp-password", "", "SMTP password")
	f.StringVar(&opts.smtp.From, "smtp-from", "vigil@localhost", "Sender address of failure emails")
	f.Float64Var(&opts.notifyRate, "notify-rate", 0, "Max failure emails per second (0 disables the limit)")
	f.IntVar(&opts.notifyBurst, "notify-burst", 10, "Failure email burst size when --notify-rate is set")
	f.BoolVar(&opts.audit, "audit", false, "Log an audit record for every failure, retry and release")
	return cmd
}

func (o serveOptions) mailer(logger *slog.Logger) notify.Mailer {
	if o.smtp.Host == "" {
		return &notify.LogMailer{Logger: logger}
	}
	return notify.NewSMTPMailer(o.smtp)
}

func serve(ctx context.Context, a *app, opts serveOptions) error {
	if a.remote != nil {
		return fmt.Errorf("%w: serve needs --backend, not --server", vigil.ErrInvalidBackend)
	}
	logger := a.logger
	cfg := vigil.Config{
		DefaultBackendID: a.opts.defaultID,
		MonitorURL:       opts.monitorURL,
		MonitorPath:      opts.monitorPath,
	}
	settings := vigil.StaticSettings(a.settings)

	triggerOpts := []notify.Option{
		notify.WithLogger(logger),
		notify.WithConfig(cfg),
	}
	if opts.notifyRate > 0 {
		triggerOpts = append(triggerOpts, notify.WithRateLimit(rate.Limit(opts.notifyRate), opts.notifyBurst))
	}

	extensions := ext.NewRegistry(logger)
	extensions.Register(notify.NewTrigger(settings, opts.mailer(logger), triggerOpts...))
	extensions.Register(observability.NewMetricsExtension())
	if opts.audit {
		extensions.Register(audithook.New(audithook.LogRecorder(logger), audithook.WithLogger(logger)))
	}

	svc := a.service(monitor.WithExtensions(extensions))

	unsubscribe := a.registry.Subscribe(ctx, extensions.EmitJobFailed)
	defer unsubscribe()

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           api.New(svc, nil, api.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("monitor listening",
			slog.String("addr", opts.addr),
			slog.Int("backends", len(a.opened)),
			slog.Bool("notifications", a.settings.NotificationsArmed()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("vigil: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		extensions.EmitShutdown(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	for _, o := range a.opened {
		if o.listen == nil {
			continue
		}
		g.Go(func() error {
			_ = backoff.Supervise(gctx, backoff.DefaultStrategy(), o.listen,
				func(attempt int, err error, delay time.Duration) {
					attrs := []any{
						slog.String("backend", o.spec.ID),
						slog.Int("attempt", attempt),
						slog.Duration("delay", delay),
					}
					if err != nil {
						attrs = append(attrs, slog.String("error", err.Error()))
					}
					logger.Warn("failure listener restarting", attrs...)
				},
			)
			return nil
		})
	}

	return g.Wait()
}
