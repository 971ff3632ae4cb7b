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

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/sharedstate/internal/config"
	"github.com/vango-dev/sharedstate/pkg/asyncstate"
	"github.com/vango-dev/sharedstate/pkg/component"
	"github.com/vango-dev/sharedstate/pkg/inspect"
	"github.com/vango-dev/sharedstate/pkg/metrics"
	"github.com/vango-dev/sharedstate/pkg/state"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		addr        string
		eventFormat string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo store behind the inspector",
		Long: `Mount the demo component tree, drive it from a ticker, and serve the
read-only inspector.

Routes:
  /          store overview
  /app       the rendered component tree
  /state     entries as JSON
  /events    websocket change feed
  /metrics   Prometheus metrics

Examples:
  sharedstate serve
  sharedstate serve --addr=0.0.0.0:8080 --events=msgpack
  SHAREDSTATE_TICK=250ms sharedstate serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if eventFormat != "" {
				cfg.EventFormat = eventFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from "+config.ConfigFileName+")")
	cmd.Flags().StringVar(&eventFormat, "events", "", "Default /events encoding: json or msgpack")

	return cmd
}

// service is the running serve command.
type service struct {
	rt      *component.Runtime
	handler http.Handler
	logger  *slog.Logger
}

func newService(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*service, error) {
	format, err := inspect.ParseFormat(cfg.EventFormat)
	if err != nil {
		return nil, err
	}

	hub := inspect.NewHub(0)
	m := metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.MetricsNamespace))
	rt := component.NewRuntime(
		component.WithLogger(logger),
		component.WithStoreOptions(state.WithObserver(hub), state.WithObserver(m)),
		component.WithAsyncOptions(asyncstate.WithLoadObserver(m), asyncstate.WithTimeout(5*time.Second)),
	)
	rt.Mount(demoApp(200 * time.Millisecond))

	r := chi.NewRouter()
	r.Handle("/app", templ.Handler(rt.Component()))
	r.Mount("/", inspect.New(rt.Store(),
		inspect.WithLogger(logger),
		inspect.WithHub(hub),
		inspect.WithGatherer(reg),
		inspect.WithFormat(format),
	))

	return &service{rt: rt, handler: r, logger: logger}, nil
}

// tick drives the demo: every tick clicks the counter, every third toggles
// the theme, every fifth refetches the profile.
func (s *service) tick(n int) {
	s.rt.Trigger(s.rt.Find("Counter"), "inc")
	if n%3 == 0 {
		s.rt.Trigger(s.rt.Find("Theme"), "toggle")
	}
	if n%5 == 0 {
		s.rt.Trigger(s.rt.Find("Profile"), "refetch")
	}
}

func (s *service) drive(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ticker.C:
			s.tick(n)
		case <-ctx.Done():
			return
		}
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cfg.Logger(os.Stderr)
	svc, err := newService(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	go svc.drive(ctx, time.Duration(cfg.Tick))

	success("Inspector running on http://%s", cfg.Addr)
	info("Ticking every %s. Press Ctrl+C to stop.", time.Duration(cfg.Tick))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	if err := svc.rt.Wait(waitCtx); err != nil {
		logger.Warn("async loads still running at exit", "error", err)
	}
	return nil
}
