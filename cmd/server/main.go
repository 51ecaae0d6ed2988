package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modgate/internal/config"
	"modgate/internal/handlers"
	"modgate/internal/livequeue"
	"modgate/internal/metrics"
	"modgate/internal/moderation"
	"modgate/internal/routing"
	"modgate/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogging configures the global zerolog logger. Unknown levels fall
// back to info.
func setupLogging(level, format string, out io.Writer) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Pretty console logging in development, JSON in production
	if format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("MODGATE_CONFIG"))
	if err != nil {
		setupLogging("info", "console", os.Stdout)
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	log.Info().Msg("Starting modgate")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(shutdownCtx)
		}()
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer st.Close()

	registry, err := moderation.NewRegistry(cfg.ReviewersConfig)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ReviewersConfig).Msg("Failed to load reviewers")
	}
	log.Info().Int("reviewers", len(registry.ListReviewers())).Msg("Reviewer registry loaded")
	go reloadOnHangup(ctx, registry)

	hub := livequeue.NewHub()
	defer hub.Close()

	opts := []moderation.Option{moderation.WithNotifier(hub)}
	if st.timeouts != nil {
		opts = append(opts, moderation.WithTimeoutStore(st.timeouts))
	}
	coord := moderation.NewCoordinator(st.moderation, st.content, registry, cfg.Policy, opts...)

	metrics.StartCollector(ctx, metrics.StatsSource{
		ActiveTimeoutCount: func(ctx context.Context) (int, error) {
			active, err := coord.ActiveTimeouts(ctx)
			return len(active), err
		},
		PendingByTag:  coord.PendingByTag,
		ContentByKind: st.content.CountByKind,
	}, cfg.MetricsInterval)

	h := handlers.NewHandler(coord, st.content, hub, handlers.Config{
		InternalToken: cfg.InternalToken,
	})

	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   log.Logger,
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Str("url", "http://localhost:"+cfg.Port).
			Str("backend", cfg.Backend).
			Bool("redis_timeouts", st.timeouts != nil).
			Int("report_threshold", cfg.Policy.ReportThreshold).
			Dur("reject_suspension", cfg.Policy.RejectSuspension).
			Dur("new_account_cooldown", cfg.Policy.NewAccountCooldown).
			Msg("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// reloadOnHangup re-reads the reviewer list on SIGHUP.
func reloadOnHangup(ctx context.Context, registry *moderation.Registry) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := registry.Reload(); err != nil {
				log.Error().Err(err).Msg("Failed to reload reviewers")
				continue
			}
			log.Info().Int("reviewers", len(registry.ListReviewers())).Msg("Reviewers reloaded")
		}
	}
}
