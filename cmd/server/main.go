package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/melodex/melodex/internal/application/enrich"
	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/config"
	"github.com/melodex/melodex/internal/domain"
	infrahttp "github.com/melodex/melodex/internal/infrastructure/http"
	"github.com/melodex/melodex/internal/infrastructure/http/handler"
	"github.com/melodex/melodex/internal/infrastructure/persistence/postgres"
	"github.com/melodex/melodex/internal/observability"
	"github.com/melodex/melodex/internal/ratelimit"
	"github.com/melodex/melodex/internal/upstream/discogs"
	"github.com/melodex/melodex/internal/upstream/genius"
	"github.com/melodex/melodex/internal/upstream/spotify"
)

const defaultServiceName = "melodex-server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serviceName := cfg.Observability.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	lp, logger, err := observability.InitLogger(ctx, serviceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownProvider(lp.Shutdown, "logger")
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, serviceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownProvider(tp.Shutdown, "tracer")

	mp, err := observability.InitMeterProvider(ctx, serviceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownProvider(mp.Shutdown, "meter")

	store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second,
		AutoMigrate:     cfg.Database.AutoMigrate,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()
	slog.InfoContext(ctx, "storage initialized", "dsn", maskPassword(cfg.Database.DSN))

	gate := ratelimit.NewGate(store)
	spotifyClient := spotify.NewClient(spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
	}, gate)
	geniusClient := genius.NewClient(genius.Config{
		AccessToken: cfg.Genius.AccessToken,
	}, gate)
	discogsClient := discogs.NewClient(discogs.Config{
		Key:       cfg.Discogs.Key,
		Secret:    cfg.Discogs.Secret,
		UserAgent: cfg.Discogs.UserAgent,
	}, gate)

	registry := queue.NewRegistry()
	registry.Register(domain.TypeDiscoverArtists, enrich.NewDiscoverArtists(spotifyClient, store, store))
	registry.Register(domain.TypeAlbumPage, enrich.NewAlbumPages(spotifyClient, store, store))
	registry.Register(domain.TypeTrackPage, enrich.NewTrackPages(spotifyClient, store, store))
	registry.Register(domain.TypeProducerDiscovery, enrich.NewProducerCredits(geniusClient, discogsClient, store))
	// Invocation-surface spellings of the page handlers.
	registry.Alias("process-album-page", domain.TypeAlbumPage)
	registry.Alias("process-track-page", domain.TypeTrackPage)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "melodex"
	}
	dispatcher := queue.NewDispatcher(store, registry, queue.DispatcherConfig{
		WorkerID:          fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		MaxConcurrentJobs: cfg.Pipeline.MaxConcurrentJobs,
	})
	maintenance := queue.NewMaintenance(store, queue.MaintenanceConfig{})
	monitor := queue.NewMonitor(store, nil)
	schedule := queue.NewSchedule(queue.DefaultSchedule(), &queue.LocalInvoker{
		Dispatcher:  dispatcher,
		Maintenance: maintenance,
		Monitor:     monitor,
		Registry:    registry,
	})

	jobs := handler.NewJobs(dispatcher, maintenance, monitor, schedule, registry)
	server := infrahttp.NewAPIServer(jobs.Routes(), infrahttp.ServerConfig{
		Host:              cfg.HTTP.Host,
		Port:              cfg.HTTP.Port,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		APIToken:          cfg.Auth.APIToken,
		AllowedOrigins:    infrahttp.SplitOrigins(cfg.HTTP.AllowedOrigins),
	})

	errResult := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
		shutdownCtx, cancel := newShutdownContext(cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown timed out", "error", err)
		}
		return nil
	case err := <-errResult:
		return err
	}
}

// shutdownProvider flushes one observability provider with its own timeout so
// an unreachable collector cannot hang process exit.
func shutdownProvider(shutdown func(context.Context) error, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown provider", "provider", name, "error", err)
	}
}

// newShutdownContext creates a fresh timeout context for shutdown; the main
// context is already cancelled by then.
func newShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
