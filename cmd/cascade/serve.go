package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecgard/cascade/internal/api"
	"github.com/alecgard/cascade/internal/config"
	"github.com/alecgard/cascade/internal/database"
	"github.com/alecgard/cascade/internal/metrics"
	"github.com/alecgard/cascade/internal/ratelimit"
	"github.com/alecgard/cascade/internal/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Cascade API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	files, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	a := newApp(cfg, pool)

	m := metrics.New()
	m.RegisterDBPool(func() (total, idle, acquired int32) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
	})
	a.tokens.SetObserver(m)
	a.coordinator.SetObserver(m)

	limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go pruneLimiter(ctx, limiter, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		Users:       a.users,
		Companies:   a.companies,
		Departments: a.departments,
		Roles:       a.roles,
		Tasks:       a.tasks,
		Objectives:  a.objectives,
		Hierarchy:   a.engine,
		Cascade:     a.coordinator,
		Tokens:      a.tokens,
		Files:       files,
		Limiter:     limiter,
		Metrics:     m,
		Cookie: api.CookieConfig{
			Name:   cfg.Auth.CookieName,
			MaxAge: cfg.Auth.CookieMaxAge,
			Secure: cfg.IsProduction(),
		},
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// newObjectStore uses S3 when a bucket is configured and process memory
// otherwise.
func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.Storage.Bucket == "" {
		slog.Warn("no storage bucket configured, files are kept in memory")
		return storage.NewMemoryStore("http://" + cfg.Addr() + "/files"), nil
	}

	s3, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := s3.Ping(ctx); err != nil {
		return nil, err
	}
	slog.Info("using s3 object storage", "bucket", cfg.Storage.Bucket)
	return s3, nil
}

// pruneLimiter drops idle rate limit buckets until ctx is done.
func pruneLimiter(ctx context.Context, limiter *ratelimit.Limiter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(2 * window); n > 0 {
				slog.Debug("pruned rate limit buckets", "count", n)
			}
		}
	}
}
