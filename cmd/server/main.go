// StratoDrive Server
//
// Features:
// - Hierarchical folder/file metadata over PostgreSQL
// - S3/MinIO blob storage
// - Per-user storage quotas
// - Soft-delete trash, starring, public visibility
// - Per-item sharing grants
// - Atomic snapshot backup and restore
// - SSE change events, Prometheus metrics, structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/api"
	"github.com/stratodrive/stratodrive/internal/auth"
	"github.com/stratodrive/stratodrive/internal/backup"
	s3blob "github.com/stratodrive/stratodrive/internal/blob/s3"
	"github.com/stratodrive/stratodrive/internal/config"
	"github.com/stratodrive/stratodrive/internal/events"
	"github.com/stratodrive/stratodrive/internal/hierarchy"
	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/postgres"
	"github.com/stratodrive/stratodrive/internal/quota"
	"github.com/stratodrive/stratodrive/internal/sharing"
	"github.com/stratodrive/stratodrive/internal/users"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("StratoDrive Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logging.Info("connecting to PostgreSQL...")
	database, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close()

	// Run migrations
	migrationsDir := findMigrationsDir()
	if migrationsDir != "" {
		logging.Info("running migrations...", zap.String("dir", migrationsDir))
		if err := database.Migrate(migrationsDir); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}
	db := database.Handle()

	// Initialize blob store
	blobs, err := s3blob.New(ctx, s3blob.Config{
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		logging.Fatal("blob store init failed", zap.Error(err))
	}
	defer blobs.Close()

	// Initialize stores
	hierarchyStore := hierarchy.NewStore(db)
	userStore := users.NewStore(db, cfg.DefaultStorageLimitMB)
	accountant := quota.NewAccountant(db)
	shareStore := sharing.NewStore(db)
	backupManager := backup.NewManager(db, hierarchyStore)
	broadcaster := events.NewBroadcaster()

	// Initialize auth and bootstrap admin
	authService := auth.NewService(userStore, cfg.JWTSecret)
	if err := authService.EnsureDefaultAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logging.Error("failed to ensure default admin", zap.Error(err))
	}

	// Create API server
	srv := api.NewServer(
		hierarchyStore, blobs, userStore, accountant,
		shareStore, backupManager, authService, broadcaster, cfg,
	)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start periodic connection metrics update
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				database.UpdateConnectionMetrics()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
