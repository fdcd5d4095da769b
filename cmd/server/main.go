package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"netinv/internal/api"
	"netinv/internal/auth"
	"netinv/internal/config"
	"netinv/internal/db"
	"netinv/internal/models"
	"netinv/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn("running without database", zap.Error(err))
	}
	if database != nil {
		defer database.Close()
	}

	store := models.NewInventoryStore()
	restoreState(store, database, cfg, log)

	sessions := auth.NewManager(cfg.SessionTTL)
	ingest := services.NewIngestService(store, log)

	router := gin.New()
	router.Use(gin.Recovery())
	server := &api.Server{
		Store:    store,
		Sessions: sessions,
		Ingest:   ingest,
		Database: database,
		Log:      log,
	}
	server.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go snapshotLoop(ctx, store, database, cfg, log)

	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	saveState(store, database, cfg, log)
}

// restoreState prefers the database snapshot and falls back to the local file.
func restoreState(store *models.InventoryStore, database *sql.DB, cfg config.Config, log *zap.Logger) {
	if database != nil {
		found, err := store.LoadFromDatabase(database)
		if err != nil {
			log.Warn("database snapshot restore failed", zap.Error(err))
		} else if found {
			log.Info("state restored from database")
			return
		}
	}
	if err := store.LoadFrom(cfg.SnapshotDir); err != nil {
		log.Warn("file snapshot restore failed", zap.String("dir", cfg.SnapshotDir), zap.Error(err))
	}
}

func saveState(store *models.InventoryStore, database *sql.DB, cfg config.Config, log *zap.Logger) {
	if err := store.SaveTo(cfg.SnapshotDir); err != nil {
		log.Error("file snapshot save failed", zap.Error(err))
	}
	if database != nil {
		if err := store.SaveToDatabaseWithRetention(database, cfg.SnapshotRetention); err != nil {
			log.Error("database snapshot save failed", zap.Error(err))
		}
	}
}

func snapshotLoop(ctx context.Context, store *models.InventoryStore, database *sql.DB, cfg config.Config, log *zap.Logger) {
	ticker := time.NewTicker(cfg.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveState(store, database, cfg, log)
		}
	}
}
