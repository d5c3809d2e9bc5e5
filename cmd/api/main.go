package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/assetledger/internal/accounts"
	"github.com/xelth-com/assetledger/internal/buildinfo"
	"github.com/xelth-com/assetledger/internal/config"
	"github.com/xelth-com/assetledger/internal/database"
	"github.com/xelth-com/assetledger/internal/handlers"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/qr"
	"github.com/xelth-com/assetledger/internal/registry"
	"github.com/xelth-com/assetledger/internal/reports"
	"github.com/xelth-com/assetledger/internal/settings"
	"github.com/xelth-com/assetledger/internal/storage"
	"github.com/xelth-com/assetledger/internal/utils"
	"github.com/xelth-com/assetledger/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)
	log.WithField("version", buildinfo.Version).Info("🚀 Asset ledger starting")

	// 2. Initialize database (embedded PostgreSQL when nothing external is configured)
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// 3. Synchronize schema
	log.Info("🚀 Synchronizing database schema...")
	if err := database.Migrate(db.DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Info("✅ Schema synchronized successfully")

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize document storage: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 4. Services
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	ledgerSvc := ledger.NewService(db.DB, ledger.WithNotifier(hub), ledger.WithDocuments(store))
	scanFlag := settings.NewScanFlag(db.DB, cfg.QR.ScanFlagTTL)
	accountSvc := accounts.NewService(db.DB, cfg.JWTSecret)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := accountSvc.EnsureAdmin(ctx, cfg.AdminEmail, "Administrator", cfg.AdminPassword)
		switch {
		case err != nil:
			log.WithError(err).Warn("⚠️ Could not create initial admin")
		case created:
			log.WithField("email", cfg.AdminEmail).Info("👤 Initial admin created")
		}
	}

	router := handlers.NewRouter(handlers.Deps{
		Config:   cfg,
		Log:      log,
		Ledger:   ledgerSvc,
		QR:       qr.NewService(db.DB, ledgerSvc, scanFlag, cfg.QR.BatchLimit),
		ScanFlag: scanFlag,
		Reports:  reports.NewService(db.DB, cfg.QR.HeadOfficeBranch),
		Registry: registry.NewService(db.DB),
		Accounts: accountSvc,
		Store:    store,
		Hub:      hub,
	})

	// 5. Start server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.Handler(),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infof("🚀 Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Warnf("⚠️  Received signal: %v. Shutting down gracefully...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}

	// closes activity sockets
	stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Info("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.WithError(err).Error("Database close error")
	}

	log.Info("✅ Shutdown complete")
}
