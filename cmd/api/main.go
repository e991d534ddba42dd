package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xelth-com/nfecatalog/internal/buildinfo"
	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/database"
	"github.com/xelth-com/nfecatalog/internal/handlers"
	"github.com/xelth-com/nfecatalog/internal/logger"
	"github.com/xelth-com/nfecatalog/internal/metrics"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/clients"
	"github.com/xelth-com/nfecatalog/internal/services/importer"
	"github.com/xelth-com/nfecatalog/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: "nfecatalog",
	}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.GetLogger()
	for _, w := range cfg.Catalog.Warnings() {
		lg.Warn(w)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		lg.Fatal("Failed to register metrics", zap.Error(err))
	}

	// 2. Initialize database (embedded or external)
	db, err := database.Connect(cfg.Database, lg)
	if err != nil {
		lg.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 3. Schema
	lg.Info("Synchronizing database schema")
	if err := database.Migrate(db.DB); err != nil {
		db.Close()
		lg.Fatal("Migration failed", zap.Error(err))
	}

	// 4. Services and router
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := websocket.NewHub(lg)
	go hub.Run(ctx)

	cat := catalog.New(cfg.Catalog, lg)
	cl := clients.NewService(clients.NewCNPJLookup(cfg.CNPJ), lg)
	router := handlers.NewRouter(db, handlers.Services{
		Catalog:     cat,
		Clients:     cl,
		Importer:    importer.New(cat, cl, cfg.Catalog, lg),
		Hub:         hub,
		MaxUploadMB: cfg.Catalog.MaxUploadMB,
	})

	// 5. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		lg.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("version", buildinfo.Version),
			zap.Int("min_fuzzy_score", cat.MinFuzzyScore()),
			zap.String("alias_conflict", cat.AliasConflictPolicy()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	sig := <-shutdown
	lg.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("HTTP server shutdown error", zap.Error(err))
	}
	stop()

	// Close database (this also stops embedded PostgreSQL)
	if err := db.Close(); err != nil {
		lg.Error("Database close error", zap.Error(err))
	}
	lg.Info("Shutdown complete")
}
