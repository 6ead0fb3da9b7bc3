package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/ontosense/internal/config"
	"github.com/agenthands/ontosense/internal/core"
	"github.com/agenthands/ontosense/internal/core/graph"
	"github.com/agenthands/ontosense/internal/core/sense"
	"github.com/agenthands/ontosense/internal/driver"
	"github.com/agenthands/ontosense/internal/encyclopedia"
	"github.com/agenthands/ontosense/internal/llm"
	"github.com/agenthands/ontosense/internal/logger"
	"github.com/agenthands/ontosense/internal/server"
	"github.com/agenthands/ontosense/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Warning: %v. Using built-in defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx := context.Background()

	var records store.RecordStore
	switch cfg.Store.Driver {
	case "memgraph":
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph, logg)
		if err != nil {
			logg.Fatal("Failed to connect to Memgraph", zap.Error(err))
		}
		defer func() { _ = d.Close(context.Background()) }()
		if err := d.BuildIndices(ctx); err != nil {
			logg.Fatal("Failed to build indices", zap.Error(err))
		}
		records = store.NewGraphStore(d)
	default:
		logg.Info("using in-memory record store")
		records = store.NewMemoryStore()
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logg.Fatal("Failed to initialize LLM client", zap.Error(err))
	}

	wiki := encyclopedia.NewWikipediaClient(cfg.Encyclopedia, logg)
	resolver := sense.NewResolver(llmClient, wiki, cfg.Meanings, logg)

	builder := graph.NewBuilder(records, logg)
	builder.Concurrency = cfg.Sync.Concurrency
	builder.Timeout = cfg.Sync.Timeout.Duration

	session := core.NewOntosense(builder, resolver, cfg, logg)
	if watcher, err := config.NewWatcher(cfgPath, logg); err != nil {
		logg.Warn("config hot reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
		watcher.OnChange(session.ReloadCatalog)
	}
	if err := session.Load(ctx); err != nil {
		logg.Warn("starting with an empty graph", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.NewServer(session, cfg.Server.AllowOrigins, logg).SetupRouter(),
	}

	go func() {
		logg.Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("llm", cfg.LLM.Provider), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("Server shutdown error", zap.Error(err))
	}
	if report := session.Synchronize(shutdownCtx); report.Err() != nil {
		logg.Warn("unsynchronized changes lost on shutdown", zap.Error(report.Err()))
	}
}
