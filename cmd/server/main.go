package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zitrono/totalis-supabase-sub000/internal/api"
	"github.com/zitrono/totalis-supabase-sub000/internal/config"
	"github.com/zitrono/totalis-supabase-sub000/internal/db"
	"github.com/zitrono/totalis-supabase-sub000/internal/middleware"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config (overrides TOTALIS_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[server] config: %v", err)
	}

	var store api.Store
	if cfg.MemoryStore {
		log.Printf("[server] using in-memory store")
		store = api.NewMemoryStore()
	} else {
		sqlStore, err := db.Open(cfg.SQLitePath, cfg.MigrationsDir)
		if err != nil {
			log.Fatalf("[server] open store: %v", err)
		}
		defer sqlStore.Close()
		log.Printf("[server] sqlite store at %s", cfg.SQLitePath)
		store = sqlStore
	}

	if snapshot := os.Getenv("TOTALIS_LEGACY_SNAPSHOT"); snapshot != "" {
		stats, err := api.ImportLegacySnapshot(store, snapshot)
		if err != nil {
			log.Fatalf("[server] legacy import: %v", err)
		}
		log.Printf("[server] legacy import: %d categories, %d check-ins, %d recommendations, %d skipped",
			stats.Categories, stats.CheckIns, stats.Recommendations, stats.Skipped)
	}

	mux := http.NewServeMux()
	api.NewRouter(store, cfg.Templates).Register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"version": version})
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Duration(cfg.RateLimitWindow)*time.Second)
	handler := middleware.SecureHeaders(
		middleware.CORS(
			middleware.NoStore(
				middleware.LocaleMiddleware(
					middleware.WithAuth(
						limiter.Wrap(mux))))))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[server] listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[server] shutdown: %v", err)
	}
	log.Printf("[server] stopped")
}
