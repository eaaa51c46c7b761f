// dealscout — marketplace deal monitor.
//
// Sweeps every active saved search on a cron interval, evaluates new
// listings with a web-search-grounded AI model, and emails good-deal
// digests. Also exposes manual scan triggers for the dashboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealscout/internal/config"
	"dealscout/internal/db"
	"dealscout/internal/evaluator"
	"dealscout/internal/notifier"
	"dealscout/internal/scanner"
	"dealscout/internal/scheduler"
	"dealscout/internal/scraper"
)

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] Config error: %v", err)
	}

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[main] Postgres error: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("[main] Schema error: %v", err)
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[main] Redis error: %v", err)
	}
	defer rdb.Close()

	browser := scraper.NewBrowser(cfg.Headless)
	defer browser.Close()

	var eval scanner.Evaluator
	if cfg.GeminiAPIKey != "" {
		ev, err := evaluator.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("[main] Evaluator error: %v", err)
		}
		defer ev.Close()
		eval = ev
	} else {
		log.Println("[main] GEMINI_API_KEY not set — scans will refuse to run")
	}

	sc := scanner.New(
		scanner.NewPGStore(pool),
		scraper.New(browser),
		eval,
		notifier.New(cfg.ResendAPIKey, cfg.AlertFrom),
	)

	sched := scheduler.New(rdb, sc, cfg.ScanIntervalHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[main] Scheduler error: %v", err)
	}
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: "dealscout", Version: "0.1.0"})
	})
	mux.HandleFunc("POST /scan", func(w http.ResponseWriter, r *http.Request) {
		sum, err := sched.TriggerSweep(r.Context())
		if errors.Is(err, scheduler.ErrCooldown) {
			writeError(w, http.StatusConflict, "a sweep is already in progress")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})
	mux.HandleFunc("POST /scan/{id}", func(w http.ResponseWriter, r *http.Request) {
		res, err := sched.TriggerSearch(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, scheduler.ErrCooldown):
			writeError(w, http.StatusTooManyRequests, "this search was scanned recently — try again later")
		case errors.Is(err, scanner.ErrEvaluatorUnavailable):
			writeError(w, http.StatusServiceUnavailable, "evaluation is not configured")
		case err != nil:
			// Manual scans surface their fatal error to the caller.
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, res)
		}
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
	}
	go func() {
		log.Printf("[main] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] HTTP shutdown error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
