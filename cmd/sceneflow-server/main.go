// Package main provides the SceneFlow play server: it serves the asset REST
// routes over the configured store, drives one headless play session over
// HTTP and exposes debug endpoints.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sceneflow/sceneflow/internal/adapters/assetapi"
	"github.com/sceneflow/sceneflow/internal/infrastructure/config"
	"github.com/sceneflow/sceneflow/internal/infrastructure/logging"
	"github.com/sceneflow/sceneflow/pkg/sceneflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := sceneflow.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer rt.Close()

	sessions := newSessionManager(rt, logger)
	defer sessions.close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(rt, sessions, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Printf("Starting SceneFlow server on %s (store: %s)", cfg.Server.Addr, cfg.Store.Kind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func newMux(rt *sceneflow.Runtime, sessions *sessionManager, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprintln(w, "SceneFlow server is running. See /healthz, /session, /api/assets, /metrics, /debug/vars, /debug/pprof/")
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ok")
	})

	// Prometheus-compatible metrics endpoint (no external deps)
	mux.HandleFunc("/metrics", promMetricsHandler)
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	mux.HandleFunc("GET /session", sessions.state)
	mux.HandleFunc("POST /session/start", sessions.start)
	mux.HandleFunc("POST /session/trigger/{id}", sessions.trigger)

	assets := assetapi.New(rt.Backend(), logger)
	mux.Handle(assetapi.Prefix+"/", assets)
	mux.Handle(assetapi.StagingPrefix, assets)
	return mux
}
