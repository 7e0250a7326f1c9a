// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/marketplace"
	"github.com/luxfi/reimburse/internal/metrics"
	"github.com/luxfi/reimburse/internal/repository"
	"github.com/luxfi/reimburse/internal/repository/memstore"
	"github.com/luxfi/reimburse/internal/scheduler"
	"github.com/luxfi/reimburse/internal/syncjob"
	"github.com/luxfi/reimburse/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	port     = flag.String("port", "8081", "health endpoint port")
	logLevel = flag.String("log-level", "info", "Log level (debug/info/warn/error)")
)

func main() {
	flag.Parse()
	logger := log.New(*logLevel)
	defer logger.Sync()

	cfg := domain.DefaultConfig()
	store := memstore.New()
	m := metrics.New()
	m.MustRegister(prometheus.NewRegistry())

	manager := syncjob.New(noopClient{}, store, cfg, logger, m)
	sched := scheduler.New(manager, sellerLister{store}, store, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sched.Run(ctx)

	srv := &http.Server{Addr: ":" + *port, Handler: healthRouter(sched)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("reimburse-scheduler: health server failed", log.Error(err))
		}
	}()

	logger.Info("reimburse-scheduler: started", log.String("port", *port))
	<-ctx.Done()

	logger.Info("reimburse-scheduler: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("reimburse-scheduler: exited")
}

// healthRouter sets up the standalone scheduler process's liveness
// endpoint, grounded on the teacher's cmd/adxd setupHTTPRoutes (a
// gorilla/mux router owning just /health, /info, /metrics for the node
// process separate from the API server's gin router).
func healthRouter(sched *scheduler.Scheduler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	}).Methods("GET")
	return r
}

// sellerLister adapts memstore.Store's SellerIDs to scheduler.SellerLister.
type sellerLister struct{ store *memstore.Store }

func (s sellerLister) ActiveSellerIDs(ctx context.Context) ([]string, error) {
	return s.store.SellerIDs(ctx)
}

// noopClient satisfies marketplace.Client for the standalone scheduler
// process. A real client is a host-application concern (spec.md §1).
type noopClient struct{}

func (noopClient) FetchPage(_ context.Context, _ domain.RecordKind, _ string, _ repository.Window, _ string) (marketplace.Page, error) {
	return marketplace.Page{}, nil
}
