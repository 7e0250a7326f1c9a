// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/metrics"
	"github.com/luxfi/reimburse/internal/repository/memstore"
	"github.com/luxfi/reimburse/internal/syncjob"
	"github.com/luxfi/reimburse/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	port     = flag.String("port", "8080", "API server port")
	env      = flag.String("env", "development", "Environment (development/production)")
	logLevel = flag.String("log-level", "info", "Log level (debug/info/warn/error)")
)

func main() {
	flag.Parse()
	logger := log.New(*logLevel)
	defer logger.Sync()

	cfg := domain.DefaultConfig()
	store := memstore.New()
	reg := prometheus.NewRegistry()
	m := metrics.New()
	m.MustRegister(reg)

	manager := syncjob.New(devMarketplaceClient{}, store, cfg, logger, m)

	router := setupRouter(manager, store, reg)

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("reimburse-api: failed to start", log.Error(err))
		}
	}()

	logger.Info("reimburse-api: started", log.String("port", *port), log.String("env", *env))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("reimburse-api: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("reimburse-api: forced shutdown", log.Error(err))
	}
	logger.Info("reimburse-api: exited")
}

func setupRouter(manager *syncjob.Manager, store *memstore.Store, reg *prometheus.Registry) *gin.Engine {
	if *env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/sellers/:sellerId/sync", handleStartSync(manager))
		api.POST("/syncs/:syncId/cancel", handleCancelSync(manager))
		api.GET("/syncs/:syncId/events", handleSyncEvents(manager))
		api.GET("/sellers/:sellerId/detections", handleListDetections(store))
		api.GET("/detections/:detectionId/brief", handleGetBrief(store))
	}

	return router
}

func handleStartSync(manager *syncjob.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.Param("sellerId")
		syncID, err := manager.Start(c.Request.Context(), sellerID)
		if err != nil {
			if errors.Is(err, syncjob.ErrAlreadyRunning) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"syncId": syncID})
	}
}

func handleCancelSync(manager *syncjob.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		syncID := c.Param("syncId")
		if err := manager.Cancel(syncID); err != nil {
			if errors.Is(err, syncjob.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// handleSyncEvents streams progress events for the seller the syncId's
// events are published under, via gin's c.Stream/c.SSEvent (spec.md §6,
// §4.8 EXPANSION note).
func handleSyncEvents(manager *syncjob.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.Query("sellerId")
		if sellerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sellerId query param is required"})
			return
		}
		syncID := c.Param("syncId")

		events, unsubscribe := manager.Subscribe(sellerID)
		defer unsubscribe()

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				if syncID != "" && ev.SyncID != syncID {
					return true
				}
				c.SSEvent(ev.Status, ev)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

func handleListDetections(store *memstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.Param("sellerId")
		limit, offset := pageParams(c)

		var kindFilter *domain.AnomalyType
		if raw := c.Query("anomalyType"); raw != "" {
			t := domain.AnomalyType(raw)
			kindFilter = &t
		}

		results, err := store.ListDetectionResults(c.Request.Context(), sellerID, kindFilter, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"detections": results})
	}
}

func handleGetBrief(store *memstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		detectionID := c.Param("detectionId")
		b, err := store.GetBrief(c.Request.Context(), detectionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit = 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			offset = n
		}
	}
	return limit, offset
}
