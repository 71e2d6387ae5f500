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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/mshuvalov/storefront/internal/cart"
	"github.com/mshuvalov/storefront/internal/catalog"
	"github.com/mshuvalov/storefront/internal/config"
	"github.com/mshuvalov/storefront/internal/events"
	"github.com/mshuvalov/storefront/internal/handlers"
	"github.com/mshuvalov/storefront/internal/logging"
	"github.com/mshuvalov/storefront/internal/metrics"
	"github.com/mshuvalov/storefront/internal/middleware"
	"github.com/mshuvalov/storefront/internal/notify"
	"github.com/mshuvalov/storefront/internal/session"
	httpserver "github.com/mshuvalov/storefront/internal/transport/http"
	"github.com/mshuvalov/storefront/pkg/storeapi"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.UpstreamURL, "UPSTREAM_URL")
	config.MustNonEmptyBytes(cfg.SessionSecret, "SESSION_SECRET")

	logger := logging.New(cfg.LogLevel)

	db, err := session.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("session db init failed: %v", err)
	}

	collector := metrics.NewCollector()
	upstream := storeapi.NewClient(cfg.UpstreamURL, collector)

	sessions := &session.Store{DB: db}
	codec := &session.CookieCodec{Secret: cfg.SessionSecret}
	center := notify.NewCenter(sessions, collector)

	var search *catalog.SearchIndex
	if cfg.ESURL != "" {
		esClient, err := catalog.NewESClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch init failed: %v", err)
		}
		search = &catalog.SearchIndex{ES: esClient, Index: cfg.ESIndex}
	}

	producer := events.NewProducer(cfg.KafkaBrokers)

	drafts := cart.NewRegistry()
	defer drafts.Stop()

	authLimiter := middleware.NewRateLimiter(rate.Limit(2), 30)
	defer authLimiter.Stop()

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Session: &middleware.Session{Sessions: sessions, Codec: codec},
		AuthHandler: &handlers.AuthHandler{
			Upstream: upstream,
			Sessions: sessions,
			Notify:   center,
			Producer: producer,
			Drafts:   drafts,
		},
		CartHandler: &handlers.CartHandler{
			Upstream: upstream,
			Drafts:   drafts,
			Notify:   center,
			Producer: producer,
		},
		ProductHandler: &handlers.ProductHandler{
			Upstream: upstream,
			Cache:    catalog.NewCache(upstream, collector),
			Search:   search,
		},
		NotificationHandler: &handlers.NotificationHandler{Notify: center},
		AuthLimiter:         authLimiter,
		Metrics:             collector.Handler(),
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()
	logger.Info("storefront started", "addr", cfg.Addr, "upstream", cfg.UpstreamURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
