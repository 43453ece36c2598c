package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rodrigomiquilino/wwm-review/internal/access"
	"github.com/rodrigomiquilino/wwm-review/internal/cache"
	"github.com/rodrigomiquilino/wwm-review/internal/cart"
	"github.com/rodrigomiquilino/wwm-review/internal/config"
	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/internal/httpapi"
	"github.com/rodrigomiquilino/wwm-review/internal/persistence"
	"github.com/rodrigomiquilino/wwm-review/internal/review"
	"github.com/rodrigomiquilino/wwm-review/internal/service"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// Initialize configuration
	cfg, err := config.New()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.Data.DBPath())
	if err != nil {
		log.Fatal("Failed to open local store:", err)
	}
	defer store.Close()

	client, err := github.NewClient(cfg.GitHub)
	if err != nil {
		log.Fatal("Failed to create GitHub client:", err)
	}

	suggestionCart := cart.New(store)
	readCache := cache.New(store, cfg.Cache.DefaultTTL)

	cronEng := cron.New()
	hub := service.NewHub(*cfg, client, client, suggestionCart, readCache, cronEng)
	submitter := review.NewSubmitter(client, suggestionCart, readCache.WithTTL(cfg.Cache.PendingTTL), cfg.Translation)
	gate := access.NewGate(client, cfg.GitHub)
	adjudicator := review.NewAdjudicator(client, gate, readCache.WithTTL(cfg.Cache.AdminTTL))

	srv := httpapi.NewServer(hub, submitter, httpapi.WithAdmin(adjudicator, gate))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runWithComponents(ctx, cfg, hub, cronEng, srv); err != nil {
		log.Fatal(err)
	}
}

func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, cronEng cronEngine, httpSrv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	cronEng.Start()
	defer cronEng.Stop()

	errCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe(cfg.HTTP.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
