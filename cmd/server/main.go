package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/tour-group-coordinator/internal/config"
	"github.com/iliyamo/tour-group-coordinator/internal/database"
	"github.com/iliyamo/tour-group-coordinator/internal/queue"
	"github.com/iliyamo/tour-group-coordinator/internal/repository"
	"github.com/iliyamo/tour-group-coordinator/internal/router"
	"github.com/iliyamo/tour-group-coordinator/internal/service"
	"github.com/iliyamo/tour-group-coordinator/internal/tour"
)

func main() {
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			log.Fatalf("database: migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient() // nil when Redis is down
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NotifyConsumer {
		go func() {
			if err := queue.StartNotificationConsumer(ctx, cfg.RabbitURL); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("notify-consumer: stopped: %v", err)
			}
		}()
	}

	svc := tour.NewService(
		repository.NewSQLStore(db),
		service.NewPublisher(cfg.RabbitURL),
		tour.WithLocation(cfg.Location()),
	)

	e := router.New(router.Deps{
		Cfg:       cfg,
		Svc:       svc,
		Guides:    repository.NewGuideRepo(db),
		Tokens:    repository.NewTokenRepo(db),
		DB:        db,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s tz=%s)", addr, cfg.Env, cfg.TimeZone)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := svc.Drain(shutdownCtx); err != nil {
		log.Printf("shutdown: notifications still in flight: %v", err)
	}
}
