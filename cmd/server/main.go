package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cafeops/backend/internal/cache"
	"cafeops/backend/internal/config"
	"cafeops/backend/internal/httpapi"
	"cafeops/backend/internal/logging"
	"cafeops/backend/internal/notify"
	"cafeops/backend/internal/service"
	"cafeops/backend/internal/store"
	"cafeops/backend/internal/store/memory"
	pgstore "cafeops/backend/internal/store/postgres"
)

func main() {
	notifyUnpaid := flag.Bool("notify-unpaid", false, "send unpaid-order reminders once and exit")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.AppEnv)

	if cfg.AppEnv != "development" && len(cfg.AuthSecret) < 32 {
		log.Fatal().Msg("AUTH_SECRET must be set and at least 32 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	cacheStore := cache.Cache(cache.Noop{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	svc := service.New(repo, cacheStore, notify.NewLogNotifier(log), log, service.Options{
		LowStockThreshold: cfg.LowStockThreshold,
		UnpaidOrderAge:    time.Duration(cfg.UnpaidOrderAgeMinutes) * time.Minute,
	})

	if *notifyUnpaid {
		sent, err := svc.NotifyUnpaidOrders(ctx)
		closeAll(closers, log)
		if err != nil {
			log.Fatal().Err(err).Msg("unpaid-order reminders failed")
		}
		log.Info().Int("sent", sent).Msg("unpaid-order reminders done")
		return
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, log, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("cafeops backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	closeAll(closers, log)
	log.Info().Msg("server stopped")
}

func closeAll(closers []func() error, log zerolog.Logger) {
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}
}
