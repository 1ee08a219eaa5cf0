/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/adapters/openai"
	"github.com/HamedShams/sprint-pulse/internal/adapters/telegram"
	"github.com/HamedShams/sprint-pulse/internal/analysis"
	"github.com/HamedShams/sprint-pulse/internal/config"
	apihttp "github.com/HamedShams/sprint-pulse/internal/http"
	"github.com/HamedShams/sprint-pulse/internal/jobs"
	"github.com/HamedShams/sprint-pulse/internal/logger"
	"github.com/HamedShams/sprint-pulse/internal/queue"
	"github.com/HamedShams/sprint-pulse/internal/repo"
	"github.com/HamedShams/sprint-pulse/internal/services"
	"github.com/HamedShams/sprint-pulse/internal/vectorstore"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db := repo.MustOpen(ctx, cfg, log)
	defer db.Close()
	repository := repo.NewRepository(db, log)
	if err := repository.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Queue
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
	}
	pingCancel()
	q := queue.New(rdb, cfg.QueuePrefix, cfg.QueueMaxAttempts, log)

	// Adapters
	llm := openai.NewClient(cfg, log)
	tg := telegram.NewClient(cfg, log)
	ai := analysis.NewAI(llm, log)

	var vectors services.VectorStore
	qctx, qcancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := vectorstore.Open(qctx, cfg, llm, log)
	qcancel()
	if err != nil {
		log.Warn().Err(err).Msg("qdrant unavailable; standup indexing disabled")
	} else {
		defer store.Close()
		vectors = store
	}

	// Services
	svc := services.New(cfg, log, repository, q, ai, vectors)

	worker := jobs.NewWorker(cfg, log, q, svc, tg)
	worker.Start(ctx)
	defer worker.Stop()

	// Cron
	cron, err := jobs.NewCron(cfg, log, repository, q)
	if err != nil {
		log.Fatal().Err(err).Msg("cron setup failed")
	}
	cron.Start()
	defer cron.Stop()

	// HTTP server (Gin)
	router := apihttp.NewRouter(apihttp.NewHandlers(cfg, log, svc, q, repository), log)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: cfg.HTTPTimeout}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")

	// graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
