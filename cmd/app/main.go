package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/application"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/adapter"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/adapters/delivery"
	pg "github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/db/postgres"
	opshttp "github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/http"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/logging"
	red "github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/redis"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/sched"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/web"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log, cfg.Runtime.Dev)
	log.Info().Bool("dev", cfg.Runtime.Dev).Msg("starting send-timing service")

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	txManager := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	counters := red.NewCounterStore(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	sendRepo := pg.NewScheduleRepo(pool, txManager)
	experimentRepo := pg.NewExperimentRepo(pool, txManager)
	cooldownRepo := pg.NewCooldownRepo(pool)

	// ---- Use-cases ----
	clock := ports.RealClock()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	hours := usecase.NewBusinessHoursPolicy(cfg.BusinessHours)
	advisor := usecase.NewOptimalTimeAdvisor(cfg.Advisor, hours, clock, rng)
	quota := usecase.NewQuotaTracker(counters, cfg.Quota, log)
	scheduler := usecase.NewSchedulerUseCase(sendRepo, quota, hours, advisor, clock, cfg.Scheduler, log)
	cooldown := usecase.NewCooldownGuard(cooldownRepo, locker, clock, cfg.Cooldown, log)
	experiments := usecase.NewExperimentManager(experimentRepo, clock, log)

	// ---- Delivery ----
	var channel adapter.DeliveryChannel
	var messages adapter.MessageStore
	switch cfg.Delivery.Mode {
	case "telegram":
		channel, err = delivery.NewTelegramChannel(cfg.Delivery.TelegramToken, log)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram channel init failed")
		}
		messages = delivery.NewHTTPMessageStore(cfg.Delivery.AgentURL, cfg.Delivery.AgentTimeout)
	case "agent":
		channel = delivery.NewAgentChannel(cfg.Delivery.AgentURL, cfg.Delivery.AgentTimeout, log)
		messages = delivery.NewHTTPMessageStore(cfg.Delivery.AgentURL, cfg.Delivery.AgentTimeout)
	default:
		channel = delivery.NewNoopChannel(log)
		messages = delivery.NewPassthroughMessageStore()
	}

	// ---- Queue worker ----
	worker := sched.NewQueueWorker(sendRepo, messages, channel, experiments, clock, cfg.Queue, log)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("queue worker stopped")
		}
	}()

	// ---- Operator API ----
	facade := application.NewOutreachFacade(scheduler, cooldown, experiments, cfg.Experiment, log)
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", 30*time.Minute)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: web.NewServer(facade, auth, log).Router(),
	}
	go func() {
		log.Info().Int("port", cfg.Admin.Port).Msg("operator api listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("operator api stopped")
		}
	}()

	// ---- Health / metrics ----
	ops := opshttp.NewServer(cfg.Admin.Port+1, log)
	go func() {
		if err := ops.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops server stopped")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("operator api shutdown")
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown")
	}
	log.Info().Msg("bye")
}
