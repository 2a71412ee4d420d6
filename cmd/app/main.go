package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitness-billing/internal/config"
	"fitness-billing/internal/domain/ports/adapter"
	"fitness-billing/internal/infra/api"
	pg "fitness-billing/internal/infra/db/postgres"
	"fitness-billing/internal/infra/gateway"
	"fitness-billing/internal/infra/logging"
	"fitness-billing/internal/infra/metrics"
	red "fitness-billing/internal/infra/redis"
	"fitness-billing/internal/infra/sched"
	"fitness-billing/internal/infra/telegram"
	"fitness-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	accountServiceRepo := pg.NewAccountServiceRepo(pool)
	promocodeRepo := pg.NewPromocodeRepo(pool)
	serviceRepo := pg.NewServiceRepo(pool)
	serviceCostRepo := pg.NewServiceCostRepo(pool)
	paymentMethodRepo := pg.NewPaymentMethodRepo(pool)
	actionRepo := pg.NewActionRepo(pool)

	// ---- Gateway ----
	gw := gateway.NewEripGateway(cfg.Gateway, logger)

	// ---- Notifier ----
	var notifier adapter.Notifier = telegram.NoopNotifier{}
	if cfg.Telegram.Enabled {
		n, err := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		notifier = n
	}

	// ---- Use cases ----
	promocodeUC := usecase.NewPromocodeUseCase(
		promocodeRepo, serviceCostRepo, actionRepo, tm,
		cfg.Promocode.AllowBypassCode, cfg.Promocode.BypassCode, logger,
	)
	paymentUC := usecase.NewPaymentUseCase(
		paymentRepo, accountServiceRepo, serviceCostRepo, paymentMethodRepo,
		actionRepo, promocodeUC, gw, tm,
		adapter.InvoiceMeta{
			MerchantID: cfg.Gateway.MerchantID,
			StoreName:  cfg.Gateway.StoreName,
			ServiceID:  cfg.Gateway.ServiceID,
		},
		logger,
	)
	subscriptionUC := usecase.NewSubscriptionUseCase(
		accountServiceRepo, serviceRepo, paymentRepo, paymentMethodRepo,
		actionRepo, tm, logger,
	)

	// ---- Reconciler ----
	reconciler := sched.NewPaymentReconciler(
		paymentRepo, subscriptionUC, gw, locker, notifier, cfg.Reconciler, logger,
	)
	go reconciler.Start(ctx)

	// ---- HTTP API ----
	authManager := api.NewAuthManager(cfg.API.JWTSecret, cfg.API.SessionTTL)
	srv := api.NewServer(paymentUC, subscriptionUC, promocodeUC, authManager, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
