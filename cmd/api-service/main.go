package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/api"
	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/shared/cache"
	"github.com/betfabric/sportsbook/internal/shared/config"
	"github.com/betfabric/sportsbook/internal/shared/db"
	"github.com/betfabric/sportsbook/internal/shared/logger"
	"github.com/betfabric/sportsbook/internal/shared/metrics"
	"github.com/betfabric/sportsbook/internal/systemevents"
	"github.com/betfabric/sportsbook/internal/wallet"
)

func main() {
	cfg := config.Load("api-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Mutações administrativas de mercado são republicadas no barramento
	busWriter := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicBus)
	defer busWriter.Close()

	eventStore := eventstore.NewPostgres(pg, cfg.HistoryRetention, cfg.MarketClosePolicy)
	eventCache := eventstore.NewCache(redisClient, 5*time.Minute)
	reader := &eventstore.CachedReader{
		Cache: eventCache,
		Store: eventStore,
	}
	wallets := wallet.NewPostgres(pg)
	bets := betstore.NewPostgres(pg)

	placement := &betstore.Placement{
		Log:    log,
		Events: reader,
		Funds:  wallets,
		Bets:   bets,
	}

	server := api.NewServer(
		log,
		eventStore,
		reader,
		wallets,
		bets,
		placement,
		systemevents.NewPostgres(pg),
		bus.NewPublisher(log, busWriter),
		cfg.EventBusName,
	)
	server.Cache = eventCache

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error { return pg.PingContext(ctx) })

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("api-service started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}
