package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/betlock"
	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/shared/cache"
	"github.com/betfabric/sportsbook/internal/shared/config"
	"github.com/betfabric/sportsbook/internal/shared/db"
	"github.com/betfabric/sportsbook/internal/shared/logger"
	"github.com/betfabric/sportsbook/internal/shared/metrics"
)

func main() {
	cfg := config.Load("bet-lock-worker")
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

	reader := bus.NewReader(cfg.KafkaBrokers, cfg.TopicBus, "bet-lock")
	defer reader.Close()

	busWriter := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicBus)
	defer busWriter.Close()

	// Fan-out: uma task de liquidação por aposta travada
	taskWriter := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementTasks)
	defer taskWriter.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_lock_records_consumed_total", Help: "registros consumidos"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_lock_records_published_total", Help: "lotes de liquidação iniciados"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_lock_records_dropped_total", Help: "registros descartados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_lock_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, published, dropped, errorsBy)

	eventStore := eventstore.NewPostgres(pg, cfg.HistoryRetention, cfg.MarketClosePolicy)
	handler := &betlock.Handler{
		Log:     log,
		Bets:    betstore.NewPostgres(pg),
		Events:  &eventstore.CachedReader{Cache: eventstore.NewCache(redisClient, 5*time.Minute), Store: eventStore},
		Tasks:   bus.NewPublisher(log, taskWriter),
		BusName: cfg.EventBusName,
	}

	consumer := &bus.Consumer{
		Log:         log,
		Reader:      reader,
		Out:         bus.NewPublisher(log, busWriter),
		Handle:      handler.HandleRecord,
		Retries:     2,
		OnConsumed:  func() { consumed.Inc() },
		OnPublished: func() { published.Inc() },
		OnDropped:   func() { dropped.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error { return pg.PingContext(ctx) })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("bet-lock-worker started",
		zap.String("consume", cfg.TopicBus),
		zap.String("tasks", cfg.TopicSettlementTasks),
	)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
