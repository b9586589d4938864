package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/settlement"
	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/shared/cache"
	"github.com/betfabric/sportsbook/internal/shared/config"
	"github.com/betfabric/sportsbook/internal/shared/db"
	"github.com/betfabric/sportsbook/internal/shared/logger"
	"github.com/betfabric/sportsbook/internal/shared/metrics"
	"github.com/betfabric/sportsbook/internal/wallet"
)

func main() {
	cfg := config.Load("settlement-worker")
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

	// Consome o tópico de tasks (payload cru), não o barramento
	reader := bus.NewReader(cfg.KafkaBrokers, cfg.TopicSettlementTasks, "settlement")
	defer reader.Close()

	busWriter := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicBus)
	defer busWriter.Close()

	// Task envenenada vai pra DLQ depois das tentativas, nunca trava a fila
	dlqWriter := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementTasksDLQ)
	defer dlqWriter.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_tasks_consumed_total", Help: "tasks consumidas"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_completed_total", Help: "apostas liquidadas"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_tasks_dropped_total", Help: "tasks descartadas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, published, dropped, errorsBy)

	eventStore := eventstore.NewPostgres(pg, cfg.HistoryRetention, cfg.MarketClosePolicy)
	orch := &settlement.Orchestrator{
		Log:        log,
		Bets:       betstore.NewPostgres(pg),
		Events:     &eventstore.CachedReader{Cache: eventstore.NewCache(redisClient, 5*time.Minute), Store: eventStore},
		Funds:      wallet.NewPostgres(pg),
		BusName:    cfg.EventBusName,
		ZeroCredit: cfg.SettleZeroCredit,
	}

	consumer := &bus.Consumer{
		Log:         log,
		Reader:      reader,
		Out:         bus.NewPublisher(log, busWriter),
		DLQ:         dlqWriter,
		Handle:      orch.HandleRecord,
		Retries:     3,
		OnConsumed:  func() { consumed.Inc() },
		OnPublished: func() { published.Inc() },
		OnDropped:   func() { dropped.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error { return pg.PingContext(ctx) })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicSettlementTasks),
		zap.String("dlq", cfg.TopicSettlementTasksDLQ),
	)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
