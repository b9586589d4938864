package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/marketcontrol"
	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/shared/cache"
	"github.com/betfabric/sportsbook/internal/shared/config"
	"github.com/betfabric/sportsbook/internal/shared/db"
	"github.com/betfabric/sportsbook/internal/shared/logger"
	"github.com/betfabric/sportsbook/internal/shared/metrics"
)

func main() {
	cfg := config.Load("market-control-worker")
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

	// Cache da projeção corrente, atualizado após cada mutação aplicada
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	reader := bus.NewReader(cfg.KafkaBrokers, cfg.TopicBus, "market-control")
	defer reader.Close()

	writer := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicBus)
	defer writer.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_control_records_consumed_total", Help: "registros consumidos"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_control_records_published_total", Help: "mutações republicadas sob livemarket"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_control_records_dropped_total", Help: "registros descartados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "market_control_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, published, dropped, errorsBy)

	store := eventstore.NewPostgres(pg, cfg.HistoryRetention, cfg.MarketClosePolicy)
	handler := &marketcontrol.Handler{
		Log:     log,
		Store:   store,
		Cache:   eventstore.NewCache(redisClient, 5*time.Minute),
		BusName: cfg.EventBusName,
	}

	consumer := &bus.Consumer{
		Log:         log,
		Reader:      reader,
		Out:         bus.NewPublisher(log, writer),
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

	log.Info("market-control-worker started", zap.String("topic", cfg.TopicBus))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
