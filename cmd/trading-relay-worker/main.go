package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/shared/config"
	"github.com/betfabric/sportsbook/internal/shared/logger"
	"github.com/betfabric/sportsbook/internal/shared/metrics"
	"github.com/betfabric/sportsbook/internal/trading"
)

func main() {
	cfg := config.Load("trading-relay-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Consome o barramento com grupo próprio e republica no mesmo tópico
	reader := bus.NewReader(cfg.KafkaBrokers, cfg.TopicBus, "trading-relay")
	defer reader.Close()

	writer := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicBus)
	defer writer.Close()

	// Métricas Prometheus do relay
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "trading_relay_records_consumed_total", Help: "registros consumidos"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "trading_relay_records_published_total", Help: "odds republicadas sob trading"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "trading_relay_records_dropped_total", Help: "registros descartados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "trading_relay_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, published, dropped, errorsBy)

	relay := &trading.Relay{Log: log, BusName: cfg.EventBusName}

	consumer := &bus.Consumer{
		Log:         log,
		Reader:      reader,
		Out:         bus.NewPublisher(log, writer),
		Handle:      relay.HandleRecord,
		OnConsumed:  func() { consumed.Inc() },
		OnPublished: func() { published.Inc() },
		OnDropped:   func() { dropped.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("trading-relay-worker started", zap.String("topic", cfg.TopicBus))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
