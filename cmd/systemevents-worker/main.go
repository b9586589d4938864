package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/shared/config"
	"github.com/betfabric/sportsbook/internal/shared/db"
	"github.com/betfabric/sportsbook/internal/shared/logger"
	"github.com/betfabric/sportsbook/internal/shared/metrics"
	"github.com/betfabric/sportsbook/internal/systemevents"
)

func main() {
	cfg := config.Load("systemevents-worker")
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

	// Grupo próprio: a trilha de auditoria vê todo envelope do barramento
	reader := bus.NewReader(cfg.KafkaBrokers, cfg.TopicBus, "systemevents")
	defer reader.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "systemevents_records_consumed_total", Help: "registros consumidos"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "systemevents_records_dropped_total", Help: "registros descartados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "systemevents_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, dropped, errorsBy)

	handler := &systemevents.Handler{Log: log, Store: systemevents.NewPostgres(pg)}

	consumer := &bus.Consumer{
		Log:        log,
		Reader:     reader,
		Handle:     handler.HandleRecord,
		Retries:    2,
		OnConsumed: func() { consumed.Inc() },
		OnDropped:  func() { dropped.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error { return pg.PingContext(ctx) })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("systemevents-worker started", zap.String("topic", cfg.TopicBus))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
