package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/shared/config"
	"github.com/betfabric/sportsbook/internal/shared/logger"
	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

// Carrega a fixture de eventos esportivos e publica cada um como EventAdded do
// domínio de terceiros. O market-control-worker materializa os eventos no banco,
// então o seed só precisa do Kafka no ar.
func main() {
	cfg := config.Load("seed")
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	raw, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		log.Fatal("read seed file", zap.String("path", cfg.SeedFile), zap.Error(err))
	}

	var fixture []events.EventAdded
	if err := json.Unmarshal(raw, &fixture); err != nil {
		log.Fatal("parse seed file", zap.Error(err))
	}

	writer := bus.NewWriter(cfg.KafkaBrokers, cfg.TopicBus)
	defer writer.Close()
	pub := bus.NewPublisher(log, writer)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	for _, e := range fixture {
		// Eventos da fixture entram já recebendo apostas
		if e.EventStatus == "" {
			e.EventStatus = eventstore.StatusRunning
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}

		env, err := envelope.New(envelope.SourceThirdParty, envelope.TypeEventAdded, cfg.EventBusName, e)
		if err != nil {
			log.Fatal("build envelope", zap.String("eventId", e.EventID), zap.Error(err))
		}
		if err := pub.Publish(ctx, env); err != nil {
			log.Fatal("publish event", zap.String("eventId", e.EventID), zap.Error(err))
		}
		log.Info("event seeded", zap.String("eventId", e.EventID), zap.String("home", e.Home), zap.String("away", e.Away))
	}

	log.Info("seed complete", zap.Int("events", len(fixture)))
}
