package betlock

import (
	"context"

	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

// Locker é a superfície do bet store usada pelo handler.
type Locker interface {
	LockForEvent(ctx context.Context, eventID string) ([]betstore.Bet, error)
}

// EventSource entrega a projeção do evento para enriquecer as tasks.
type EventSource interface {
	GetEvent(ctx context.Context, eventID string) (*eventstore.SportingEvent, error)
}

// TaskPublisher publica as tasks de liquidação (uma por aposta).
type TaskPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Handler trava as apostas abertas quando um evento termina e inicia uma
// liquidação por aposta (fan-out no tópico de tasks), além de publicar o
// resumo SettlementStarted no barramento. Zero apostas abertas é sucesso com
// lote vazio, não erro.
type Handler struct {
	Log     *zap.Logger
	Bets    Locker
	Events  EventSource
	Tasks   TaskPublisher
	BusName string
}

// HandleRecord processa um registro da fila.
func (h *Handler) HandleRecord(ctx context.Context, body []byte) (*envelope.Outbound, error) {
	in, err := envelope.Parse(body)
	if err != nil {
		return nil, err
	}
	if !in.Is(envelope.SourceLiveMarket, envelope.TypeEventClosed) {
		h.Log.Warn("unknown record type",
			zap.String("source", in.Source), zap.String("detailType", in.DetailType))
		return nil, nil
	}

	var p events.EventClosed
	if err := in.DecodeDetail(&p); err != nil {
		return nil, err
	}
	if p.EventID == "" {
		return nil, envelope.ErrMalformed
	}

	bets, err := h.Bets.LockForEvent(ctx, p.EventID)
	if err != nil {
		return nil, err
	}

	summary := events.EventSummary{EventID: p.EventID}
	if ev, eerr := h.Events.GetEvent(ctx, p.EventID); eerr == nil {
		summary.Home = ev.Home
		summary.Away = ev.Away
	} else {
		h.Log.Warn("event projection unavailable for settlement tasks",
			zap.String("eventId", p.EventID), zap.Error(eerr))
	}

	tasks := make([]events.SettlementTask, 0, len(bets))
	for _, b := range bets {
		task := events.SettlementTask{
			UserID:  b.UserID,
			BetID:   b.BetID,
			Outcome: b.Outcome,
			Odds:    b.Odds,
			Amount:  b.Amount,
			Event:   summary,
		}
		if err := h.Tasks.PublishJSON(ctx, b.BetID, task); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	h.Log.Info("bets locked for settlement",
		zap.String("eventId", p.EventID), zap.Int("bets", len(tasks)))

	out, err := envelope.New(envelope.SourceBetting, envelope.TypeSettlementStarted,
		h.BusName, events.SettlementStarted{EventID: p.EventID, Bets: tasks})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
