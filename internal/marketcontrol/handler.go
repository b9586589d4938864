package marketcontrol

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

// Store é a superfície do event store usada pelo handler.
type Store interface {
	UpdateOdds(ctx context.Context, eventID string, home, away, draw decimal.Decimal) (*eventstore.SportingEvent, error)
	SuspendMarket(ctx context.Context, eventID, market string) (*eventstore.SportingEvent, error)
	UnsuspendMarket(ctx context.Context, eventID, market string) (*eventstore.SportingEvent, error)
	FinishEvent(ctx context.Context, eventID, outcome string) (*eventstore.SportingEvent, error)
	AddEvent(ctx context.Context, e *eventstore.SportingEvent) (*eventstore.SportingEvent, error)
}

// Cache é opcional: quando presente, a projeção corrente é atualizada após
// cada mutação aplicada.
type Cache interface {
	SetCurrent(ctx context.Context, e *eventstore.SportingEvent) error
}

// Handler aplica atualizações de odds, suspensões e término de eventos ao
// event store e republica o payload normalizado sob o domínio livemarket.
// Falha de mutação (evento inexistente, validação) vira descarte logado do
// registro; a reentrega fica por conta da política da fila.
type Handler struct {
	Log     *zap.Logger
	Store   Store
	Cache   Cache
	BusName string
}

// HandleRecord despacha um registro pelo par (source, detail-type).
func (h *Handler) HandleRecord(ctx context.Context, body []byte) (*envelope.Outbound, error) {
	in, err := envelope.Parse(body)
	if err != nil {
		return nil, err
	}

	switch {
	case in.Is(envelope.SourceTrading, envelope.TypeUpdatedOdds):
		return h.handleUpdatedOdds(ctx, in)
	case in.Is(envelope.SourceThirdParty, envelope.TypeEventClosed):
		return h.handleEventClosed(ctx, in)
	case in.Is(envelope.SourceThirdParty, envelope.TypeMarketSuspended):
		return h.handleMarket(ctx, in, envelope.TypeMarketSuspended, h.Store.SuspendMarket)
	case in.Is(envelope.SourceThirdParty, envelope.TypeMarketUnsuspended):
		return h.handleMarket(ctx, in, envelope.TypeMarketUnsuspended, h.Store.UnsuspendMarket)
	case in.Is(envelope.SourceThirdParty, envelope.TypeEventAdded):
		return h.handleEventAdded(ctx, in)
	}

	h.Log.Warn("unknown record type",
		zap.String("source", in.Source), zap.String("detailType", in.DetailType))
	return nil, nil
}

func (h *Handler) handleUpdatedOdds(ctx context.Context, in envelope.Inbound) (*envelope.Outbound, error) {
	var p events.UpdatedOdds
	if err := in.DecodeDetail(&p); err != nil {
		return nil, err
	}
	ev, err := h.Store.UpdateOdds(ctx, p.EventID, p.HomeOdds, p.AwayOdds, p.DrawOdds)
	if err != nil {
		return nil, h.storeErr("update odds", p.EventID, err)
	}
	h.refresh(ctx, ev)

	h.Log.Info("odds updated", zap.String("eventId", p.EventID))
	return h.form(envelope.TypeUpdatedOdds, p)
}

func (h *Handler) handleEventClosed(ctx context.Context, in envelope.Inbound) (*envelope.Outbound, error) {
	var p events.EventClosed
	if err := in.DecodeDetail(&p); err != nil {
		return nil, err
	}
	ev, err := h.Store.FinishEvent(ctx, p.EventID, p.Outcome)
	if err != nil {
		return nil, h.storeErr("finish event", p.EventID, err)
	}
	h.refresh(ctx, ev)

	h.Log.Info("event finished",
		zap.String("eventId", p.EventID), zap.String("outcome", p.Outcome))
	return h.form(envelope.TypeEventClosed, events.EventClosed{
		EventID:     p.EventID,
		EventStatus: eventstore.StatusFinished,
		Outcome:     p.Outcome,
	})
}

func (h *Handler) handleMarket(
	ctx context.Context,
	in envelope.Inbound,
	detailType string,
	apply func(context.Context, string, string) (*eventstore.SportingEvent, error),
) (*envelope.Outbound, error) {
	var p events.MarketControl
	if err := in.DecodeDetail(&p); err != nil {
		return nil, err
	}
	ev, err := apply(ctx, p.EventID, p.Market)
	if err != nil {
		return nil, h.storeErr("market control", p.EventID, err)
	}
	h.refresh(ctx, ev)

	h.Log.Info("market status applied",
		zap.String("eventId", p.EventID), zap.String("market", p.Market),
		zap.String("detailType", detailType))
	return h.form(detailType, p)
}

func (h *Handler) handleEventAdded(ctx context.Context, in envelope.Inbound) (*envelope.Outbound, error) {
	var p events.EventAdded
	if err := in.DecodeDetail(&p); err != nil {
		return nil, err
	}
	ev, err := h.Store.AddEvent(ctx, &eventstore.SportingEvent{
		EventID:     p.EventID,
		Home:        p.Home,
		Away:        p.Away,
		HomeOdds:    p.HomeOdds,
		AwayOdds:    p.AwayOdds,
		DrawOdds:    p.DrawOdds,
		Start:       p.Start,
		End:         p.End,
		UpdatedAt:   p.UpdatedAt,
		EventStatus: p.EventStatus,
	})
	if err != nil {
		return nil, h.storeErr("add event", p.EventID, err)
	}
	h.refresh(ctx, ev)

	h.Log.Info("event added", zap.String("eventId", p.EventID))
	return h.form(envelope.TypeEventAdded, p)
}

// storeErr converte erro de domínio em descarte; erro inesperado propaga para
// reentrega.
func (h *Handler) storeErr(op, eventID string, err error) error {
	if errors.Is(err, eventstore.ErrInput) {
		h.Log.Warn(op+" rejected", zap.String("eventId", eventID), zap.Error(err))
		return bus.Drop(err)
	}
	return err
}

func (h *Handler) refresh(ctx context.Context, ev *eventstore.SportingEvent) {
	if h.Cache == nil || ev == nil {
		return
	}
	if err := h.Cache.SetCurrent(ctx, ev); err != nil {
		h.Log.Warn("cache refresh failed", zap.String("eventId", ev.EventID), zap.Error(err))
	}
}

func (h *Handler) form(detailType string, detail any) (*envelope.Outbound, error) {
	out, err := envelope.New(envelope.SourceLiveMarket, detailType, h.BusName, detail)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
