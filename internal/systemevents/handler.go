package systemevents

import (
	"context"

	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
)

// Appender é a superfície do store usada pelo handler.
type Appender interface {
	Append(ctx context.Context, source, detailType string, detail []byte) (*SystemEvent, error)
}

// Handler registra na trilha de auditoria todo envelope que cruza o barramento.
type Handler struct {
	Log   *zap.Logger
	Store Appender
}

// HandleRecord grava o envelope; nunca produz evento de saída.
func (h *Handler) HandleRecord(ctx context.Context, body []byte) (*envelope.Outbound, error) {
	in, err := envelope.Parse(body)
	if err != nil {
		return nil, err
	}

	e, err := h.Store.Append(ctx, in.Source, in.DetailType, in.Detail)
	if err != nil {
		return nil, err
	}

	h.Log.Debug("system event recorded",
		zap.String("id", e.ID), zap.String("source", e.Source), zap.String("detailType", e.DetailType))
	return nil, nil
}
