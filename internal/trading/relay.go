package trading

import (
	"context"

	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

// Relay re-publica odds de terceiros sob o domínio interno de trading.
// É a fronteira de confiança do feed: aqui entraria o ajuste algorítmico de
// risco sobre as odds; hoje a transformação é identidade (ver Adjust).
type Relay struct {
	Log     *zap.Logger
	BusName string
}

// Adjust é o seam de risk management. Transformação identidade por enquanto.
func (r *Relay) Adjust(p events.UpdatedOdds) events.UpdatedOdds { return p }

// HandleRecord processa um registro da fila.
// Payload malformado (campos ausentes) é descartado, não reentregue.
func (r *Relay) HandleRecord(ctx context.Context, body []byte) (*envelope.Outbound, error) {
	in, err := envelope.Parse(body)
	if err != nil {
		return nil, err
	}
	if !in.Is(envelope.SourceThirdParty, envelope.TypeUpdatedOdds) {
		r.Log.Warn("unknown record type",
			zap.String("source", in.Source), zap.String("detailType", in.DetailType))
		return nil, nil
	}

	var p events.UpdatedOdds
	if err := in.DecodeDetail(&p); err != nil {
		return nil, err
	}
	if p.EventID == "" {
		return nil, envelope.ErrMalformed
	}

	out, err := envelope.New(envelope.SourceTrading, envelope.TypeUpdatedOdds, r.BusName, r.Adjust(p))
	if err != nil {
		return nil, err
	}
	return &out, nil
}
