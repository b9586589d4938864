package wallet

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

// Ledger é a superfície do repositório usada pelo handler de cadastro.
type Ledger interface {
	Create(ctx context.Context, userID string) (*Wallet, error)
}

// Handler reage a UserSignedUp do domínio de autenticação criando a carteira
// do usuário com saldo zero e publicando WalletCreated.
type Handler struct {
	Log     *zap.Logger
	Ledger  Ledger
	BusName string
}

// HandleRecord processa um registro da fila.
// Envelope não reconhecido é ignorado (sem saída, sem mutação).
func (h *Handler) HandleRecord(ctx context.Context, body []byte) (*envelope.Outbound, error) {
	in, err := envelope.Parse(body)
	if err != nil {
		return nil, err
	}
	if !in.Is(envelope.SourceAuth, envelope.TypeUserSignedUp) {
		h.Log.Warn("unknown record type",
			zap.String("source", in.Source), zap.String("detailType", in.DetailType))
		return nil, nil
	}

	var p events.UserSignedUp
	if err := in.DecodeDetail(&p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, envelope.ErrMalformed
	}

	w, err := h.Ledger.Create(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrInput) {
			h.Log.Error("wallet create rejected", zap.String("userId", p.UserID), zap.Error(err))
			out, _ := envelope.New(envelope.SourceWallet, envelope.TypeWalletCreateFailed,
				h.BusName, events.WalletCreated{UserID: p.UserID})
			return &out, nil
		}
		return nil, err
	}

	h.Log.Info("wallet created", zap.String("userId", w.UserID))
	out, err := envelope.New(envelope.SourceWallet, envelope.TypeWalletCreated,
		h.BusName, events.WalletCreated{UserID: w.UserID})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
