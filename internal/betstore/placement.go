package betstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/wallet"
)

// EventSource entrega a projeção corrente de um evento esportivo.
type EventSource interface {
	GetEvent(ctx context.Context, eventID string) (*eventstore.SportingEvent, error)
}

// Funds é a superfície do ledger de carteira usada na colocação.
type Funds interface {
	Deduct(ctx context.Context, userID string, amount decimal.Decimal, ref string) (*wallet.Wallet, error)
}

// BetWriter é a superfície do repositório usada pelo serviço de colocação.
type BetWriter interface {
	CreateBatch(ctx context.Context, bets []Bet) error
}

// Placement coloca lotes de apostas com semântica tudo-ou-nada:
// qualquer odd divergente aborta o lote inteiro; a dedução do total precisa
// acontecer antes de qualquer escrita de aposta (na falha da dedução, nenhuma
// aposta é gravada).
type Placement struct {
	Log    *zap.Logger
	Events EventSource
	Funds  Funds
	Bets   BetWriter
}

// PlaceBets valida e grava um lote de apostas do usuário.
// A odd de cada aposta precisa bater exatamente (igualdade decimal, sem
// tolerância) com a odd corrente do resultado pedido.
func (s *Placement) PlaceBets(ctx context.Context, userID string, reqs []BetRequest) ([]Bet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId required", ErrInput)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no bets in request", ErrInput)
	}

	placedAt := time.Now().UTC()
	total := decimal.Zero
	bets := make([]Bet, 0, len(reqs))

	for _, req := range reqs {
		if !req.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: stake must be positive", ErrInput)
		}
		ev, err := s.Events.GetEvent(ctx, req.EventID)
		if err != nil {
			return nil, err
		}
		current, err := ev.OutcomeOdds(req.Outcome)
		if err != nil {
			return nil, err
		}
		if !current.Equal(req.Odds) {
			return nil, fmt.Errorf("%w: event odds do not match bet", ErrInput)
		}

		total = total.Add(req.Amount)
		bets = append(bets, Bet{
			UserID:   userID,
			BetID:    uuid.NewString(),
			EventID:  req.EventID,
			Outcome:  req.Outcome,
			Odds:     req.Odds,
			Amount:   req.Amount,
			PlacedAt: placedAt,
			Status:   StatusPlaced,
		})
	}

	// Reserva o total antes de gravar qualquer aposta
	ref := "bet-placement:" + bets[0].BetID
	if _, err := s.Funds.Deduct(ctx, userID, total, ref); err != nil {
		return nil, err
	}

	if err := s.Bets.CreateBatch(ctx, bets); err != nil {
		// Dedução já aconteceu; estorna para não reter saldo sem aposta
		if _, rerr := s.Funds.Deduct(ctx, userID, total.Neg(), "bet-placement-reversal:"+bets[0].BetID); rerr != nil {
			s.Log.Error("stake reversal failed",
				zap.String("userId", userID), zap.String("ref", ref), zap.Error(rerr))
		}
		return nil, err
	}

	return bets, nil
}
