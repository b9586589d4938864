package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/shared/bus"
	"github.com/betfabric/sportsbook/internal/wallet"
	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

// BetStore é a superfície do repositório de apostas usada na liquidação.
type BetStore interface {
	Get(ctx context.Context, userID, betID string) (*betstore.Bet, error)
	Settle(ctx context.Context, userID, betID string) (bool, error)
}

// EventSource entrega o estado corrente do evento (resultado incluído).
type EventSource interface {
	GetEvent(ctx context.Context, eventID string) (*eventstore.SportingEvent, error)
}

// Funds é a superfície do ledger de carteira usada na liquidação.
type Funds interface {
	Get(ctx context.Context, userID string) (*wallet.Wallet, error)
	Deduct(ctx context.Context, userID string, amount decimal.Decimal, ref string) (*wallet.Wallet, error)
}

// Payout calcula o prêmio de uma aposta em odds decimais: acertou, recebe
// stake × odds (o stake original já está incluído); errou, recebe zero.
func Payout(eventOutcome, betOutcome string, odds, amount decimal.Decimal) decimal.Decimal {
	if eventOutcome == betOutcome {
		return odds.Mul(amount)
	}
	return decimal.Zero
}

// Orchestrator liquida uma aposta por invocação (fan-out do bet-lock).
// A sequência inteira é segura para reexecução: a transição resulted→settled
// é condicional e a carteira só é tocada enquanto a aposta está resulted.
type Orchestrator struct {
	Log     *zap.Logger
	Bets    BetStore
	Events  EventSource
	Funds   Funds
	BusName string

	// ZeroCredit mantém o crédito de valor zero em aposta perdedora (trilha
	// de auditoria no ledger); desligável por configuração.
	ZeroCredit bool
}

// HandleRecord processa uma task de liquidação (payload cru, sem envelope).
func (o *Orchestrator) HandleRecord(ctx context.Context, body []byte) (*envelope.Outbound, error) {
	var task events.SettlementTask
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("%w: %v", envelope.ErrMalformed, err)
	}
	if task.UserID == "" || task.BetID == "" {
		return nil, envelope.ErrMalformed
	}

	log := o.Log.With(zap.String("userId", task.UserID), zap.String("betId", task.BetID))

	bet, err := o.Bets.Get(ctx, task.UserID, task.BetID)
	if err != nil {
		if errors.Is(err, betstore.ErrInput) {
			log.Warn("settlement task for unknown bet", zap.Error(err))
			return nil, bus.Drop(err)
		}
		return nil, err
	}

	// Curto-circuito de reentrega: aposta já liquidada não toca a carteira
	if bet.Status == betstore.StatusSettled {
		log.Info("bet already settled, skipping")
		return nil, nil
	}
	if bet.Status != betstore.StatusResulted {
		return nil, fmt.Errorf("bet %s not locked for settlement (status %s)", bet.BetID, bet.Status)
	}

	ev, err := o.Events.GetEvent(ctx, bet.EventID)
	if err != nil {
		return nil, err
	}
	// A liquidação pressupõe que o EventClosed que a disparou já fixou o resultado
	if ev.EventStatus != eventstore.StatusFinished {
		return nil, fmt.Errorf("event %s not finished, cannot settle", ev.EventID)
	}

	payout := Payout(ev.Outcome, bet.Outcome, bet.Odds, bet.Amount)

	var w *wallet.Wallet
	if payout.IsPositive() || o.ZeroCredit {
		// Crédito via dedução negativa; perdedora gera crédito zero auditável
		w, err = o.Funds.Deduct(ctx, bet.UserID, payout.Neg(), "settlement:"+bet.BetID)
	} else {
		w, err = o.Funds.Get(ctx, bet.UserID)
	}
	if err != nil {
		return nil, err
	}

	settled, err := o.Bets.Settle(ctx, bet.UserID, bet.BetID)
	if err != nil {
		return nil, err
	}
	if !settled {
		// Outra instância liquidou no meio do caminho
		log.Warn("bet settled concurrently")
	}

	log.Info("bet settled",
		zap.String("eventOutcome", ev.Outcome), zap.String("betOutcome", bet.Outcome),
		zap.String("payout", payout.String()))

	out, err := envelope.New(envelope.SourceSettlement, envelope.TypeBetSettlementComplete,
		o.BusName, events.BetSettlementComplete{
			UserID:  bet.UserID,
			BetID:   bet.BetID,
			Payout:  payout,
			Balance: w.Balance,
		})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
