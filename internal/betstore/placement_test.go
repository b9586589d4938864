package betstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/wallet"
)

type fakeEventSource struct {
	events map[string]*eventstore.SportingEvent
}

func (f *fakeEventSource) GetEvent(_ context.Context, eventID string) (*eventstore.SportingEvent, error) {
	e, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event not found", eventstore.ErrInput)
	}
	cp := *e
	return &cp, nil
}

type fakeFunds struct {
	balance decimal.Decimal
	calls   []decimal.Decimal
}

func (f *fakeFunds) Deduct(_ context.Context, userID string, amount decimal.Decimal, _ string) (*wallet.Wallet, error) {
	next := f.balance.Sub(amount)
	if next.IsNegative() {
		return nil, wallet.ErrInsufficientFunds
	}
	f.balance = next
	f.calls = append(f.calls, amount)
	return &wallet.Wallet{UserID: userID, Balance: next}, nil
}

type fakeBetWriter struct {
	created []Bet
	fail    error
}

func (f *fakeBetWriter) CreateBatch(_ context.Context, bets []Bet) error {
	if f.fail != nil {
		return f.fail
	}
	f.created = append(f.created, bets...)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func runningEvent() *eventstore.SportingEvent {
	return &eventstore.SportingEvent{
		EventID:     "ev-1",
		Home:        "Flamengo",
		Away:        "Palmeiras",
		HomeOdds:    dec("2.0"),
		AwayOdds:    dec("3.5"),
		DrawOdds:    dec("3.0"),
		EventStatus: eventstore.StatusRunning,
		Outcome:     eventstore.OutcomeUnset,
	}
}

func newPlacement(evs *fakeEventSource, funds *fakeFunds, writer *fakeBetWriter) *Placement {
	return &Placement{Log: zap.NewNop(), Events: evs, Funds: funds, Bets: writer}
}

func TestPlaceBetsDeductsTotalBeforeWrite(t *testing.T) {
	evs := &fakeEventSource{events: map[string]*eventstore.SportingEvent{"ev-1": runningEvent()}}
	funds := &fakeFunds{balance: dec("100")}
	writer := &fakeBetWriter{}

	bets, err := newPlacement(evs, funds, writer).PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "ev-1", Outcome: "homeWin", Odds: dec("2.0"), Amount: dec("10")},
		{EventID: "ev-1", Outcome: "draw", Odds: dec("3.0"), Amount: dec("5")},
	})
	require.NoError(t, err)
	require.Len(t, bets, 2)

	// Uma única dedução com o total do lote
	require.Len(t, funds.calls, 1)
	assert.True(t, dec("15").Equal(funds.calls[0]))
	assert.True(t, dec("85").Equal(funds.balance))

	assert.Len(t, writer.created, 2)
	for _, b := range bets {
		assert.Equal(t, "u1", b.UserID)
		assert.Equal(t, StatusPlaced, b.Status)
		assert.NotEmpty(t, b.BetID)
	}
	// Lote compartilha o mesmo placedAt
	assert.Equal(t, bets[0].PlacedAt, bets[1].PlacedAt)
}

func TestPlaceBetsRejectsStaleOdds(t *testing.T) {
	evs := &fakeEventSource{events: map[string]*eventstore.SportingEvent{"ev-1": runningEvent()}}
	funds := &fakeFunds{balance: dec("100")}
	writer := &fakeBetWriter{}

	_, err := newPlacement(evs, funds, writer).PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "ev-1", Outcome: "homeWin", Odds: dec("2.0"), Amount: dec("10")},
		{EventID: "ev-1", Outcome: "draw", Odds: dec("2.9"), Amount: dec("5")}, // odd defasada
	})
	require.ErrorIs(t, err, ErrInput)

	// Tudo-ou-nada: sem dedução, sem apostas gravadas
	assert.Empty(t, funds.calls)
	assert.True(t, dec("100").Equal(funds.balance))
	assert.Empty(t, writer.created)
}

func TestPlaceBetsExactDecimalMatch(t *testing.T) {
	// 2.0 e 2.00 são a mesma odd em comparação decimal, não textual
	evs := &fakeEventSource{events: map[string]*eventstore.SportingEvent{"ev-1": runningEvent()}}
	funds := &fakeFunds{balance: dec("100")}
	writer := &fakeBetWriter{}

	_, err := newPlacement(evs, funds, writer).PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "ev-1", Outcome: "homeWin", Odds: dec("2.00"), Amount: dec("10")},
	})
	assert.NoError(t, err)
}

func TestPlaceBetsInsufficientFunds(t *testing.T) {
	evs := &fakeEventSource{events: map[string]*eventstore.SportingEvent{"ev-1": runningEvent()}}
	funds := &fakeFunds{balance: dec("5")}
	writer := &fakeBetWriter{}

	_, err := newPlacement(evs, funds, writer).PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "ev-1", Outcome: "homeWin", Odds: dec("2.0"), Amount: dec("10")},
	})
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	assert.Empty(t, writer.created)
}

func TestPlaceBetsReversesStakeOnWriteFailure(t *testing.T) {
	evs := &fakeEventSource{events: map[string]*eventstore.SportingEvent{"ev-1": runningEvent()}}
	funds := &fakeFunds{balance: dec("100")}
	writer := &fakeBetWriter{fail: errors.New("db down")}

	_, err := newPlacement(evs, funds, writer).PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "ev-1", Outcome: "homeWin", Odds: dec("2.0"), Amount: dec("10")},
	})
	require.Error(t, err)

	// Estorno devolve o total deduzido
	require.Len(t, funds.calls, 2)
	assert.True(t, funds.calls[1].Equal(dec("-10")))
	assert.True(t, dec("100").Equal(funds.balance))
}

func TestPlaceBetsValidation(t *testing.T) {
	evs := &fakeEventSource{events: map[string]*eventstore.SportingEvent{"ev-1": runningEvent()}}
	p := newPlacement(evs, &fakeFunds{balance: dec("100")}, &fakeBetWriter{})

	_, err := p.PlaceBets(context.Background(), "", []BetRequest{{EventID: "ev-1"}})
	assert.ErrorIs(t, err, ErrInput)

	_, err = p.PlaceBets(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, ErrInput)

	_, err = p.PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "ev-1", Outcome: "homeWin", Odds: dec("2.0"), Amount: dec("0")},
	})
	assert.ErrorIs(t, err, ErrInput)

	_, err = p.PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "ev-1", Outcome: "banana", Odds: dec("2.0"), Amount: dec("10")},
	})
	assert.ErrorIs(t, err, eventstore.ErrInput)

	_, err = p.PlaceBets(context.Background(), "u1", []BetRequest{
		{EventID: "nope", Outcome: "homeWin", Odds: dec("2.0"), Amount: dec("10")},
	})
	assert.ErrorIs(t, err, eventstore.ErrInput)
}
