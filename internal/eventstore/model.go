package eventstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status de evento esportivo
const (
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusFinished  = "finished"
)

// Resultados possíveis
const (
	OutcomeHomeWin = "homeWin"
	OutcomeAwayWin = "awayWin"
	OutcomeDraw    = "draw"
	OutcomeUnset   = "unset"
)

// Status de mercado
const (
	MarketActive    = "Active"
	MarketSuspended = "Suspended"
	MarketClosed    = "Closed"
)

// MarketStatus é uma entrada da lista ordenada marketstatus do evento.
type MarketStatus struct {
	Name   string `json:"marketName"`
	Status string `json:"status"`
}

// SportingEvent é o registro de estado de mercado de um evento esportivo.
// Odds são decimais exatas; as três são sempre gravadas juntas.
type SportingEvent struct {
	EventID     string          `json:"eventId"`
	Home        string          `json:"home"`
	Away        string          `json:"away"`
	HomeOdds    decimal.Decimal `json:"homeOdds"`
	AwayOdds    decimal.Decimal `json:"awayOdds"`
	DrawOdds    decimal.Decimal `json:"drawOdds"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	EventStatus string          `json:"eventStatus"`
	Outcome     string          `json:"outcome"`
	Markets     []MarketStatus  `json:"marketstatus,omitempty"`
}

// OutcomeOdds devolve a odd correspondente ao resultado pedido.
func (e *SportingEvent) OutcomeOdds(outcome string) (decimal.Decimal, error) {
	switch outcome {
	case OutcomeHomeWin:
		return e.HomeOdds, nil
	case OutcomeAwayWin:
		return e.AwayOdds, nil
	case OutcomeDraw:
		return e.DrawOdds, nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: outcome must be one of %s, %s, %s",
		ErrInput, OutcomeHomeWin, OutcomeAwayWin, OutcomeDraw)
}

// HistoryEntry é um snapshot dos campos mutáveis do evento, com carimbo de
// criação e expiração (timestamp + retenção).
type HistoryEntry struct {
	EventID   string
	Snapshot  SportingEvent
	Timestamp time.Time
	Expiry    time.Time
}
