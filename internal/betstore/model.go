package betstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ciclo de vida da aposta: placed → resulted → settled (linear, sem volta).
const (
	StatusPlaced   = "placed"
	StatusResulted = "resulted"
	StatusSettled  = "settled"
)

// Bet é o registro persistido, chave composta (userId, betId) com índice
// secundário por (eventId, status).
type Bet struct {
	UserID   string          `json:"userId"`
	BetID    string          `json:"betId"`
	EventID  string          `json:"eventId"`
	Outcome  string          `json:"outcome"`
	Odds     decimal.Decimal `json:"odds"`
	Amount   decimal.Decimal `json:"amount"`
	PlacedAt time.Time       `json:"placedAt"`
	Status   string          `json:"betStatus"`
}

// BetRequest é um item de uma submissão de apostas (múltiplas por chamada).
// Odds é a odd que o apostador viu; precisa bater exatamente com a odd
// corrente do evento no momento da colocação.
type BetRequest struct {
	EventID string          `json:"eventId"`
	Outcome string          `json:"outcome"`
	Odds    decimal.Decimal `json:"odds"`
	Amount  decimal.Decimal `json:"amount"`
}
