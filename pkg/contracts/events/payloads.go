package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payloads (campo detail) dos envelopes trocados na esteira de liquidação.
// Odds e valores monetários usam decimal para preservar precisão exata no fio.

// UpdatedOdds carrega a atualização das três odds de um evento (sempre juntas).
type UpdatedOdds struct {
	EventID  string          `json:"eventId"`
	HomeOdds decimal.Decimal `json:"homeOdds"`
	AwayOdds decimal.Decimal `json:"awayOdds"`
	DrawOdds decimal.Decimal `json:"drawOdds"`
}

// EventClosed sinaliza o término de um evento esportivo com o resultado final.
type EventClosed struct {
	EventID     string `json:"eventId"`
	EventStatus string `json:"eventStatus,omitempty"`
	Outcome     string `json:"outcome"`
}

// MarketControl cobre MarketSuspended e MarketUnsuspended.
type MarketControl struct {
	EventID string `json:"eventId"`
	Market  string `json:"market"`
}

// EventAdded é a ingestão de um novo evento esportivo.
type EventAdded struct {
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
}

// EventSummary é a projeção do evento embutida em tasks de liquidação.
type EventSummary struct {
	EventID string `json:"eventId"`
	Home    string `json:"home,omitempty"`
	Away    string `json:"away,omitempty"`
}

// SettlementTask é a unidade de fan-out: uma task por aposta travada.
type SettlementTask struct {
	UserID  string          `json:"userId"`
	BetID   string          `json:"betId"`
	Outcome string          `json:"outcome"`
	Odds    decimal.Decimal `json:"odds"`
	Amount  decimal.Decimal `json:"amount"`
	Event   EventSummary    `json:"event"`
}

// SettlementStarted resume o lote de apostas encaminhadas para liquidação.
type SettlementStarted struct {
	EventID string           `json:"eventId"`
	Bets    []SettlementTask `json:"bets"`
}

// BetSettlementComplete é emitido após o crédito da carteira e o settle da aposta.
type BetSettlementComplete struct {
	UserID  string          `json:"userId"`
	BetID   string          `json:"betId"`
	Payout  decimal.Decimal `json:"payout"`
	Balance decimal.Decimal `json:"balance"`
}

// UserSignedUp chega do domínio de autenticação quando um usuário confirma o cadastro.
type UserSignedUp struct {
	UserID string `json:"userId"`
}

// WalletCreated / WalletCreateFailed usam o mesmo shape.
type WalletCreated struct {
	UserID string `json:"userId"`
}
