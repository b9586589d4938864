package dto

import "github.com/shopspring/decimal"

// BetInput replica o contrato de criação de aposta: as odds enviadas devem
// bater com as odds correntes do evento no momento da aceitação.
type BetInput struct {
	EventID string          `json:"eventId" validate:"required"`
	Outcome string          `json:"outcome" validate:"required,oneof=homeWin awayWin draw"`
	Odds    decimal.Decimal `json:"odds"`
	Amount  decimal.Decimal `json:"amount"`
}

type CreateBetsRequest struct {
	Bets []BetInput `json:"bets" validate:"required,min=1,dive"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type CreateWalletRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type DeductFundsRequest struct {
	UserID string          `json:"userId" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type MarketRequest struct {
	Market string `json:"market" validate:"required"`
}
