package dto

import (
	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/systemevents"
	"github.com/betfabric/sportsbook/internal/wallet"
)

// Discriminadores da união de resposta. Os clientes ramificam por __typename.
const (
	KindEvent             = "Event"
	KindEventList         = "EventList"
	KindWallet            = "Wallet"
	KindBetList           = "BetList"
	KindSystemEventList   = "SystemEventList"
	KindInputError        = "InputError"
	KindNotFoundError     = "NotFoundError"
	KindInsufficientFunds = "InsufficientFundsError"
	KindUnknownError      = "UnknownError"
)

// Error é a variante de erro da união: {errorKind, message}.
type Error struct {
	Typename string `json:"__typename"`
	Message  string `json:"message"`
}

// Event é a variante de sucesso com a entidade embutida.
type Event struct {
	Typename string `json:"__typename"`
	eventstore.SportingEvent
}

type EventList struct {
	Typename  string                     `json:"__typename"`
	Items     []eventstore.SportingEvent `json:"items"`
	NextToken string                     `json:"nextToken,omitempty"`
}

type Wallet struct {
	Typename string `json:"__typename"`
	wallet.Wallet
}

// BetItem junta a aposta com a projeção corrente do evento para exibição.
type BetItem struct {
	betstore.Bet
	Event *eventstore.SportingEvent `json:"event,omitempty"`
}

type BetList struct {
	Typename  string    `json:"__typename"`
	Items     []BetItem `json:"items"`
	NextToken string    `json:"nextToken,omitempty"`
}

type SystemEventList struct {
	Typename  string                     `json:"__typename"`
	Items     []systemevents.SystemEvent `json:"items"`
	NextToken int64                      `json:"nextToken,omitempty"`
}

func NewEvent(e *eventstore.SportingEvent) Event {
	return Event{Typename: KindEvent, SportingEvent: *e}
}

func NewWallet(w *wallet.Wallet) Wallet {
	return Wallet{Typename: KindWallet, Wallet: *w}
}

func NewError(kind, message string) Error {
	return Error{Typename: kind, Message: message}
}
