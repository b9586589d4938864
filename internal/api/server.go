package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/api/dto"
	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/systemevents"
	"github.com/betfabric/sportsbook/internal/wallet"
	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

const defaultPageSize = 20

// EventStore cobre as leituras e as ações administrativas de mercado.
type EventStore interface {
	GetEvents(ctx context.Context, cursor string, limit int) ([]eventstore.SportingEvent, string, error)
	GetEvent(ctx context.Context, eventID string) (*eventstore.SportingEvent, error)
	GetEventAsOf(ctx context.Context, eventID string, ts time.Time) (*eventstore.SportingEvent, error)
	SuspendMarket(ctx context.Context, eventID, market string) (*eventstore.SportingEvent, error)
	UnsuspendMarket(ctx context.Context, eventID, market string) (*eventstore.SportingEvent, error)
	CloseMarket(ctx context.Context, eventID, market string) (*eventstore.SportingEvent, error)
}

type EventReader interface {
	GetEvent(ctx context.Context, eventID string) (*eventstore.SportingEvent, error)
}

type WalletLedger interface {
	Get(ctx context.Context, userID string) (*wallet.Wallet, error)
	Create(ctx context.Context, userID string) (*wallet.Wallet, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*wallet.Wallet, error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*wallet.Wallet, error)
	Deduct(ctx context.Context, userID string, amount decimal.Decimal, ref string) (*wallet.Wallet, error)
}

type BetReader interface {
	ListByUser(ctx context.Context, userID, cursor string, limit int) ([]betstore.Bet, string, error)
}

type BetPlacer interface {
	PlaceBets(ctx context.Context, userID string, reqs []betstore.BetRequest) ([]betstore.Bet, error)
}

type AuditLog interface {
	List(ctx context.Context, cursor int64, limit int) ([]systemevents.SystemEvent, int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, env envelope.Outbound) error
}

// EventCache é opcional: quando presente, a projeção corrente é atualizada
// após mutações administrativas de mercado.
type EventCache interface {
	SetCurrent(ctx context.Context, e *eventstore.SportingEvent) error
}

type Server struct {
	Log       *zap.Logger
	Events    EventStore
	Reader    EventReader
	Wallets   WalletLedger
	Bets      BetReader
	Placement BetPlacer
	Audit     AuditLog
	Bus       Publisher
	BusName   string
	Cache     EventCache

	validate *validator.Validate
}

func NewServer(log *zap.Logger, events EventStore, reader EventReader, wallets WalletLedger, bets BetReader, placement BetPlacer, audit AuditLog, bus Publisher, busName string) *Server {
	return &Server{
		Log:       log,
		Events:    events,
		Reader:    reader,
		Wallets:   wallets,
		Bets:      bets,
		Placement: placement,
		Audit:     audit,
		Bus:       bus,
		BusName:   busName,
		validate:  validator.New(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.handleGetEvents)
		r.Get("/events/{eventID}", s.handleGetEvent)

		r.Get("/bets", s.handleGetBets)
		r.Post("/bets", s.handleCreateBets)

		r.Get("/wallet", s.handleGetWallet)
		r.Post("/wallet/deposit", s.handleDeposit)
		r.Post("/wallet/withdraw", s.handleWithdraw)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/wallets/{userID}", s.handleAdminGetWallet)
			r.Post("/wallets", s.handleAdminCreateWallet)
			r.Post("/wallets/deduct", s.handleAdminDeduct)
			r.Post("/events/{eventID}/markets/suspend", s.marketAction(s.Events.SuspendMarket, envelope.TypeMarketSuspended))
			r.Post("/events/{eventID}/markets/unsuspend", s.marketAction(s.Events.UnsuspendMarket, envelope.TypeMarketUnsuspended))
			r.Post("/events/{eventID}/markets/close", s.marketAction(s.Events.CloseMarket, envelope.TypeMarketClosed))
			r.Get("/system-events", s.handleSystemEvents)
		})
	})
	return r
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := pageSize(r)
	items, next, err := s.Events.GetEvents(r.Context(), r.URL.Query().Get("startKey"), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if items == nil {
		items = []eventstore.SportingEvent{}
	}
	s.respond(w, dto.EventList{Typename: dto.KindEventList, Items: items, NextToken: next})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	raw := r.URL.Query().Get("timestamp")
	if raw == "" {
		ev, err := s.Reader.GetEvent(r.Context(), eventID)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.respond(w, dto.NewEvent(ev))
		return
	}

	// Consulta histórica: timestamp em segundos de época, fração permitida.
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.respond(w, dto.NewError(dto.KindInputError, "timestamp must be epoch seconds"))
		return
	}
	ts := time.Unix(int64(secs), int64((secs-float64(int64(secs)))*float64(time.Second)))
	ev, err := s.Events.GetEventAsOf(r.Context(), eventID, ts)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, dto.NewEvent(ev))
}

func (s *Server) handleGetBets(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}
	bets, next, err := s.Bets.ListByUser(r.Context(), userID, r.URL.Query().Get("startKey"), pageSize(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	items := make([]dto.BetItem, 0, len(bets))
	for _, b := range bets {
		item := dto.BetItem{Bet: b}
		// Projeção do evento é cortesia de exibição; falha não derruba a lista.
		if ev, everr := s.Reader.GetEvent(r.Context(), b.EventID); everr == nil {
			item.Event = ev
		}
		items = append(items, item)
	}
	s.respond(w, dto.BetList{Typename: dto.KindBetList, Items: items, NextToken: next})
}

func (s *Server) handleCreateBets(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req dto.CreateBetsRequest
	if !s.decode(w, r, &req) {
		return
	}
	reqs := make([]betstore.BetRequest, 0, len(req.Bets))
	for _, b := range req.Bets {
		reqs = append(reqs, betstore.BetRequest{
			EventID: b.EventID,
			Outcome: b.Outcome,
			Odds:    b.Odds,
			Amount:  b.Amount,
		})
	}
	bets, err := s.Placement.PlaceBets(r.Context(), userID, reqs)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	items := make([]dto.BetItem, 0, len(bets))
	for _, b := range bets {
		items = append(items, dto.BetItem{Bet: b})
	}
	s.respond(w, dto.BetList{Typename: dto.KindBetList, Items: items})
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}
	s.walletResult(w, r)(s.Wallets.Get(r.Context(), userID))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.walletResult(w, r)(s.Wallets.Deposit(r.Context(), userID, req.Amount))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.walletResult(w, r)(s.Wallets.Withdraw(r.Context(), userID, req.Amount))
}

func (s *Server) handleAdminGetWallet(w http.ResponseWriter, r *http.Request) {
	s.walletResult(w, r)(s.Wallets.Get(r.Context(), chi.URLParam(r, "userID")))
}

func (s *Server) handleAdminCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWalletRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.walletResult(w, r)(s.Wallets.Create(r.Context(), req.UserID))
}

func (s *Server) handleAdminDeduct(w http.ResponseWriter, r *http.Request) {
	var req dto.DeductFundsRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.walletResult(w, r)(s.Wallets.Deduct(r.Context(), req.UserID, req.Amount, "admin-deduct"))
}

// marketAction fabrica o handler das três mutações de mercado, que diferem
// apenas na operação de loja e no tipo publicado de volta no barramento.
func (s *Server) marketAction(apply func(ctx context.Context, eventID, market string) (*eventstore.SportingEvent, error), detailType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventID")
		var req dto.MarketRequest
		if !s.decode(w, r, &req) {
			return
		}
		ev, err := apply(r.Context(), eventID, req.Market)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		if s.Cache != nil {
			if cerr := s.Cache.SetCurrent(r.Context(), ev); cerr != nil {
				s.Log.Warn("cache refresh failed", zap.String("event_id", eventID), zap.Error(cerr))
			}
		}
		if s.Bus != nil {
			// Mesmo shape de payload publicado pelo worker de controle de
			// mercado para o mesmo (source, detail-type)
			env, perr := envelope.New(envelope.SourceLiveMarket, detailType, s.BusName,
				events.MarketControl{EventID: eventID, Market: req.Market})
			if perr == nil {
				perr = s.Bus.Publish(r.Context(), env)
			}
			if perr != nil {
				s.Log.Warn("falha ao publicar mutação de mercado", zap.String("event_id", eventID), zap.Error(perr))
			}
		}
		s.respond(w, dto.NewEvent(ev))
	}
}

func (s *Server) handleSystemEvents(w http.ResponseWriter, r *http.Request) {
	var cursor int64
	if raw := r.URL.Query().Get("startKey"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respond(w, dto.NewError(dto.KindInputError, "startKey must be numeric"))
			return
		}
		cursor = parsed
	}
	items, next, err := s.Audit.List(r.Context(), cursor, pageSize(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if items == nil {
		items = []systemevents.SystemEvent{}
	}
	s.respond(w, dto.SystemEventList{Typename: dto.KindSystemEventList, Items: items, NextToken: next})
}

func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		s.respond(w, dto.NewError(dto.KindInputError, "missing caller identity"))
		return "", false
	}
	return userID, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respond(w, dto.NewError(dto.KindInputError, "malformed request body"))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.respond(w, dto.NewError(dto.KindInputError, err.Error()))
		return false
	}
	return true
}

func (s *Server) walletResult(w http.ResponseWriter, r *http.Request) func(*wallet.Wallet, error) {
	return func(wa *wallet.Wallet, err error) {
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.respond(w, dto.NewWallet(wa))
	}
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Error("falha ao escrever resposta", zap.Error(err))
	}
}

// respondErr traduz os erros de domínio para a variante de erro da união.
// Erros não classificados nunca vazam detalhe para o cliente.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wallet.ErrNotFound):
		s.respond(w, dto.NewError(dto.KindNotFoundError, "no wallet exists for user"))
	case errors.Is(err, wallet.ErrInsufficientFunds):
		s.respond(w, dto.NewError(dto.KindInsufficientFunds, "insufficient funds in wallet"))
	case errors.Is(err, eventstore.ErrInput), errors.Is(err, betstore.ErrInput), errors.Is(err, wallet.ErrInput):
		s.respond(w, dto.NewError(dto.KindInputError, err.Error()))
	default:
		s.Log.Error("erro inesperado no handler", zap.String("path", r.URL.Path), zap.Error(err))
		s.respond(w, dto.NewError(dto.KindUnknownError, "an unknown error occured"))
	}
}

func pageSize(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			return n
		}
	}
	return defaultPageSize
}
