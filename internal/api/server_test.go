package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/internal/api/dto"
	"github.com/betfabric/sportsbook/internal/betstore"
	"github.com/betfabric/sportsbook/internal/eventstore"
	"github.com/betfabric/sportsbook/internal/systemevents"
	"github.com/betfabric/sportsbook/internal/wallet"
	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
	"github.com/betfabric/sportsbook/pkg/contracts/events"
)

type fakeEventStore struct {
	events map[string]*eventstore.SportingEvent
}

func (f *fakeEventStore) get(eventID string) (*eventstore.SportingEvent, error) {
	e, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: the event does not exist", eventstore.ErrInput)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventStore) GetEvents(_ context.Context, _ string, _ int) ([]eventstore.SportingEvent, string, error) {
	out := make([]eventstore.SportingEvent, 0, len(f.events))
	for _, e := range f.events {
		if e.EventStatus == eventstore.StatusRunning {
			out = append(out, *e)
		}
	}
	return out, "", nil
}

func (f *fakeEventStore) GetEvent(_ context.Context, eventID string) (*eventstore.SportingEvent, error) {
	return f.get(eventID)
}

func (f *fakeEventStore) GetEventAsOf(_ context.Context, eventID string, ts time.Time) (*eventstore.SportingEvent, error) {
	// Consulta anterior à retenção falha como no store real
	if ts.Before(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		return nil, fmt.Errorf("%w: history not queryable for requested timestamp", eventstore.ErrInput)
	}
	return f.get(eventID)
}

func (f *fakeEventStore) SuspendMarket(_ context.Context, eventID, market string) (*eventstore.SportingEvent, error) {
	e, err := f.get(eventID)
	if err != nil {
		return nil, err
	}
	e.Markets = append(e.Markets, eventstore.MarketStatus{Name: market, Status: eventstore.MarketSuspended})
	f.events[eventID] = e
	return e, nil
}

func (f *fakeEventStore) UnsuspendMarket(_ context.Context, eventID, market string) (*eventstore.SportingEvent, error) {
	e, err := f.get(eventID)
	if err != nil {
		return nil, err
	}
	e.Markets = append(e.Markets, eventstore.MarketStatus{Name: market, Status: eventstore.MarketActive})
	f.events[eventID] = e
	return e, nil
}

func (f *fakeEventStore) CloseMarket(_ context.Context, eventID, market string) (*eventstore.SportingEvent, error) {
	e, err := f.get(eventID)
	if err != nil {
		return nil, err
	}
	e.Markets = append(e.Markets, eventstore.MarketStatus{Name: market, Status: eventstore.MarketClosed})
	f.events[eventID] = e
	return e, nil
}

type fakeWallets struct {
	balances map[string]decimal.Decimal
}

func (f *fakeWallets) Get(_ context.Context, userID string) (*wallet.Wallet, error) {
	bal, ok := f.balances[userID]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	return &wallet.Wallet{UserID: userID, Balance: bal}, nil
}

func (f *fakeWallets) Create(_ context.Context, userID string) (*wallet.Wallet, error) {
	if _, ok := f.balances[userID]; !ok {
		f.balances[userID] = decimal.Zero
	}
	return f.Get(context.Background(), userID)
}

func (f *fakeWallets) adjust(userID string, delta decimal.Decimal) (*wallet.Wallet, error) {
	bal, ok := f.balances[userID]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	next := bal.Add(delta)
	if next.IsNegative() {
		return nil, wallet.ErrInsufficientFunds
	}
	f.balances[userID] = next
	return &wallet.Wallet{UserID: userID, Balance: next}, nil
}

func (f *fakeWallets) Deposit(_ context.Context, userID string, amount decimal.Decimal) (*wallet.Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", wallet.ErrInput)
	}
	return f.adjust(userID, amount)
}

func (f *fakeWallets) Withdraw(_ context.Context, userID string, amount decimal.Decimal) (*wallet.Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", wallet.ErrInput)
	}
	return f.adjust(userID, amount.Neg())
}

func (f *fakeWallets) Deduct(_ context.Context, userID string, amount decimal.Decimal, _ string) (*wallet.Wallet, error) {
	return f.adjust(userID, amount.Neg())
}

type fakeBetReader struct {
	bets []betstore.Bet
}

func (f *fakeBetReader) ListByUser(_ context.Context, userID, _ string, _ int) ([]betstore.Bet, string, error) {
	var out []betstore.Bet
	for _, b := range f.bets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, "", nil
}

type fakePlacer struct {
	placed []betstore.BetRequest
	fail   error
}

func (f *fakePlacer) PlaceBets(_ context.Context, userID string, reqs []betstore.BetRequest) ([]betstore.Bet, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.placed = append(f.placed, reqs...)
	out := make([]betstore.Bet, 0, len(reqs))
	for i, r := range reqs {
		out = append(out, betstore.Bet{
			UserID: userID, BetID: fmt.Sprintf("b%d", i+1), EventID: r.EventID,
			Outcome: r.Outcome, Odds: r.Odds, Amount: r.Amount, Status: betstore.StatusPlaced,
		})
	}
	return out, nil
}

type fakeAudit struct{}

func (fakeAudit) List(_ context.Context, _ int64, _ int) ([]systemevents.SystemEvent, int64, error) {
	return []systemevents.SystemEvent{{ID: "se-1", Source: "com.trading", DetailType: "UpdatedOdds"}}, 0, nil
}

type fakePublisher struct {
	published []envelope.Outbound
}

func (f *fakePublisher) Publish(_ context.Context, env envelope.Outbound) error {
	f.published = append(f.published, env)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestServer(t *testing.T) (*Server, *fakeEventStore, *fakeWallets, *fakePublisher) {
	t.Helper()
	store := &fakeEventStore{events: map[string]*eventstore.SportingEvent{
		"ev-1": {EventID: "ev-1", Home: "Flamengo", Away: "Palmeiras",
			HomeOdds: dec("2.0"), AwayOdds: dec("3.5"), DrawOdds: dec("3.0"),
			EventStatus: eventstore.StatusRunning, Outcome: eventstore.OutcomeUnset},
	}}
	wallets := &fakeWallets{balances: map[string]decimal.Decimal{"u1": dec("100")}}
	pub := &fakePublisher{}
	srv := NewServer(zap.NewNop(), store, store, wallets, &fakeBetReader{}, &fakePlacer{}, fakeAudit{}, pub, "sportsbook")
	return srv, store, wallets, pub
}

func do(t *testing.T, h http.Handler, method, path, userID, body string) map[string]any {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Contains(t, out, "__typename")
	return out
}

func TestGetEventReturnsEventUnion(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodGet, "/v1/events/ev-1", "", "")

	assert.Equal(t, dto.KindEvent, out["__typename"])
	assert.Equal(t, "ev-1", out["eventId"])
	assert.Equal(t, "2", out["homeOdds"])
}

func TestGetEventUnknownIsInputError(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodGet, "/v1/events/nope", "", "")

	assert.Equal(t, dto.KindInputError, out["__typename"])
}

func TestGetEventAsOfTimestamp(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	r := srv.Router()

	// Timestamp em segundos de época, dentro da retenção
	out := do(t, r, http.MethodGet, "/v1/events/ev-1?timestamp=1782000000", "", "")
	assert.Equal(t, dto.KindEvent, out["__typename"])

	// Fora da retenção: InputError
	out = do(t, r, http.MethodGet, "/v1/events/ev-1?timestamp=100", "", "")
	assert.Equal(t, dto.KindInputError, out["__typename"])

	// Timestamp não numérico
	out = do(t, r, http.MethodGet, "/v1/events/ev-1?timestamp=yesterday", "", "")
	assert.Equal(t, dto.KindInputError, out["__typename"])
}

func TestGetEventsListsRunning(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodGet, "/v1/events", "", "")

	assert.Equal(t, dto.KindEventList, out["__typename"])
	items := out["items"].([]any)
	assert.Len(t, items, 1)
}

func TestGetWalletRequiresIdentity(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodGet, "/v1/wallet", "", "")
	assert.Equal(t, dto.KindInputError, out["__typename"])
}

func TestGetWalletUnknownUserIsNotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodGet, "/v1/wallet", "ghost", "")
	assert.Equal(t, dto.KindNotFoundError, out["__typename"])
}

func TestDepositAndWithdraw(t *testing.T) {
	srv, _, wallets, _ := newTestServer(t)
	r := srv.Router()

	out := do(t, r, http.MethodPost, "/v1/wallet/deposit", "u1", `{"amount":"50"}`)
	assert.Equal(t, dto.KindWallet, out["__typename"])
	assert.Equal(t, "150", out["balance"])

	out = do(t, r, http.MethodPost, "/v1/wallet/withdraw", "u1", `{"amount":"30"}`)
	assert.Equal(t, "120", out["balance"])
	assert.True(t, dec("120").Equal(wallets.balances["u1"]))
}

func TestWithdrawBeyondBalanceIsInsufficientFunds(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodPost, "/v1/wallet/withdraw", "u1", `{"amount":"1000"}`)
	assert.Equal(t, dto.KindInsufficientFunds, out["__typename"])
}

func TestCreateBetsReturnsBetList(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	body := `{"bets":[{"eventId":"ev-1","outcome":"homeWin","odds":"2.0","amount":"10"}]}`
	out := do(t, srv.Router(), http.MethodPost, "/v1/bets", "u1", body)

	assert.Equal(t, dto.KindBetList, out["__typename"])
	items := out["items"].([]any)
	require.Len(t, items, 1)
	bet := items[0].(map[string]any)
	assert.Equal(t, "placed", bet["betStatus"])
}

func TestCreateBetsValidatesOutcome(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	body := `{"bets":[{"eventId":"ev-1","outcome":"banana","odds":"2.0","amount":"10"}]}`
	out := do(t, srv.Router(), http.MethodPost, "/v1/bets", "u1", body)
	assert.Equal(t, dto.KindInputError, out["__typename"])
}

func TestCreateBetsRejectsEmptyBatch(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodPost, "/v1/bets", "u1", `{"bets":[]}`)
	assert.Equal(t, dto.KindInputError, out["__typename"])
}

func TestAdminMarketActionsPublishToBus(t *testing.T) {
	srv, store, _, pub := newTestServer(t)
	r := srv.Router()

	out := do(t, r, http.MethodPost, "/v1/admin/events/ev-1/markets/suspend", "", `{"market":"fullTimeResult"}`)
	assert.Equal(t, dto.KindEvent, out["__typename"])

	out = do(t, r, http.MethodPost, "/v1/admin/events/ev-1/markets/close", "", `{"market":"fullTimeResult"}`)
	assert.Equal(t, dto.KindEvent, out["__typename"])

	statuses := store.events["ev-1"].Markets
	require.Len(t, statuses, 2)
	assert.Equal(t, eventstore.MarketSuspended, statuses[0].Status)
	assert.Equal(t, eventstore.MarketClosed, statuses[1].Status)

	require.Len(t, pub.published, 2)
	assert.Equal(t, envelope.SourceLiveMarket, pub.published[0].Source)
	assert.Equal(t, envelope.TypeMarketSuspended, pub.published[0].DetailType)
	assert.Equal(t, envelope.TypeMarketClosed, pub.published[1].DetailType)

	// O payload é o mesmo shape normalizado publicado pelo worker de controle
	// de mercado, não a projeção inteira do evento
	var detail events.MarketControl
	require.NoError(t, json.Unmarshal([]byte(pub.published[0].Detail), &detail))
	assert.Equal(t, events.MarketControl{EventID: "ev-1", Market: "fullTimeResult"}, detail)

	// E o que sai pelo publisher volta a decodificar no consumo
	wire, err := pub.published[0].WireJSON()
	require.NoError(t, err)
	in, err := envelope.Parse(wire)
	require.NoError(t, err)
	assert.True(t, in.Is(envelope.SourceLiveMarket, envelope.TypeMarketSuspended))
}

func TestAdminWalletOperations(t *testing.T) {
	srv, _, wallets, _ := newTestServer(t)
	r := srv.Router()

	out := do(t, r, http.MethodPost, "/v1/admin/wallets", "", `{"userId":"u2"}`)
	assert.Equal(t, dto.KindWallet, out["__typename"])
	assert.Equal(t, "0", out["balance"])

	out = do(t, r, http.MethodPost, "/v1/admin/wallets/deduct", "", `{"userId":"u1","amount":"40"}`)
	assert.Equal(t, "60", out["balance"])
	assert.True(t, dec("60").Equal(wallets.balances["u1"]))

	out = do(t, r, http.MethodGet, "/v1/admin/wallets/u1", "", "")
	assert.Equal(t, dto.KindWallet, out["__typename"])
}

func TestSystemEventsList(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodGet, "/v1/admin/system-events", "", "")

	assert.Equal(t, dto.KindSystemEventList, out["__typename"])
	items := out["items"].([]any)
	require.Len(t, items, 1)
}

func TestMalformedBodyIsInputError(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	out := do(t, srv.Router(), http.MethodPost, "/v1/bets", "u1", `{broken`)
	assert.Equal(t, dto.KindInputError, out["__typename"])
}
