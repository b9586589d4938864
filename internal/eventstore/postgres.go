package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInput cobre referência inexistente ou payload que falha checagem de domínio
	ErrInput = errors.New("input error")
)

// Postgres implementa o event store (estado de mercado) em banco.
// Toda mutação grava o estado corrente e, em seguida, um snapshot no histórico;
// as duas escritas são independentes (histórico é trilha de auditoria, não fonte
// de verdade).
type Postgres struct {
	db          *sql.DB
	retention   time.Duration
	closePolicy string // "append" (observado) ou "upsert"
}

func NewPostgres(db *sql.DB, retention time.Duration, closePolicy string) *Postgres {
	return &Postgres{db: db, retention: retention, closePolicy: closePolicy}
}

const eventCols = `event_id, home, away, home_odds, away_odds, draw_odds, start_at, end_at, updated_at, event_status, outcome`

func scanEvent(row interface{ Scan(...any) error }) (*SportingEvent, error) {
	var e SportingEvent
	err := row.Scan(&e.EventID, &e.Home, &e.Away, &e.HomeOdds, &e.AwayOdds, &e.DrawOdds,
		&e.Start, &e.End, &e.UpdatedAt, &e.EventStatus, &e.Outcome)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEvents lista eventos em andamento, paginados por event_id (keyset).
// cursor vazio começa do início; nextCursor vazio indica fim da listagem.
func (p *Postgres) GetEvents(ctx context.Context, cursor string, limit int) ([]SportingEvent, string, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + eventCols + `
		FROM sporting_events
		WHERE event_status = $1 AND event_id > $2
		ORDER BY event_id
		LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, StatusRunning, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []SportingEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].EventID
	}
	return out, next, nil
}

// GetEvent retorna o estado corrente do evento, com a lista de mercados.
func (p *Postgres) GetEvent(ctx context.Context, eventID string) (*SportingEvent, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM sporting_events WHERE event_id=$1`, eventID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: the event does not exist", ErrInput)
	}
	if err != nil {
		return nil, err
	}
	if e.Markets, err = p.loadMarkets(ctx, eventID); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEventAsOf responde "quais eram as odds do evento X no instante T".
// T maior ou igual ao updatedAt corrente devolve o estado atual; caso contrário
// busca no histórico a entrada mais recente estritamente anterior a T. Sem
// entrada dentro da retenção, a consulta falha com ErrInput.
func (p *Postgres) GetEventAsOf(ctx context.Context, eventID string, ts time.Time) (*SportingEvent, error) {
	cur, err := p.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ts.Before(cur.UpdatedAt) {
		return cur, nil
	}

	var raw []byte
	err = p.db.QueryRowContext(ctx, `
		SELECT snapshot FROM event_history
		WHERE event_id=$1 AND ts < $2 AND expiry > now()
		ORDER BY ts DESC
		LIMIT 1`, eventID, ts).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: history not queryable for requested timestamp", ErrInput)
	}
	if err != nil {
		return nil, err
	}
	var snap SportingEvent
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode history snapshot: %w", err)
	}
	return &snap, nil
}

// UpdateOdds grava as três odds juntas, condicionado à existência do evento.
func (p *Postgres) UpdateOdds(ctx context.Context, eventID string, home, away, draw decimal.Decimal) (*SportingEvent, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sporting_events
		SET home_odds=$2, away_odds=$3, draw_odds=$4, updated_at=now()
		WHERE event_id=$1`,
		eventID, home, away, draw)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: the event does not exist", ErrInput)
	}
	return p.reloadWithHistory(ctx, eventID)
}

// SuspendMarket suspende um mercado do evento (upsert por nome).
func (p *Postgres) SuspendMarket(ctx context.Context, eventID, market string) (*SportingEvent, error) {
	return p.setMarket(ctx, eventID, market, MarketSuspended, true)
}

// UnsuspendMarket reativa um mercado do evento (upsert por nome).
func (p *Postgres) UnsuspendMarket(ctx context.Context, eventID, market string) (*SportingEvent, error) {
	return p.setMarket(ctx, eventID, market, MarketActive, true)
}

// CloseMarket fecha um mercado. O comportamento observado difere do
// suspend/unsuspend: fechar acrescenta uma nova entrada em vez de sobrescrever
// pelo nome. A discrepância foi mantida como política configurável
// ("append" default; "upsert" unifica com o suspend).
func (p *Postgres) CloseMarket(ctx context.Context, eventID, market string) (*SportingEvent, error) {
	return p.setMarket(ctx, eventID, market, MarketClosed, p.closePolicy == "upsert")
}

func (p *Postgres) setMarket(ctx context.Context, eventID, market, status string, upsert bool) (*SportingEvent, error) {
	if err := p.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	if upsert {
		// Sobrescreve a primeira entrada com o mesmo nome, se existir
		res, err := p.db.ExecContext(ctx, `
			UPDATE market_status SET status=$3
			WHERE id = (SELECT id FROM market_status WHERE event_id=$1 AND market_name=$2 ORDER BY id LIMIT 1)`,
			eventID, market, status)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return p.reloadWithHistory(ctx, eventID)
		}
	}

	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO market_status(event_id, market_name, status) VALUES($1,$2,$3)`,
		eventID, market, status); err != nil {
		return nil, err
	}
	return p.reloadWithHistory(ctx, eventID)
}

// FinishEvent transiciona o evento para finished e fixa o resultado.
// Condicionado a ainda não estar finished: reentrega de EventClosed não pode
// reescrever um resultado já atribuído; nesse caso devolve o estado corrente.
func (p *Postgres) FinishEvent(ctx context.Context, eventID, outcome string) (*SportingEvent, error) {
	switch outcome {
	case OutcomeHomeWin, OutcomeAwayWin, OutcomeDraw:
	default:
		return nil, fmt.Errorf("%w: invalid outcome %q", ErrInput, outcome)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE sporting_events
		SET event_status=$2, outcome=$3, updated_at=now()
		WHERE event_id=$1 AND event_status <> $2`,
		eventID, StatusFinished, outcome)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Já finalizado é no-op; inexistente é erro de entrada
		cur, gerr := p.GetEvent(ctx, eventID)
		if gerr != nil {
			return nil, gerr
		}
		return cur, nil
	}
	return p.reloadWithHistory(ctx, eventID)
}

// AddEvent faz upsert incondicional (re-ingestão idempotente).
func (p *Postgres) AddEvent(ctx context.Context, e *SportingEvent) (*SportingEvent, error) {
	if e.EventID == "" {
		return nil, fmt.Errorf("%w: eventId required", ErrInput)
	}
	outcome := e.Outcome
	if outcome == "" {
		outcome = OutcomeUnset
	}
	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sporting_events (`+eventCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (event_id) DO UPDATE SET
		  home=EXCLUDED.home, away=EXCLUDED.away,
		  home_odds=EXCLUDED.home_odds, away_odds=EXCLUDED.away_odds, draw_odds=EXCLUDED.draw_odds,
		  start_at=EXCLUDED.start_at, end_at=EXCLUDED.end_at, updated_at=EXCLUDED.updated_at,
		  event_status=EXCLUDED.event_status, outcome=EXCLUDED.outcome`,
		e.EventID, e.Home, e.Away, e.HomeOdds, e.AwayOdds, e.DrawOdds,
		e.Start, e.End, updatedAt, e.EventStatus, outcome)
	if err != nil {
		return nil, err
	}
	return p.reloadWithHistory(ctx, e.EventID)
}

// requireEvent falha com ErrInput quando o evento não existe.
func (p *Postgres) requireEvent(ctx context.Context, eventID string) error {
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM sporting_events WHERE event_id=$1`, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: the event does not exist", ErrInput)
	}
	return err
}

func (p *Postgres) loadMarkets(ctx context.Context, eventID string) ([]MarketStatus, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT market_name, status FROM market_status WHERE event_id=$1 ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MarketStatus
	for rows.Next() {
		var m MarketStatus
		if err := rows.Scan(&m.Name, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// reloadWithHistory recarrega o estado corrente e anexa o snapshot ao histórico.
func (p *Postgres) reloadWithHistory(ctx context.Context, eventID string) (*SportingEvent, error) {
	e, err := p.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := p.appendHistory(ctx, e); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	return e, nil
}

// appendHistory grava um snapshot imutável do estado corrente.
func (p *Postgres) appendHistory(ctx context.Context, e *SportingEvent) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	// string, não []byte: lib/pq codificaria bytea e o JSONB rejeitaria
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO event_history (event_id, snapshot, ts, expiry)
		VALUES ($1,$2,$3,$4)`,
		e.EventID, string(raw), now, now.Add(p.retention))
	return err
}
