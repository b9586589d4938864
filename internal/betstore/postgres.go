package betstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrInput = errors.New("input error")

// Postgres implementa o repositório de apostas.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const betCols = `user_id, bet_id, event_id, outcome, odds, amount, placed_at, status`

func scanBet(row interface{ Scan(...any) error }) (*Bet, error) {
	var b Bet
	err := row.Scan(&b.UserID, &b.BetID, &b.EventID, &b.Outcome, &b.Odds, &b.Amount, &b.PlacedAt, &b.Status)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBatch insere o lote validado de apostas numa única transação.
// Ou todas entram, ou nenhuma.
func (p *Postgres) CreateBatch(ctx context.Context, bets []Bet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range bets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bets (`+betCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			b.UserID, b.BetID, b.EventID, b.Outcome, b.Odds, b.Amount, b.PlacedAt, b.Status); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get retorna uma aposta pela chave composta.
func (p *Postgres) Get(ctx context.Context, userID, betID string) (*Bet, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+betCols+` FROM bets WHERE user_id=$1 AND bet_id=$2`, userID, betID)
	b, err := scanBet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: bet does not exist", ErrInput)
	}
	return b, err
}

// ListByUser pagina as apostas do usuário por bet_id (keyset).
func (p *Postgres) ListByUser(ctx context.Context, userID, cursor string, limit int) ([]Bet, string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betCols+` FROM bets
		WHERE user_id=$1 AND bet_id > $2
		ORDER BY bet_id
		LIMIT $3`, userID, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].BetID
	}
	return out, next, nil
}

// OpenByEvent lista as apostas abertas (placed) de um evento via índice secundário.
func (p *Postgres) OpenByEvent(ctx context.Context, eventID string) ([]Bet, error) {
	return p.byEventStatus(ctx, eventID, StatusPlaced)
}

// LockForEvent trava todas as apostas abertas do evento para liquidação.
// Cada transição placed→resulted é um update condicional por aposta; travar de
// novo uma aposta já resulted é no-op, não erro. Devolve tudo que ainda não
// foi liquidado (placed agora travadas + resulted de execuções anteriores),
// para que uma reexecução refaça o fan-out com segurança.
func (p *Postgres) LockForEvent(ctx context.Context, eventID string) ([]Bet, error) {
	open, err := p.byEventStatus(ctx, eventID, StatusPlaced)
	if err != nil {
		return nil, err
	}
	for i := range open {
		res, err := p.db.ExecContext(ctx, `
			UPDATE bets SET status=$3
			WHERE user_id=$1 AND bet_id=$2 AND status=$4`,
			open[i].UserID, open[i].BetID, StatusResulted, StatusPlaced)
		if err != nil {
			return nil, err
		}
		// 0 linhas: outra instância travou antes; segue
		_, _ = res.RowsAffected()
		open[i].Status = StatusResulted
	}
	return p.byEventStatus(ctx, eventID, StatusResulted)
}

// Settle transiciona resulted→settled. Devolve false quando a aposta já não
// está resulted (liquidação repetida em reentrega), sem erro.
func (p *Postgres) Settle(ctx context.Context, userID, betID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status=$3, settled_at=now()
		WHERE user_id=$1 AND bet_id=$2 AND status=$4`,
		userID, betID, StatusSettled, StatusResulted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) byEventStatus(ctx context.Context, eventID, status string) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betCols+` FROM bets
		WHERE event_id=$1 AND status=$2
		ORDER BY bet_id`, eventID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
