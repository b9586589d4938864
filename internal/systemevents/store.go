package systemevents

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SystemEvent é o registro de auditoria de um evento cruzando o barramento.
// Append-only: nunca mutado após a ingestão.
type SystemEvent struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	DetailType string          `json:"detailType"`
	Detail     json.RawMessage `json:"detail"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Postgres implementa a trilha de auditoria de eventos de sistema.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Append grava um evento com id único gerado na ingestão.
func (p *Postgres) Append(ctx context.Context, source, detailType string, detail []byte) (*SystemEvent, error) {
	e := &SystemEvent{
		ID:         uuid.NewString(),
		Source:     source,
		DetailType: detailType,
		Detail:     detail,
	}
	// lib/pq codifica []byte como bytea; JSONB precisa chegar como texto
	var detailArg any
	if len(detail) > 0 {
		detailArg = string(detail)
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO system_events (id, source, detail_type, detail)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		e.ID, e.Source, e.DetailType, detailArg).Scan(&e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List pagina a trilha por ordem de ingestão (keyset pelo seq interno).
func (p *Postgres) List(ctx context.Context, cursor int64, limit int) ([]SystemEvent, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT seq, id, source, detail_type, detail, created_at
		FROM system_events
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []SystemEvent
	var seqs []int64
	for rows.Next() {
		var e SystemEvent
		var seq int64
		if err := rows.Scan(&seq, &e.ID, &e.Source, &e.DetailType, &e.Detail, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var next int64
	if len(out) > limit {
		out = out[:limit]
		next = seqs[limit-1]
	}
	return out, next, nil
}
