package eventstore

import (
	"context"
)

// CachedReader lê a projeção corrente com cache Redis na frente do banco.
// Cache indisponível não derruba a leitura; só perde o caminho rápido.
type CachedReader struct {
	Cache *Cache
	Store *Postgres
}

func (r *CachedReader) GetEvent(ctx context.Context, eventID string) (*SportingEvent, error) {
	if r.Cache != nil {
		if e, ok, err := r.Cache.GetCurrent(ctx, eventID); err == nil && ok {
			return e, nil
		}
	}
	e, err := r.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if r.Cache != nil {
		_ = r.Cache.SetCurrent(ctx, e)
	}
	return e, nil
}
