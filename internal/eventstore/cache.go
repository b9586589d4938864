package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda a projeção corrente dos eventos no Redis.
// Caminho rápido para validação de aposta e leitura da API; o banco continua
// sendo a fonte de verdade.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewCache(c *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Client: c, TTL: ttl}
}

// key gera a chave Redis da projeção corrente de um evento
func key(eventID string) string { return "event:current:" + eventID }

// SetCurrent armazena a projeção do evento com TTL definido.
func (c *Cache) SetCurrent(ctx context.Context, e *SportingEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(e.EventID), b, c.TTL).Err()
}

// GetCurrent devolve a projeção cacheada; ok=false em cache miss.
func (c *Cache) GetCurrent(ctx context.Context, eventID string) (*SportingEvent, bool, error) {
	b, err := c.Client.Get(ctx, key(eventID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e SportingEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

// Invalidate remove a projeção (usado quando a escrita não traz o estado novo).
func (c *Cache) Invalidate(ctx context.Context, eventID string) error {
	return c.Client.Del(ctx, key(eventID)).Err()
}
