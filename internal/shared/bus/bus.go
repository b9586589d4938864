package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/betfabric/sportsbook/pkg/contracts/envelope"
)

// ErrDrop marca falhas esperadas de domínio: o registro é logado e descartado
// (commit sem saída), em vez de voltar para a fila. Falhas não esperadas ficam
// sem commit e são reentregues pelo consumer group (at-least-once).
var ErrDrop = errors.New("record dropped")

// Drop embrulha err como falha descartável.
func Drop(err error) error {
	if err == nil {
		return ErrDrop
	}
	return fmt.Errorf("%w: %v", ErrDrop, err)
}

// NewWriter cria um writer Kafka para um tópico.
func NewWriter(brokers string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// NewReader cria um reader Kafka com consumer group próprio.
func NewReader(brokers string, topic string, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(brokers, ","),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Publisher publica envelopes no barramento e payloads crus em tópicos auxiliares.
type Publisher struct {
	log *zap.Logger
	w   *kafka.Writer
}

func NewPublisher(log *zap.Logger, w *kafka.Writer) *Publisher {
	return &Publisher{log: log, w: w}
}

// Publish envia um envelope; a chave agrupa por (source, detail-type).
// No tópico trafega a forma de entrega (WireJSON), que é a que os
// consumidores decodificam com envelope.Parse.
func (p *Publisher) Publish(ctx context.Context, env envelope.Outbound) error {
	b, err := env.WireJSON()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(env.Source + "/" + env.DetailType),
		Value: b,
		Time:  time.Now(),
	}
	return p.w.WriteMessages(ctx, msg)
}

// PublishJSON envia um payload cru (ex.: task de liquidação) com chave explícita.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b, Time: time.Now()})
}

func (p *Publisher) Close() error { return p.w.Close() }

// RecordHandler processa o corpo de um registro da fila.
// Pode retornar um envelope de saída para republicação no barramento.
type RecordHandler func(ctx context.Context, body []byte) (*envelope.Outbound, error)

// Consumer é o loop de consumo com isolamento por registro:
// cada registro é processado de forma independente e a falha de um não
// bloqueia a publicação das saídas dos demais.
type Consumer struct {
	Log     *zap.Logger
	Reader  *kafka.Reader
	Out     *Publisher    // destino das saídas (barramento); pode ser nil
	DLQ     *kafka.Writer // destino de registros envenenados; pode ser nil
	Handle  RecordHandler
	Retries int // tentativas extras para falhas não esperadas antes da DLQ

	OnConsumed  func()
	OnPublished func()
	OnDropped   func()
	OnError     func(stage string)
}

// Run consome até o contexto ser cancelado.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka fetch failed", zap.Error(err))
			if c.OnError != nil {
				c.OnError("fetch")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		out, err := c.process(ctx, m.Value)
		if err != nil {
			if errors.Is(err, ErrDrop) || errors.Is(err, envelope.ErrMalformed) {
				// Falha esperada: loga e descarta, sem reentrega
				c.Log.Warn("record dropped", zap.Error(err))
				if c.OnDropped != nil {
					c.OnDropped()
				}
				if cerr := c.Reader.CommitMessages(ctx, m); cerr != nil {
					return fmt.Errorf("commit dropped record: %w", cerr)
				}
				continue
			}

			if c.OnError != nil {
				c.OnError("handle")
			}
			if c.DLQ != nil {
				c.Log.Error("record failed, sending to dlq", zap.Error(err))
				if derr := c.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()}); derr != nil {
					return fmt.Errorf("dlq write: %w", derr)
				}
				if cerr := c.Reader.CommitMessages(ctx, m); cerr != nil {
					return fmt.Errorf("commit after dlq: %w", cerr)
				}
				continue
			}
			// Sem DLQ: não comita; o registro volta via reentrega do grupo
			return fmt.Errorf("record handling failed: %w", err)
		}

		if out != nil && c.Out != nil {
			if perr := c.Out.Publish(ctx, *out); perr != nil {
				if c.OnError != nil {
					c.OnError("publish")
				}
				return fmt.Errorf("publish output: %w", perr)
			}
			if c.OnPublished != nil {
				c.OnPublished()
			}
		}

		if err := c.Reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit record: %w", err)
		}
	}
}

// process aplica o handler com retry simples para falhas não esperadas.
func (c *Consumer) process(ctx context.Context, body []byte) (*envelope.Outbound, error) {
	out, err := c.Handle(ctx, body)
	if err == nil || errors.Is(err, ErrDrop) || errors.Is(err, envelope.ErrMalformed) {
		return out, err
	}
	for i := 0; i < c.Retries; i++ {
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
		if out, err = c.Handle(ctx, body); err == nil {
			return out, nil
		}
	}
	return nil, err
}
