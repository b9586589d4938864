package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSerializesDetailAsString(t *testing.T) {
	env, err := New(SourceTrading, TypeUpdatedOdds, "sportsbook", map[string]string{"eventId": "ev-1"})
	require.NoError(t, err)

	assert.Equal(t, SourceTrading, env.Source)
	assert.Equal(t, TypeUpdatedOdds, env.DetailType)
	assert.Equal(t, "sportsbook", env.EventBusName)
	assert.JSONEq(t, `{"eventId":"ev-1"}`, env.Detail)

	// Publicação usa chaves PascalCase
	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Source"`)
	assert.Contains(t, string(b), `"DetailType"`)
	assert.Contains(t, string(b), `"EventBusName"`)
}

func TestParseReadsLowercaseKeys(t *testing.T) {
	body := []byte(`{"source":"com.thirdparty","detail-type":"UpdatedOdds","detail":{"eventId":"ev-1"}}`)

	in, err := Parse(body)
	require.NoError(t, err)
	assert.True(t, in.Is(SourceThirdParty, TypeUpdatedOdds))

	var p struct {
		EventID string `json:"eventId"`
	}
	require.NoError(t, in.DecodeDetail(&p))
	assert.Equal(t, "ev-1", p.EventID)
}

// O que o publisher escreve no tópico precisa ser exatamente o que Parse lê,
// senão todo envelope interno morre como malformado no consumo.
func TestWireRoundTripsThroughParse(t *testing.T) {
	env, err := New(SourceLiveMarket, TypeEventClosed, "sportsbook",
		map[string]string{"eventId": "ev-1", "outcome": "homeWin"})
	require.NoError(t, err)

	wire, err := env.WireJSON()
	require.NoError(t, err)
	assert.Contains(t, string(wire), `"source"`)
	assert.Contains(t, string(wire), `"detail-type"`)
	assert.NotContains(t, string(wire), `"EventBusName"`)

	in, err := Parse(wire)
	require.NoError(t, err)
	assert.True(t, in.Is(SourceLiveMarket, TypeEventClosed))

	var p struct {
		EventID string `json:"eventId"`
		Outcome string `json:"outcome"`
	}
	require.NoError(t, in.DecodeDetail(&p))
	assert.Equal(t, "ev-1", p.EventID)
	assert.Equal(t, "homeWin", p.Outcome)
}

func TestWireJSONRejectsInvalidDetail(t *testing.T) {
	env := Outbound{Source: SourceTrading, DetailType: TypeUpdatedOdds, Detail: "{not json"}
	_, err := env.WireJSON()
	assert.Error(t, err)
}

func TestParseRejectsPublishCasing(t *testing.T) {
	// O formato de saída (PascalCase) não é o formato de entrada
	body := []byte(`{"Source":"com.thirdparty","DetailType":"UpdatedOdds","Detail":"{}"}`)

	_, err := Parse(body)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseMalformed(t *testing.T) {
	cases := map[string][]byte{
		"vazio":           nil,
		"json invalido":   []byte(`{not json`),
		"sem source":      []byte(`{"detail-type":"UpdatedOdds","detail":{}}`),
		"sem detail-type": []byte(`{"source":"com.thirdparty","detail":{}}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(body)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeDetailEmpty(t *testing.T) {
	in := Inbound{Source: SourceAuth, DetailType: TypeUserSignedUp}
	var v map[string]any
	assert.ErrorIs(t, in.DecodeDetail(&v), ErrMalformed)
}
