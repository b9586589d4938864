package eventstore

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOutcomeOdds(t *testing.T) {
	e := &SportingEvent{HomeOdds: dec("2.0"), AwayOdds: dec("3.5"), DrawOdds: dec("3.0")}

	home, err := e.OutcomeOdds(OutcomeHomeWin)
	require.NoError(t, err)
	assert.True(t, dec("2.0").Equal(home))

	away, err := e.OutcomeOdds(OutcomeAwayWin)
	require.NoError(t, err)
	assert.True(t, dec("3.5").Equal(away))

	draw, err := e.OutcomeOdds(OutcomeDraw)
	require.NoError(t, err)
	assert.True(t, dec("3.0").Equal(draw))

	_, err = e.OutcomeOdds("banana")
	assert.ErrorIs(t, err, ErrInput)

	// unset não é resultado apostável
	_, err = e.OutcomeOdds(OutcomeUnset)
	assert.ErrorIs(t, err, ErrInput)
}

func TestSportingEventJSONShape(t *testing.T) {
	e := SportingEvent{
		EventID:     "ev-1",
		Home:        "Flamengo",
		Away:        "Palmeiras",
		HomeOdds:    dec("2.0"),
		AwayOdds:    dec("3.5"),
		DrawOdds:    dec("3.0"),
		EventStatus: StatusRunning,
		Outcome:     OutcomeUnset,
		Markets:     []MarketStatus{{Name: "fullTimeResult", Status: MarketSuspended}},
	}

	b, err := json.Marshal(e)
	require.NoError(t, err)

	// Odds viajam como strings decimais exatas
	assert.Contains(t, string(b), `"homeOdds":"2"`)
	assert.Contains(t, string(b), `"awayOdds":"3.5"`)
	assert.Contains(t, string(b), `"marketstatus"`)
	assert.Contains(t, string(b), `"marketName":"fullTimeResult"`)

	var back SportingEvent
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, e.HomeOdds.Equal(back.HomeOdds))
}

func TestMarketStatusOmittedWhenEmpty(t *testing.T) {
	b, err := json.Marshal(SportingEvent{EventID: "ev-1"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "marketstatus")
}
