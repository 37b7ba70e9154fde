package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairScores(t *testing.T) {
	s := pairScores(map[string]int{"a": 1, "b": 3, "c": 2})
	assert.Equal(t, 1.0, s["a"]["b"])
	assert.Equal(t, 1.0, s["a"]["c"])
	assert.Equal(t, 0.0, s["b"]["c"])
	assert.Equal(t, 1.0, s["c"]["b"])
	assert.Len(t, s["a"], 2)
}

func TestEloWinnerGains(t *testing.T) {
	e := NewElo(1500, 24, []string{"a", "b", "c"})
	d := e.UpdateGame(map[string]int{"a": 1, "b": 2, "c": 3})
	assert.Greater(t, d["a"], 0.0)
	assert.InDelta(t, 0.0, d["b"], 1e-9, "middle of three equals breaks even")
	assert.Less(t, d["c"], 0.0)
	assert.InDelta(t, 4500, e.Ratings["a"]+e.Ratings["b"]+e.Ratings["c"], 1e-9)
	assert.Equal(t, 1, e.Games)
}

// Glickman's worked example: 1500/200 vs 1400/30 (win), 1550/100 (loss), 1700/300 (loss).
func TestGlicko2PaperExample(t *testing.T) {
	p := &Glicko2{Rating: 1500, RD: 200, Volatility: 0.06}
	p.update([]glickoResult{
		{opp: Glicko2{Rating: 1400, RD: 30}, s: 1},
		{opp: Glicko2{Rating: 1550, RD: 100}, s: 0},
		{opp: Glicko2{Rating: 1700, RD: 300}, s: 0},
	})
	assert.InDelta(t, 1464.06, p.Rating, 0.1)
	assert.InDelta(t, 151.52, p.RD, 0.1)
	assert.InDelta(t, 0.05999, p.Volatility, 0.0001)
	assert.Equal(t, 1, p.Games)
}

func TestGlicko2IdleRDGrows(t *testing.T) {
	p := NewGlicko2()
	p.RD = 50
	p.update(nil)
	assert.Greater(t, p.RD, 50.0)
	assert.Equal(t, 1500.0, p.Rating)
}

func TestRatingsCollapseSharedPolicies(t *testing.T) {
	r := NewRatings([]string{"random", "cautious"})
	r.AddGame([]string{"random", "cautious", "random", "cautious"}, []int{4, 1, 3, 2})
	require.Equal(t, []string{"cautious", "random"}, r.Table())
	assert.Greater(t, r.Elo.Ratings["cautious"], 1500.0)

	before := *r.Glicko["random"]
	r.AddGame([]string{"random", "random"}, []int{1, 2})
	assert.Equal(t, before, *r.Glicko["random"], "one policy alone is not a rated game")
}
