package main

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitten-arena/server/engine"
)

func TestSelfPlayRunsCleanly(t *testing.T) {
	var seed int64
	reg := engine.NewRegistry(engine.RegistryOptions{Seed: func() int64 { seed++; return seed }})
	cfg := Config{SelfPlayGames: 12, SelfPlayPlayers: 3}

	st, err := runSelfPlay(context.Background(), cfg, reg, rand.New(rand.NewSource(1)), zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, reg.Len(), "finished lobbies are released")
	require.Len(t, st.Turns, 12)

	wins, firstOut := 0, 0
	for _, s := range st.Seats {
		assert.Equal(t, 12, s.Games)
		assert.GreaterOrEqual(t, s.MeanPlacement(), 1.0)
		assert.LessOrEqual(t, s.MeanPlacement(), 3.0)
		wins += s.Wins
		firstOut += s.FirstOut
	}
	assert.Equal(t, 12, wins)
	assert.Equal(t, 12, firstOut)
	assert.Equal(t, 12, st.Actions[engine.ActGameStart])
	assert.Equal(t, 12, st.Actions[engine.ActGameEnd])
	assert.Equal(t, 24, st.Actions[engine.ActEliminated])
}

func TestSelfPlayRatesPolicies(t *testing.T) {
	var seed int64
	reg := engine.NewRegistry(engine.RegistryOptions{Seed: func() int64 { seed++; return seed }})
	cfg := Config{SelfPlayGames: 20, SelfPlayPlayers: 4, SelfPlayPolicies: []string{"random", "cautious"}}

	st, err := runSelfPlay(context.Background(), cfg, reg, rand.New(rand.NewSource(2)), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 40, st.PolicySeats["random"])
	assert.Equal(t, 40, st.PolicySeats["cautious"])
	assert.Equal(t, 20, st.PolicyWins["random"]+st.PolicyWins["cautious"])
	assert.Equal(t, 20, st.Ratings.Glicko["random"].Games)
	assert.InDelta(t, 3000, st.Ratings.Elo.Ratings["random"]+st.Ratings.Elo.Ratings["cautious"], 1e-6, "elo is zero-sum")
	for _, s := range st.Seats {
		assert.Equal(t, 20, s.Games)
	}
}

func TestSelfPlayUnknownPolicy(t *testing.T) {
	_, err := runSelfPlay(context.Background(), Config{SelfPlayGames: 1, SelfPlayPlayers: 2, SelfPlayPolicies: []string{"oracle"}},
		engine.NewRegistry(engine.RegistryOptions{}), rand.New(rand.NewSource(1)), zap.NewNop())
	assert.Error(t, err)
}

func TestSelfPlayHonoursCancel(t *testing.T) {
	reg := engine.NewRegistry(engine.RegistryOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runSelfPlay(ctx, Config{SelfPlayGames: 5, SelfPlayPlayers: 2}, reg, rand.New(rand.NewSource(1)), zap.NewNop())
	assert.ErrorIs(t, err, errStopped)
}

func TestCheckState(t *testing.T) {
	ok := engine.Snapshot{
		Players: []engine.PlayerView{{ID: "a", Hand: engine.Pile{engine.Skip}}, {ID: "b"}},
		Deck:    engine.Pile{engine.Defuse},
		Total:   2,
		ToDraw:  1,
	}
	require.NoError(t, checkState(ok))

	broken := ok
	broken.Total = 3
	assert.Error(t, checkState(broken))

	broken = ok
	broken.Current = 2
	assert.Error(t, checkState(broken))

	broken = ok
	broken.Winner = "a"
	assert.Error(t, checkState(broken))

	broken = ok
	broken.Eliminated = []string{"b"}
	assert.Error(t, checkState(broken))
}

func TestWilsonCI95(t *testing.T) {
	lo, hi := WilsonCI95(50, 0, 100)
	assert.InDelta(t, 0.404, lo, 0.001)
	assert.InDelta(t, 0.596, hi, 0.001)
	lo, hi = WilsonCI95(0, 0, 0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestBootstrapCI95(t *testing.T) {
	vals := []float64{10, 12, 11, 13, 9, 10, 12}
	lo, hi := BootstrapCI95(rand.New(rand.NewSource(3)), vals, 500)
	m := mean(vals)
	assert.LessOrEqual(t, lo, m)
	assert.GreaterOrEqual(t, hi, m)
	lo2, hi2 := BootstrapCI95(rand.New(rand.NewSource(3)), vals, 500)
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)

	lo, hi = BootstrapCI95(rand.New(rand.NewSource(3)), nil, 500)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}
