package engine

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step makes one random legal move and returns its result.
func step(t *testing.T, s *Session, r *rand.Rand) *Result {
	t.Helper()
	snap := s.Snapshot()
	pick := func(xs []string) string { return xs[r.Intn(len(xs))] }

	var (
		res *Result
		err error
	)
	switch pd := snap.Pending; pd.Kind {
	case PendingFutureReorder:
		order := pd.Cards.Clone()
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		res, err = s.ReorderFuture(pd.Actor, order)
	case PendingFavorTarget:
		res, err = s.RequestFavor(pd.Actor, pick(s.Opponents(pd.Actor)))
	case PendingFavorResponse:
		h := hand(t, snap, pd.Actor)
		res, err = s.GiveFavor(pd.Actor, h[r.Intn(len(h))])
	case PendingAttackTarget:
		res, err = s.TargetAttack(pd.Actor, pick(s.Opponents(pd.Actor)))
	case PendingCatOpponent:
		res, err = s.SelectStealTarget(pd.Actor, pick(s.Opponents(pd.Actor)))
	case PendingCatCard:
		res, err = s.ResolveSteal(pd.Actor, 1+r.Intn(len(pd.Snapshot)))
	default:
		me := snap.CurrentID()
		h := hand(t, snap, me)
		var playable []CardKind
		for _, c := range h {
			switch {
			case c == Nope, c == Defuse, c.IsCat():
			default:
				playable = append(playable, c)
			}
		}
		var pair []CardKind
		for _, c := range h {
			if c.IsCat() && h.Count(c) >= 2 {
				pair = []CardKind{c, c}
				break
			}
		}
		switch roll := r.Intn(10); {
		case roll < 2 && pair != nil:
			res, err = s.PlayCombo(me, pair)
		case roll < 6 && len(playable) > 0:
			res, err = s.Play(me, playable[r.Intn(len(playable))])
		default:
			res, err = s.Draw(me)
		}
	}
	require.NoError(t, err)
	return res
}

func TestRandomGamesKeepInvariants(t *testing.T) {
	for seed := int64(1); seed <= 60; seed++ {
		n := 2 + int(seed%3)
		players := []string{"p0", "p1", "p2", "p3"}[:n]
		s, err := NewSession(SessionOptions{LobbyID: "prop", PlayerIDs: players, Seed: seed})
		require.NoError(t, err)
		r := rand.New(rand.NewSource(seed))

		over := false
		for i := 0; i < 5000 && !over; i++ {
			res := step(t, s, r)
			checkInvariants(t, res.State)
			assert.Equal(t, n, len(res.State.Players)+len(res.State.Eliminated))
			over = res.Outcome == OutcomeGameOver
		}
		require.True(t, over, "seed %d did not finish", seed)

		st, ok := s.Standings()
		require.True(t, ok)
		seen := map[string]bool{st.Winner: true}
		for _, id := range st.Eliminated {
			require.False(t, seen[id], "seed %d: %s eliminated twice", seed, id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	}
}

func TestConcurrentDrawsAreSerialized(t *testing.T) {
	deck := make([]CardKind, 1500)
	for i := range deck {
		deck[i] = Skip
	}
	s := rigged([]string{"a", "b", "c"}, [][]CardKind{{}, {}, {}}, deck)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for _, id := range []string{"a", "b", "c"} {
					_, _ = s.Draw(id)
				}
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	checkInvariants(t, snap)
	drawn := 0
	for _, p := range snap.Players {
		drawn += len(p.Hand)
	}
	assert.Equal(t, snap.Version, drawn)
	assert.Equal(t, 1500-drawn, len(snap.Deck))
}
