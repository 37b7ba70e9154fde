package agent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitten-arena/server/engine"
)

func TestLookupPolicy(t *testing.T) {
	assert.Equal(t, []string{"cautious", "random"}, PolicyNames())
	_, err := LookupPolicy("cautious")
	require.NoError(t, err)
	_, err = LookupPolicy("genius")
	assert.Error(t, err)
}

func TestRegisterPolicy(t *testing.T) {
	always := func(Observation, *rand.Rand) (ActionOut, bool) { return ActionOut{Action: ActDraw}, true }
	RegisterPolicy("always-draw", always)
	t.Cleanup(func() {
		policyMu.Lock()
		delete(policies, "always-draw")
		policyMu.Unlock()
	})
	p, err := LookupPolicy("always-draw")
	require.NoError(t, err)
	a, ok := p(Observation{}, nil)
	assert.True(t, ok)
	assert.Equal(t, ActDraw, a.Action)
	assert.Contains(t, PolicyNames(), "always-draw")
}

func TestCautiousAvoidsRiskyDraws(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	o := Observation{
		Hand:     []string{"SKIP", "CAT_TACO"},
		DeckSize: 4,
		Kittens:  2,
		Playable: []engine.CardKind{engine.Skip},
		Legal:    []string{ActDraw, ActPlay},
	}
	a, ok := CautiousPolicy(o, r)
	require.True(t, ok)
	assert.Equal(t, ActionOut{Action: ActPlay, Card: engine.Skip}, a)

	o.Kittens = 0
	a, _ = CautiousPolicy(o, r)
	assert.Equal(t, ActDraw, a.Action)
}

func TestCautiousHuntsDefuseWithoutOne(t *testing.T) {
	o := Observation{
		Hand:   []string{"CAT_TACO", "CAT_TACO", "CAT_TACO"},
		Combos: [][]engine.CardKind{{engine.CatTaco, engine.CatTaco}, {engine.CatTaco, engine.CatTaco, engine.CatTaco}},
		Legal:  []string{ActDraw, ActCombo},
	}
	a, _ := CautiousPolicy(o, rand.New(rand.NewSource(1)))
	assert.Equal(t, ActCombo, a.Action)
	assert.Len(t, a.Cards, 3)
}

func TestCautiousPendingChoices(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	opps := []Opponent{{ID: "b", Cards: 2}, {ID: "c", Cards: 6}}

	a, _ := CautiousPolicy(Observation{Legal: []string{ActAlter},
		Pending: &PendingView{Options: []string{"EXPLODING_KITTEN", "SKIP", "FAVOR"}}}, r)
	assert.Equal(t, []engine.CardKind{engine.Skip, engine.Favor, engine.ExplodingKitten}, a.Cards)

	a, _ = CautiousPolicy(Observation{Legal: []string{ActFavorResponse},
		Pending: &PendingView{Options: []string{"DEFUSE", "SKIP", "CAT_BEARD"}}}, r)
	assert.Equal(t, engine.CatBeard, a.Card)

	a, _ = CautiousPolicy(Observation{Legal: []string{ActCatSteal}, Opponents: opps,
		Pending: &PendingView{Options: []string{"b", "c"}}}, r)
	assert.Equal(t, "c", a.Target)

	a, _ = CautiousPolicy(Observation{Legal: []string{ActTargetedConfirm}, Opponents: opps,
		Pending: &PendingView{Options: []string{"b", "c"}}}, r)
	assert.Equal(t, "b", a.Target)
}

// Both built-ins must only ever produce actions the engine accepts.
func TestPoliciesStayLegal(t *testing.T) {
	for _, name := range PolicyNames() {
		pol, err := LookupPolicy(name)
		require.NoError(t, err)
		for seed := int64(1); seed <= 15; seed++ {
			s, err := engine.NewSession(engine.SessionOptions{LobbyID: "l", PlayerIDs: []string{"a", "b", "c"}, Seed: seed})
			require.NoError(t, err)
			r := rand.New(rand.NewSource(seed))
			for step := 0; step < 5000; step++ {
				if _, over := s.WinnerID(); over {
					break
				}
				sn := s.Snapshot()
				actor := sn.CurrentID()
				if sn.Pending.Open() {
					actor = sn.Pending.Actor
				}
				o := BuildObservation(sn, actor)
				a, ok := pol(o, r)
				require.True(t, ok)
				_, err := Dispatch(s, actor, a)
				require.NoError(t, err, "%s seed %d: %+v", name, seed, a)
			}
			_, over := s.WinnerID()
			assert.True(t, over, "%s seed %d", name, seed)
		}
	}
}
