package agent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitten-arena/server/engine"
)

func snap() engine.Snapshot {
	return engine.Snapshot{
		GameID:  "g",
		Version: 4,
		Players: []engine.PlayerView{
			{ID: "a", Name: "Ann", Hand: engine.Pile{engine.Defuse, engine.Skip, engine.CatTaco, engine.CatTaco, engine.Nope}},
			{ID: "b", Name: "Bob", Hand: engine.Pile{engine.Defuse, engine.Favor}},
			{ID: "c", Name: "Cid", Hand: engine.Pile{engine.CatFeral}},
		},
		Eliminated: []string{"d"},
		Deck:       engine.Pile{engine.Attack, engine.ExplodingKitten},
		Discard:    engine.Pile{engine.Shuffle},
		Current:    0,
		ToDraw:     1,
	}
}

func TestObservationHidesOtherHands(t *testing.T) {
	o := BuildObservation(snap(), "a")
	assert.Equal(t, 0, o.Seat)
	assert.True(t, o.YourTurn)
	assert.Len(t, o.Hand, 5)
	assert.Equal(t, []Opponent{{ID: "b", Name: "Bob", Cards: 2}, {ID: "c", Name: "Cid", Cards: 1}}, o.Opponents)
	assert.Equal(t, 2, o.DeckSize)
	assert.Equal(t, engine.Shuffle, o.TopDiscard)
	assert.Equal(t, []engine.CardKind{engine.Skip}, o.Playable, "defuse, nope and cats are not playable alone")
	assert.Equal(t, [][]engine.CardKind{{engine.CatTaco, engine.CatTaco}}, o.Combos)
	assert.Equal(t, []string{ActDraw, ActPlay, ActCombo}, o.Legal)

	other := BuildObservation(snap(), "b")
	assert.False(t, other.YourTurn)
	assert.Empty(t, other.Legal)
	assert.Equal(t, []string{"DEFUSE", "FAVOR"}, other.Hand)
}

func TestObservationEliminatedAndUnknown(t *testing.T) {
	o := BuildObservation(snap(), "d")
	assert.Equal(t, -1, o.Seat)
	assert.Empty(t, o.Hand)
	assert.Empty(t, o.Legal)
	assert.Len(t, o.Opponents, 3)
}

func TestObservationPendingOnlyForActor(t *testing.T) {
	s := snap()
	s.Pending = engine.Pending{Kind: engine.PendingFavorResponse, Actor: "b", Requester: "a"}

	asker := BuildObservation(s, "a")
	require.NotNil(t, asker.Pending)
	assert.Nil(t, asker.Pending.Options)
	assert.Empty(t, asker.Legal, "turn is frozen while someone else answers")

	giver := BuildObservation(s, "b")
	assert.Equal(t, []string{ActFavorResponse}, giver.Legal)
	assert.ElementsMatch(t, []string{"DEFUSE", "FAVOR"}, giver.Pending.Options)

	s.Pending = engine.Pending{Kind: engine.PendingCatCard, Actor: "a", Target: "b", Snapshot: engine.Pile{engine.Favor, engine.Defuse}}
	o := BuildObservation(s, "a")
	assert.Equal(t, []string{"1", "2"}, o.Pending.Options)

	s.Pending = engine.Pending{Kind: engine.PendingAttackTarget, Actor: "a"}
	o = BuildObservation(s, "a")
	assert.Equal(t, []string{"b", "c"}, o.Pending.Options)
}

func TestCombosWithFeral(t *testing.T) {
	got := combos(engine.Pile{engine.CatBeard, engine.CatFeral, engine.CatFeral, engine.CatTaco, engine.CatTaco})
	for _, c := range got {
		assert.NotEqual(t, engine.ComboInvalid, engine.ValidateCombo(c), "%v", c)
	}
	assert.Contains(t, got, []engine.CardKind{engine.CatBeard, engine.CatFeral, engine.CatFeral})
	assert.Contains(t, got, []engine.CardKind{engine.CatTaco, engine.CatTaco, engine.CatFeral})
	assert.Contains(t, got, []engine.CardKind{engine.CatFeral, engine.CatFeral})
	assert.Empty(t, combos(engine.Pile{engine.CatBeard, engine.CatTaco}))
}

func TestValidate(t *testing.T) {
	o := BuildObservation(snap(), "a")
	cases := []struct {
		name string
		a    ActionOut
		err  error
	}{
		{"draw", ActionOut{Action: ActDraw}, nil},
		{"play skip", ActionOut{Action: ActPlay, Card: engine.Skip}, nil},
		{"play nope", ActionOut{Action: ActPlay, Card: engine.Nope}, engine.ErrInvalidCard},
		{"combo", ActionOut{Action: ActCombo, Cards: []engine.CardKind{engine.CatTaco, engine.CatTaco}}, nil},
		{"combo not held", ActionOut{Action: ActCombo, Cards: []engine.CardKind{engine.CatTaco, engine.CatTaco, engine.CatTaco}}, engine.ErrInvalidCard},
		{"bad combo", ActionOut{Action: ActCombo, Cards: []engine.CardKind{engine.CatTaco, engine.Skip}}, engine.ErrInvalidCard},
		{"not legal now", ActionOut{Action: ActFavorResponse, Card: engine.Skip}, engine.ErrInvalidActor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(o, tc.a)
			if tc.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}

	s := snap()
	s.Pending = engine.Pending{Kind: engine.PendingCatOpponent, Actor: "a"}
	o = BuildObservation(s, "a")
	assert.NoError(t, Validate(o, ActionOut{Action: ActCatSteal, Target: "c"}))
	assert.ErrorIs(t, Validate(o, ActionOut{Action: ActCatSteal, Target: "a"}), engine.ErrInvalidTarget)
}

func TestDispatchUnknownAction(t *testing.T) {
	s, err := engine.NewSession(engine.SessionOptions{LobbyID: "l", PlayerIDs: []string{"a", "b"}, Seed: 1})
	require.NoError(t, err)
	_, err = Dispatch(s, "a", ActionOut{Action: "nope_it"})
	assert.ErrorIs(t, err, engine.ErrInvalidCard)
}

// Random legal play must always be accepted and must always finish.
func TestRandomPolicyPlaysToTheEnd(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		ids := []string{"a", "b", "c", "d"}[:2+int(seed%3)]
		s, err := engine.NewSession(engine.SessionOptions{LobbyID: "l", PlayerIDs: ids, Seed: seed})
		require.NoError(t, err)
		r := rand.New(rand.NewSource(seed))

		steps := 0
		for ; steps < 5000; steps++ {
			if _, over := s.WinnerID(); over {
				break
			}
			sn := s.Snapshot()
			actor := sn.CurrentID()
			if sn.Pending.Open() {
				actor = sn.Pending.Actor
			}
			o := BuildObservation(sn, actor)
			a, ok := RandomPolicy(o, r)
			require.True(t, ok, "seed %d: %s has no legal move", seed, actor)
			require.NoError(t, Validate(o, a), "seed %d", seed)
			res, err := Dispatch(s, actor, a)
			require.NoError(t, err, "seed %d: %+v", seed, a)
			require.Equal(t, res.State.Total, res.State.CardsInPlay())
		}
		w, over := s.WinnerID()
		require.True(t, over, "seed %d did not finish in %d steps", seed, steps)
		assert.Contains(t, ids, w)
	}
}
