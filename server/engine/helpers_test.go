package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// rigged seats ids in order with the given hands and deck (index 0 on top).
func rigged(ids []string, hands [][]CardKind, deck []CardKind) *Session {
	s := &Session{
		GameID:  "game-" + ids[0],
		LobbyID: "lobby",
		Rules:   RuleVersion,
		ToDraw:  1,
		Deck:    Pile(deck).Clone(),
		rng:     NewRand(7),
	}
	for i, id := range ids {
		var h Pile
		if i < len(hands) {
			h = Pile(hands[i]).Clone()
		}
		s.Players = append(s.Players, &Player{ID: id, Name: id, Hand: h})
	}
	s.total = s.countCards()
	return s
}

func seatIDs(s Snapshot) []string {
	out := make([]string, len(s.Players))
	for i, p := range s.Players {
		out[i] = p.ID
	}
	return out
}

func hand(t *testing.T, s Snapshot, id string) Pile {
	t.Helper()
	p, ok := s.Player(id)
	require.True(t, ok, "player %s not seated", id)
	return p.Hand
}

func checkInvariants(t *testing.T, s Snapshot) {
	t.Helper()
	require.Equal(t, s.Total, s.CardsInPlay(), "card conservation")
	require.GreaterOrEqual(t, s.ToDraw, 0, "draw obligation")
	if len(s.Players) > 0 {
		require.GreaterOrEqual(t, s.Current, 0)
		require.Less(t, s.Current, len(s.Players))
	}
}

type recordingJournal struct {
	mu       sync.Mutex
	started  []Snapshot
	actions  []Action
	finished []Standings
}

func (j *recordingJournal) Started(s Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, s)
}

func (j *recordingJournal) Recorded(_, _ string, actions []Action) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.actions = append(j.actions, actions...)
}

func (j *recordingJournal) Finished(st Standings) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = append(j.finished, st)
}

func (j *recordingJournal) kinds() []ActionKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]ActionKind, len(j.actions))
	for i, a := range j.actions {
		out[i] = a.Kind
	}
	return out
}
