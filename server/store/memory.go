package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memGame struct {
	game    Game
	status  string
	final   *Final
	seats   []Participant
	actions []Action
}

// Memory keeps everything in process. It backs tests and DB-less runs.
type Memory struct {
	mu    sync.Mutex
	games map[string]*memGame
}

func NewMemory() *Memory {
	return &Memory{games: map[string]*memGame{}}
}

func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) CreateGame(ctx context.Context, g Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return fmt.Errorf("insert game: duplicate id %s", g.ID)
	}
	for _, other := range m.games {
		if other.game.LobbyID == g.LobbyID {
			return fmt.Errorf("insert game: lobby %s already has game %s", g.LobbyID, other.game.ID)
		}
	}
	if g.StartedAt.IsZero() {
		g.StartedAt = time.Now().UTC()
	}
	g.Players = append([]string{}, g.Players...)
	mg := &memGame{game: g, status: StatusActive}
	for i, pid := range g.Players {
		mg.seats = append(mg.seats, Participant{PlayerID: pid, Seat: i})
	}
	m.games[g.ID] = mg
	return nil
}

func (m *Memory) AppendAction(ctx context.Context, a Action) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mg, ok := m.games[a.GameID]
	if !ok {
		return 0, fmt.Errorf("%w: game %s", ErrNotFound, a.GameID)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Seq = len(mg.actions) + 1
	mg.actions = append(mg.actions, a)
	return a.Seq, nil
}

func (m *Memory) CompleteGame(ctx context.Context, f Final) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mg, ok := m.games[f.GameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, f.GameID)
	}
	if f.EndedAt.IsZero() {
		f.EndedAt = time.Now().UTC()
	}
	f.Eliminated = append([]string{}, f.Eliminated...)
	mg.status = StatusFinished
	mg.final = &f
	for i := range mg.seats {
		mg.seats[i].Placement, mg.seats[i].Result = f.Placement(mg.seats[i].PlayerID)
	}
	return nil
}

func (m *Memory) Actions(ctx context.Context, gameID string) ([]Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mg, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	return append([]Action{}, mg.actions...), nil
}

func (m *Memory) Participants(ctx context.Context, gameID string) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mg, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	return append([]Participant{}, mg.seats...), nil
}

// Status reports ACTIVE or FINISHED.
func (m *Memory) Status(gameID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mg, ok := m.games[gameID]
	if !ok {
		return "", false
	}
	return mg.status, true
}
