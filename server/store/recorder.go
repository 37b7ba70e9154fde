package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Game is the row written when a session is dealt.
type Game struct {
	ID          string
	LobbyID     string
	Seed        int64
	RuleVersion string
	Players     []string // seat order
	StartedAt   time.Time
}

// Action is one entry of a game's append-only log. Seq is assigned by the recorder.
type Action struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	Seq        int       `json:"seq"`
	Turn       int       `json:"turn_number"`
	Actor      string    `json:"actor,omitempty"`
	Receiver   string    `json:"receiver,omitempty"`
	ActionType string    `json:"action_type"`
	Payload    string    `json:"payload,omitempty"` // JSON text
	CreatedAt  time.Time `json:"created_at"`
}

// Participant is one seat of a game with its final result once known.
type Participant struct {
	PlayerID  string `json:"player_id"`
	Seat      int    `json:"seat"`
	Result    string `json:"result,omitempty"`
	Placement int    `json:"placement,omitempty"`
}

// Final is the end-of-game record. Eliminated is in elimination order.
type Final struct {
	GameID     string
	Winner     string
	Eliminated []string
	EndedAt    time.Time
}

// Placement of a player in a finished game: winner 1, last eliminated 2 and so on.
func (f Final) Placement(playerID string) (place int, result string) {
	if playerID == f.Winner {
		return 1, ResultWin
	}
	for i, id := range f.Eliminated {
		if id == playerID {
			return len(f.Eliminated) - i + 1, ResultEliminated
		}
	}
	return 0, ""
}

const (
	StatusActive   = "ACTIVE"
	StatusFinished = "FINISHED"

	ResultWin        = "WIN"
	ResultEliminated = "ELIMINATED"
)

// Recorder persists games and their action logs. AppendAction must hand out gap-free,
// strictly increasing sequence numbers per game even with concurrent writers.
type Recorder interface {
	CreateGame(ctx context.Context, g Game) error
	AppendAction(ctx context.Context, a Action) (seq int, err error)
	CompleteGame(ctx context.Context, f Final) error
	Actions(ctx context.Context, gameID string) ([]Action, error)
	Participants(ctx context.Context, gameID string) ([]Participant, error)
	Close(ctx context.Context) error
}

// Open picks a backend from the DSN scheme: postgres:// or postgresql://, sqlite://path,
// and "" or memory:// for the in-process recorder.
func Open(ctx context.Context, dsn string) (Recorder, error) {
	switch {
	case dsn == "" || dsn == "memory://":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
	return nil, fmt.Errorf("store: unsupported DATABASE_URL scheme in %q", redact(dsn))
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}
