package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGame(players ...string) Game {
	id := uuid.NewString()
	return Game{ID: id, LobbyID: "lobby-" + id[:8], Seed: 42, RuleVersion: "classic-1", Players: players}
}

// exerciseRecorder runs the same contract against every backend.
func exerciseRecorder(t *testing.T, rec Recorder) {
	ctx := context.Background()

	t.Run("sequence starts at one", func(t *testing.T) {
		g := newGame("a", "b")
		require.NoError(t, rec.CreateGame(ctx, g))
		for want := 1; want <= 3; want++ {
			seq, err := rec.AppendAction(ctx, Action{GameID: g.ID, Turn: 1, Actor: "a", ActionType: "DRAW_CARD", Payload: `{"card":"SKIP"}`})
			require.NoError(t, err)
			assert.Equal(t, want, seq)
		}
		got, err := rec.Actions(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, a := range got {
			assert.Equal(t, i+1, a.Seq)
			assert.Equal(t, "a", a.Actor)
			assert.Empty(t, a.Receiver)
			assert.JSONEq(t, `{"card":"SKIP"}`, a.Payload)
			assert.NotEmpty(t, a.ID)
		}
	})

	t.Run("concurrent writers get gap-free sequence", func(t *testing.T) {
		g := newGame("a", "b", "c")
		require.NoError(t, rec.CreateGame(ctx, g))
		const writers = 20
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seqs []int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seq, err := rec.AppendAction(ctx, Action{GameID: g.ID, ActionType: "PLAY_SKIP"})
				assert.NoError(t, err)
				mu.Lock()
				seqs = append(seqs, seq)
				mu.Unlock()
			}()
		}
		wg.Wait()
		sort.Ints(seqs)
		for i, s := range seqs {
			assert.Equal(t, i+1, s)
		}
	})

	t.Run("unknown game", func(t *testing.T) {
		missing := uuid.NewString()
		_, err := rec.AppendAction(ctx, Action{GameID: missing, ActionType: "DRAW_CARD"})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = rec.Actions(ctx, missing)
		assert.ErrorIs(t, err, ErrNotFound)
		err = rec.CompleteGame(ctx, Final{GameID: missing, Winner: "a"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("complete writes placements", func(t *testing.T) {
		g := newGame("a", "b", "c")
		require.NoError(t, rec.CreateGame(ctx, g))
		require.NoError(t, rec.CompleteGame(ctx, Final{GameID: g.ID, Winner: "b", Eliminated: []string{"c", "a"}}))
		ps, err := rec.Participants(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []Participant{
			{PlayerID: "a", Seat: 0, Result: ResultEliminated, Placement: 2},
			{PlayerID: "b", Seat: 1, Result: ResultWin, Placement: 1},
			{PlayerID: "c", Seat: 2, Result: ResultEliminated, Placement: 3},
		}, ps)
	})
}

func TestMemoryRecorder(t *testing.T) {
	exerciseRecorder(t, NewMemory())
}

func TestMemoryRejectsDuplicateLobby(t *testing.T) {
	m := NewMemory()
	g := newGame("a", "b")
	require.NoError(t, m.CreateGame(context.Background(), g))
	g2 := newGame("a", "b")
	g2.LobbyID = g.LobbyID
	assert.Error(t, m.CreateGame(context.Background(), g2))
}

func TestSQLiteRecorder(t *testing.T) {
	rec, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "kitten.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close(context.Background()) })
	exerciseRecorder(t, rec)
}

func TestPostgresRecorder(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(ctx) })
	require.NoError(t, Migrate(ctx, db))
	exerciseRecorder(t, db)
}

func TestOpenPicksBackend(t *testing.T) {
	ctx := context.Background()
	rec, err := Open(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, rec)

	rec, err = Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, rec)
	require.NoError(t, rec.Close(ctx))

	_, err = Open(ctx, "mysql://root:hunter2@db/kittens")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestPlacement(t *testing.T) {
	f := Final{Winner: "w", Eliminated: []string{"first", "second", "third"}}
	cases := map[string]struct {
		place  int
		result string
	}{
		"w":      {1, ResultWin},
		"third":  {2, ResultEliminated},
		"second": {3, ResultEliminated},
		"first":  {4, ResultEliminated},
		"ghost":  {0, ""},
	}
	for id, want := range cases {
		place, result := f.Placement(id)
		assert.Equal(t, want.place, place, id)
		assert.Equal(t, want.result, result, id)
	}
}
