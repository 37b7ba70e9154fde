package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a single-file recorder for local runs.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the embedded schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty sqlite path")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time keeps seq assignment and the file lock simple
	db.SetMaxOpenConns(1)

	migration, err := schema.ReadFile("schema_sqlite.sql")
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, string(migration)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute migration: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (r *SQLite) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLite) CreateGame(ctx context.Context, g Game) error {
	if g.StartedAt.IsZero() {
		g.StartedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := `
	INSERT INTO games (id, lobby_id, status, seed, rule_version, started_at)
	VALUES (?, ?, ?, ?, ?, ?);
	`
	if _, err := tx.ExecContext(ctx, q, g.ID, g.LobbyID, StatusActive, g.Seed, g.RuleVersion, g.StartedAt); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	for seat, pid := range g.Players {
		q := `
		INSERT INTO game_participants (game_id, player_id, seat_index, created_at)
		VALUES (?, ?, ?, ?);
		`
		if _, err := tx.ExecContext(ctx, q, g.ID, pid, seat, g.StartedAt); err != nil {
			return fmt.Errorf("insert participant %s: %w", pid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendAction runs in an immediate transaction, so the MAX(seq) read and the insert
// cannot interleave with another writer.
func (r *SQLite) AppendAction(ctx context.Context, a Action) (int, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM games WHERE id = ?`, a.GameID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: game %s", ErrNotFound, a.GameID)
		}
		return 0, fmt.Errorf("lookup game: %w", err)
	}
	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM game_actions WHERE game_id = ?`, a.GameID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	q := `
	INSERT INTO game_actions (id, game_id, seq, turn_number, actor_id, receiver_id, action_type, payload, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	if _, err := tx.ExecContext(ctx, q, a.ID, a.GameID, seq, a.Turn,
		nullable(a.Actor), nullable(a.Receiver), a.ActionType, nullable(a.Payload), a.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert action: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return seq, nil
}

func (r *SQLite) CompleteGame(ctx context.Context, f Final) error {
	if f.EndedAt.IsZero() {
		f.EndedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE games SET status = ?, ended_at = ?, winner_id = ? WHERE id = ?`,
		StatusFinished, f.EndedAt, f.Winner, f.GameID)
	if err != nil {
		return fmt.Errorf("finish game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: game %s", ErrNotFound, f.GameID)
	}
	for _, pid := range append([]string{f.Winner}, f.Eliminated...) {
		place, result := f.Placement(pid)
		if _, err := tx.ExecContext(ctx,
			`UPDATE game_participants SET result = ?, placement = ? WHERE game_id = ? AND player_id = ?`,
			result, place, f.GameID, pid); err != nil {
			return fmt.Errorf("update participant %s: %w", pid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLite) Actions(ctx context.Context, gameID string) ([]Action, error) {
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM games WHERE id = ?`, gameID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, game_id, seq, COALESCE(turn_number, 0), COALESCE(actor_id, ''), COALESCE(receiver_id, ''),
	       action_type, COALESCE(payload, ''), created_at
	  FROM game_actions
	 WHERE game_id = ?
	 ORDER BY seq;
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()
	var out []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.GameID, &a.Seq, &a.Turn, &a.Actor, &a.Receiver,
			&a.ActionType, &a.Payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLite) Participants(ctx context.Context, gameID string) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT player_id, seat_index, COALESCE(result, ''), COALESCE(placement, 0)
	  FROM game_participants WHERE game_id = ? ORDER BY seat_index;
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.PlayerID, &p.Seat, &p.Result, &p.Placement); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
