package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql schema_sqlite.sql
var schema embed.FS

// DB is the Postgres recorder.
type DB struct{ *pgxpool.Pool }

func OpenPostgres(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context) error { db.Pool.Close(); return nil }
func (db *DB) Ping(ctx context.Context) error  { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// CreateGame inserts the game and its seats in one transaction.
func (db *DB) CreateGame(ctx context.Context, g Game) error {
	if g.StartedAt.IsZero() {
		g.StartedAt = time.Now().UTC()
	}
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	if _, err := tx.Exec(ctx, `
		INSERT INTO games(id, lobby_id, status, seed, rule_version, started_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, g.ID, g.LobbyID, StatusActive, g.Seed, g.RuleVersion, g.StartedAt); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	for seat, pid := range g.Players {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_participants(game_id, player_id, seat_index)
			VALUES ($1,$2,$3)
		`, g.ID, pid, seat); err != nil {
			return fmt.Errorf("insert participant %s: %w", pid, err)
		}
	}
	return tx.Commit(ctx)
}

// AppendAction locks the game row so concurrent writers queue up, then takes MAX(seq)+1.
func (db *DB) AppendAction(ctx context.Context, a Action) (int, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM games WHERE id = $1 FOR UPDATE`, a.GameID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: game %s", ErrNotFound, a.GameID)
		}
		return 0, fmt.Errorf("lock game: %w", err)
	}
	var seq int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM game_actions WHERE game_id = $1
	`, a.GameID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO game_actions(
			id, game_id, seq, turn_number,
			actor_id, receiver_id, action_type, payload, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.GameID, seq, a.Turn,
		nullable(a.Actor), nullable(a.Receiver), a.ActionType, nullable(a.Payload), a.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert action: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return seq, nil
}

// CompleteGame marks the game finished and writes each seat's result and placement.
func (db *DB) CompleteGame(ctx context.Context, f Final) error {
	if f.EndedAt.IsZero() {
		f.EndedAt = time.Now().UTC()
	}
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE games SET status = $2, ended_at = $3, winner_id = $4 WHERE id = $1
	`, f.GameID, StatusFinished, f.EndedAt, f.Winner)
	if err != nil {
		return fmt.Errorf("finish game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: game %s", ErrNotFound, f.GameID)
	}
	for _, pid := range append([]string{f.Winner}, f.Eliminated...) {
		place, result := f.Placement(pid)
		if _, err := tx.Exec(ctx, `
			UPDATE game_participants SET result = $3, placement = $4
			 WHERE game_id = $1 AND player_id = $2
		`, f.GameID, pid, result, place); err != nil {
			return fmt.Errorf("update participant %s: %w", pid, err)
		}
	}
	return tx.Commit(ctx)
}

func (db *DB) Actions(ctx context.Context, gameID string) ([]Action, error) {
	rows, err := db.Query(ctx, `
		SELECT id::text, game_id::text, seq, COALESCE(turn_number, 0),
		       COALESCE(actor_id, ''), COALESCE(receiver_id, ''), action_type,
		       COALESCE(payload::text, ''), created_at
		  FROM game_actions
		 WHERE game_id = $1
		 ORDER BY seq
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.GameID, &a.Seq, &a.Turn,
			&a.Actor, &a.Receiver, &a.ActionType, &a.Payload, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		var one int
		if err := db.QueryRow(ctx, `SELECT 1 FROM games WHERE id = $1`, gameID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
			}
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) Participants(ctx context.Context, gameID string) ([]Participant, error) {
	rows, err := db.Query(ctx, `
		SELECT player_id, seat_index, COALESCE(result, ''), COALESCE(placement, 0)
		  FROM game_participants
		 WHERE game_id = $1
		 ORDER BY seat_index
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

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
