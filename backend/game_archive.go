package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// GameRecord is one finished game as stored in the archive.
type GameRecord struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Mode       string    `json:"mode"`
	Winner     int       `json:"winner"`
	Moves      []Move    `json:"moves"`
}

type GameArchive struct {
	db *sql.DB
}

func OpenGameArchive(path string) (*GameArchive, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			mode TEXT NOT NULL,
			winner INTEGER NOT NULL,
			moves TEXT NOT NULL);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &GameArchive{db: db}, nil
}

func (a *GameArchive) Close() error {
	return a.db.Close()
}

func (a *GameArchive) Record(rec GameRecord) (int64, error) {
	moves, err := json.Marshal(rec.Moves)
	if err != nil {
		return 0, err
	}
	result, err := a.db.Exec(`INSERT INTO games(started_at, finished_at, mode, winner, moves) VALUES (?, ?, ?, ?, ?)`,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(), rec.Mode, rec.Winner, string(moves))
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	archiveLog.Info().Int64("id", id).Str("mode", rec.Mode).Int("winner", rec.Winner).Int("moves", len(rec.Moves)).Msg("game-archived")
	return id, nil
}

// Recent returns up to limit games, newest first.
func (a *GameArchive) Recent(limit int) ([]GameRecord, error) {
	if limit <= 0 {
		return []GameRecord{}, nil
	}
	rows, err := a.db.Query(`SELECT id, started_at, finished_at, mode, winner, moves FROM games ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []GameRecord{}
	for rows.Next() {
		var (
			rec               GameRecord
			started, finished int64
			moves             string
		)
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Mode, &rec.Winner, &moves); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(moves), &rec.Moves); err != nil {
			return nil, fmt.Errorf("game %d moves: %w", rec.ID, err)
		}
		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Openings returns the distinct first plies of archived games, most played
// first. Games shorter than plies are skipped.
func (a *GameArchive) Openings(plies, limit int) ([][]Move, error) {
	if plies <= 0 || limit <= 0 {
		return nil, nil
	}
	rows, err := a.db.Query(`SELECT moves FROM games ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type opening struct {
		moves []Move
		count int
	}
	seen := map[string]*opening{}
	var order []*opening
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var moves []Move
		if err := json.Unmarshal([]byte(raw), &moves); err != nil || len(moves) < plies {
			continue
		}
		prefix := moves[:plies]
		key := fmt.Sprint(prefix)
		if o, ok := seen[key]; ok {
			o.count++
			continue
		}
		o := &opening{moves: append([]Move(nil), prefix...), count: 1}
		seen[key] = o
		order = append(order, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].count > order[j].count })
	if len(order) > limit {
		order = order[:limit]
	}
	result := make([][]Move, 0, len(order))
	for _, o := range order {
		result = append(result, o.moves)
	}
	return result, nil
}

func (a *GameArchive) Count() (int, error) {
	var n int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM games`).Scan(&n)
	return n, err
}

func (a *GameArchive) Clear() (int64, error) {
	result, err := a.db.Exec(`DELETE FROM games`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
