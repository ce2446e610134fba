package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/layertree/internal/history"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store implements history.Store using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// New creates a new SQLite-based move journal.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// NewInMemory creates a new in-memory SQLite journal.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables and indexes.
func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS moves (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			rows TEXT NOT NULL,
			insert_before INTEGER NOT NULL,
			applied INTEGER NOT NULL,
			reason TEXT,
			error TEXT,
			moved TEXT,
			zorder TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_moves_timestamp ON moves(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_moves_applied ON moves(applied);
		CREATE INDEX IF NOT EXISTS idx_moves_reason ON moves(reason);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Add records an entry and returns its ID.
func (s *Store) Add(ctx context.Context, entry history.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", history.ErrStoreClosed
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	rowsJSON, _ := json.Marshal(entry.Rows)
	movedJSON, _ := json.Marshal(entry.Moved)
	zorderJSON, _ := json.Marshal(entry.ZOrder)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moves (id, timestamp, rows, insert_before, applied, reason, error, moved, zorder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.Timestamp.UTC(), string(rowsJSON), entry.InsertBefore, entry.Applied,
		entry.Reason, entry.Error, string(movedJSON), string(zorderJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert journal entry: %w", err)
	}

	return entry.ID, nil
}

// Get retrieves a single entry by ID.
func (s *Store) Get(ctx context.Context, id string) (history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return history.Entry{}, history.ErrStoreClosed
	}

	if id == "" {
		return history.Entry{}, history.ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx, selectColumns+" FROM moves WHERE id = ?", id)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return history.Entry{}, history.ErrNotFound
	}
	if err != nil {
		return history.Entry{}, fmt.Errorf("failed to get journal entry: %w", err)
	}

	return entry, nil
}

// List retrieves entries matching the query options, newest first.
func (s *Store) List(ctx context.Context, opts history.QueryOptions) ([]history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, history.ErrStoreClosed
	}

	query, args := buildListQuery(opts, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Count returns the number of entries matching the query options.
func (s *Store) Count(ctx context.Context, opts history.QueryOptions) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, history.ErrStoreClosed
	}

	query, args := buildListQuery(opts, true)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}

	return count, nil
}

// Delete removes an entry by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return history.ErrStoreClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM moves WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return history.ErrNotFound
	}

	return nil
}

// Prune removes old entries based on the prune options.
func (s *Store) Prune(ctx context.Context, opts history.PruneOptions) (history.PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return history.PruneResult{}, history.ErrStoreClosed
	}

	var (
		res sql.Result
		err error
	)
	switch {
	case opts.OlderThan > 0:
		cutoff := time.Now().Add(-opts.OlderThan).UTC()
		res, err = s.db.ExecContext(ctx, "DELETE FROM moves WHERE timestamp < ?", cutoff)
	case opts.KeepLast > 0:
		res, err = s.db.ExecContext(ctx, `
			DELETE FROM moves WHERE id NOT IN (
				SELECT id FROM moves ORDER BY timestamp DESC, rowid DESC LIMIT ?
			)
		`, opts.KeepLast)
	case !opts.Before.IsZero():
		res, err = s.db.ExecContext(ctx, "DELETE FROM moves WHERE timestamp < ?", opts.Before.UTC())
	default:
		return history.PruneResult{}, nil
	}
	if err != nil {
		return history.PruneResult{}, fmt.Errorf("failed to prune journal: %w", err)
	}

	var result history.PruneResult
	result.DeletedCount, _ = res.RowsAffected()
	return result, nil
}

// Stats returns aggregate statistics about the journal.
func (s *Store) Stats(ctx context.Context) (history.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return history.Stats{}, history.ErrStoreClosed
	}

	stats := history.Stats{ReasonCounts: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(applied), 0) FROM moves
	`).Scan(&stats.TotalEntries, &stats.Applied)
	if err != nil {
		return stats, fmt.Errorf("failed to get stats: %w", err)
	}
	stats.Rejected = stats.TotalEntries - stats.Applied
	if stats.TotalEntries > 0 {
		stats.ApplyRate = float64(stats.Applied) / float64(stats.TotalEntries)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT reason, COUNT(*) FROM moves
		WHERE applied = 0 AND reason IS NOT NULL AND reason != ''
		GROUP BY reason
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to count reasons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return stats, fmt.Errorf("failed to scan reason count: %w", err)
		}
		stats.ReasonCounts[reason] = count
	}

	return stats, rows.Err()
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return history.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM moves"); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}

	return nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// Helper functions

const selectColumns = `
	SELECT id, timestamp, rows, insert_before, applied, reason, error, moved, zorder`

func buildListQuery(opts history.QueryOptions, countOnly bool) (string, []interface{}) {
	var query string
	if countOnly {
		query = "SELECT COUNT(*) FROM moves WHERE 1=1"
	} else {
		query = selectColumns + " FROM moves WHERE 1=1"
	}

	var args []interface{}

	if opts.AppliedOnly {
		query += " AND applied = 1"
	}

	if opts.RejectedOnly {
		query += " AND applied = 0"
	}

	if opts.Reason != "" {
		query += " AND reason = ?"
		args = append(args, opts.Reason)
	}

	if opts.Moved != "" {
		query += " AND moved LIKE ?"
		args = append(args, `%"`+opts.Moved+`"%`)
	}

	if !opts.After.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, opts.After.UTC())
	}

	if !opts.Before.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, opts.Before.UTC())
	}

	if !countOnly {
		query += " ORDER BY timestamp DESC, rowid DESC"

		// SQLite only accepts OFFSET after a LIMIT.
		if opts.Limit > 0 || opts.Offset > 0 {
			limit := opts.Limit
			if limit <= 0 {
				limit = -1
			}
			query += " LIMIT ?"
			args = append(args, limit)
		}

		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (history.Entry, error) {
	var entry history.Entry
	var rowsJSON string
	var reason, errText, movedJSON, zorderJSON sql.NullString

	err := row.Scan(
		&entry.ID, &entry.Timestamp, &rowsJSON, &entry.InsertBefore, &entry.Applied,
		&reason, &errText, &movedJSON, &zorderJSON,
	)
	if err != nil {
		return entry, err
	}

	entry.Reason = reason.String
	entry.Error = errText.String
	json.Unmarshal([]byte(rowsJSON), &entry.Rows)
	if movedJSON.Valid {
		json.Unmarshal([]byte(movedJSON.String), &entry.Moved)
	}
	if zorderJSON.Valid {
		json.Unmarshal([]byte(zorderJSON.String), &entry.ZOrder)
	}

	return entry, nil
}
