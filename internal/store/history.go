package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

// HistoryEntry is one recorded facet change.
type HistoryEntry struct {
	ID        int64           `json:"id"`
	Facet     kommander.Facet `json:"facet"`
	Value     json.RawMessage `json:"value"`
	Previous  json.RawMessage `json:"previous"`
	ChangedAt time.Time       `json:"changed_at"`
}

// HistoryFilter selects history rows. Zero fields match everything.
type HistoryFilter struct {
	Facet kommander.Facet
	Since time.Time
	Limit int // default 50, max 500
}

// RecordChange writes a facet change synchronously.
func (s *Store) RecordChange(ctx context.Context, change kommander.FacetChange) error {
	if change.Facet == "" {
		return fmt.Errorf("facet is required")
	}
	value, err := json.Marshal(change.Value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}
	previous, err := json.Marshal(change.Previous)
	if err != nil {
		return fmt.Errorf("marshalling previous value: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO facet_history (facet, value, previous, changed_at) VALUES (?, ?, ?, ?)",
		string(change.Facet), string(value), string(previous), s.timestamp(change.At),
	)
	if err != nil {
		return fmt.Errorf("inserting facet history: %w", err)
	}
	return nil
}

// History returns matching entries newest first.
func (s *Store) History(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error) {
	if filter.Facet != "" {
		if _, ok := kommander.FacetDefault(filter.Facet); !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFacet, filter.Facet)
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}

	var (
		conditions []string
		args       []any
	)
	if filter.Facet != "" {
		conditions = append(conditions, "facet = ?")
		args = append(args, string(filter.Facet))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "changed_at >= ?")
		args = append(args, s.timestamp(filter.Since))
	}

	query := "SELECT id, facet, value, previous, changed_at FROM facet_history"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY changed_at DESC, id DESC LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facet history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, filter.Limit)
	for rows.Next() {
		var (
			e                      HistoryEntry
			facet, value, previous string
			changedAt              string
		)
		if err := rows.Scan(&e.ID, &facet, &value, &previous, &changedAt); err != nil {
			return nil, fmt.Errorf("scanning facet history: %w", err)
		}
		e.Facet = kommander.Facet(facet)
		e.Value = json.RawMessage(value)
		e.Previous = json.RawMessage(previous)
		if e.ChangedAt, err = parseTimestamp(changedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facet history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes entries older than olderThan and returns the count.
func (s *Store) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := s.timestamp(s.now().Add(-olderThan))
	result, err := s.db.ExecContext(ctx, "DELETE FROM facet_history WHERE changed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting facet history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
