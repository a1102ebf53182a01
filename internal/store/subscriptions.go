package store

import (
	"context"
	"fmt"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

// ListSubscriptions returns every stored subscription ordered by ID.
// Rows are returned as stored; the caller validates them.
func (s *Store) ListSubscriptions(ctx context.Context) ([]kommander.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, path, variable FROM subscriptions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []kommander.Subscription
	for rows.Next() {
		var sub kommander.Subscription
		if err := rows.Scan(&sub.ID, &sub.Path, &sub.Variable); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}
	return subs, nil
}

// SaveSubscription inserts or replaces a subscription by ID.
func (s *Store) SaveSubscription(ctx context.Context, sub kommander.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("subscription id is required")
	}
	now := s.timestamp(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, path, variable, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     path = excluded.path,
		     variable = excluded.variable,
		     updated_at = excluded.updated_at`,
		sub.ID, sub.Path, sub.Variable, now, now,
	)
	if err != nil {
		return fmt.Errorf("saving subscription %s: %w", sub.ID, err)
	}
	return nil
}

// DeleteSubscription removes a subscription. Deleting an ID that was never
// stored is not an error.
func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting subscription %s: %w", id, err)
	}
	return nil
}
