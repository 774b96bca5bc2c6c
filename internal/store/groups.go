package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetGroup returns the group row for jid, or nil if the group is unknown.
func (s *Store) GetGroup(ctx context.Context, jid string) (*Group, error) {
	var g Group
	err := s.pool.QueryRow(ctx, `
		SELECT jid, managed, forward_url, notify_on_spam
		FROM groups WHERE jid = $1
	`, jid).Scan(&g.JID, &g.Managed, &g.ForwardURL, &g.NotifyOnSpam)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", jid, err)
	}
	return &g, nil
}

// UpsertGroup creates or updates a group's policy flags.
func (s *Store) UpsertGroup(ctx context.Context, g *Group) error {
	if g.JID == "" {
		return fmt.Errorf("upsert group: missing jid")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (jid, managed, forward_url, notify_on_spam)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jid) DO UPDATE SET
			managed = EXCLUDED.managed,
			forward_url = EXCLUDED.forward_url,
			notify_on_spam = EXCLUDED.notify_on_spam
	`, g.JID, g.Managed, g.ForwardURL, g.NotifyOnSpam)
	if err != nil {
		return fmt.Errorf("upsert group %s: %w", g.JID, err)
	}
	return nil
}

// ListManagedGroups returns all groups opted into bot processing.
func (s *Store) ListManagedGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT jid, managed, forward_url, notify_on_spam
		FROM groups WHERE managed ORDER BY jid
	`)
	if err != nil {
		return nil, fmt.Errorf("list managed groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.JID, &g.Managed, &g.ForwardURL, &g.NotifyOnSpam); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list managed groups rows: %w", err)
	}
	return groups, nil
}
