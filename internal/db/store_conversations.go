package db

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Read cursor methods

// ListReadCursors returns every cursor readerID holds in a tenant.
func (db *DB) ListReadCursors(ctx context.Context, readerID uuid.UUID, subdomain string) ([]*models.ReadCursor, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT reader_id, worker_id, subdomain, last_read_at, hidden, updated_at
		FROM read_cursors
		WHERE reader_id = $1 AND subdomain = $2
	`, readerID, subdomain)
	if err != nil {
		return nil, fmt.Errorf("list read cursors: %w", err)
	}
	defer rows.Close()

	var cursors []*models.ReadCursor
	for rows.Next() {
		var rc models.ReadCursor
		if err := rows.Scan(&rc.ReaderID, &rc.WorkerID, &rc.Subdomain,
			&rc.LastReadAt, &rc.Hidden, &rc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan read cursor: %w", err)
		}
		cursors = append(cursors, &rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate read cursors: %w", err)
	}
	return cursors, nil
}

// AdvanceReadCursor moves the cursor for (readerID, workerID) to at. A
// cursor never moves backwards.
func (db *DB) AdvanceReadCursor(ctx context.Context, readerID, workerID uuid.UUID, subdomain string, at time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO read_cursors (reader_id, worker_id, subdomain, last_read_at, updated_at)
		SELECT $1, w.id, w.subdomain, $4, NOW()
		FROM workers w
		WHERE w.id = $2 AND w.subdomain = $3
		ON CONFLICT (reader_id, worker_id) DO UPDATE
		SET last_read_at = GREATEST(read_cursors.last_read_at, EXCLUDED.last_read_at),
			updated_at = NOW()
	`, readerID, workerID, subdomain, at)
	if err != nil {
		return fmt.Errorf("advance read cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("worker: %w", ErrNotFound)
	}
	return nil
}

// AdvanceAllReadCursors moves readerID's cursor to at for every worker of
// the tenant that has commented.
func (db *DB) AdvanceAllReadCursors(ctx context.Context, readerID uuid.UUID, subdomain string, at time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO read_cursors (reader_id, worker_id, subdomain, last_read_at, updated_at)
		SELECT DISTINCT $1::uuid, c.worker_id, c.subdomain, $3::timestamptz, NOW()
		FROM comments c
		WHERE c.subdomain = $2 AND c.worker_id IS NOT NULL
		ON CONFLICT (reader_id, worker_id) DO UPDATE
		SET last_read_at = GREATEST(read_cursors.last_read_at, EXCLUDED.last_read_at),
			updated_at = NOW()
	`, readerID, subdomain, at)
	if err != nil {
		return 0, fmt.Errorf("advance read cursors: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetConversationHidden hides or shows a worker's conversation for readerID.
func (db *DB) SetConversationHidden(ctx context.Context, readerID, workerID uuid.UUID, subdomain string, hidden bool) error {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO read_cursors (reader_id, worker_id, subdomain, hidden, updated_at)
		SELECT $1, w.id, w.subdomain, $4, NOW()
		FROM workers w
		WHERE w.id = $2 AND w.subdomain = $3
		ON CONFLICT (reader_id, worker_id) DO UPDATE
		SET hidden = EXCLUDED.hidden, updated_at = NOW()
	`, readerID, workerID, subdomain, hidden)
	if err != nil {
		return fmt.Errorf("set conversation hidden: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("worker: %w", ErrNotFound)
	}
	return nil
}

// Chat group methods

// CreateChatGroup stores g and its members. Members that are not workers of
// the group's tenant are dropped; g.MemberIDs is updated to what was stored.
func (db *DB) CreateChatGroup(ctx context.Context, g *models.ChatGroup) error {
	return db.ExecTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_groups (id, subdomain, name, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, g.ID, g.Subdomain, g.Name, g.CreatedBy, g.CreatedAt); err != nil {
			return fmt.Errorf("create chat group: %w", err)
		}

		ids := make([]string, 0, len(g.MemberIDs))
		for _, id := range g.MemberIDs {
			ids = append(ids, id.String())
		}
		rows, err := tx.Query(ctx, `
			INSERT INTO chat_group_members (group_id, worker_id)
			SELECT $1, w.id FROM workers w
			WHERE w.id = ANY($2::uuid[]) AND w.subdomain = $3
			ON CONFLICT DO NOTHING
			RETURNING worker_id
		`, g.ID, ids, g.Subdomain)
		if err != nil {
			return fmt.Errorf("add chat group members: %w", err)
		}
		defer rows.Close()

		members := []uuid.UUID{}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan member: %w", err)
			}
			members = append(members, id)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("add chat group members: %w", err)
		}
		g.MemberIDs = members
		return nil
	})
}

// ListChatGroups returns a tenant's chat groups with their members.
func (db *DB) ListChatGroups(ctx context.Context, subdomain string) ([]*models.ChatGroup, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT g.id, g.subdomain, g.name, g.created_by, g.created_at,
			COALESCE(array_agg(m.worker_id::text) FILTER (WHERE m.worker_id IS NOT NULL), '{}')
		FROM chat_groups g
		LEFT JOIN chat_group_members m ON m.group_id = g.id
		WHERE g.subdomain = $1
		GROUP BY g.id
		ORDER BY g.name
	`, subdomain)
	if err != nil {
		return nil, fmt.Errorf("list chat groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.ChatGroup
	for rows.Next() {
		var g models.ChatGroup
		var members []string
		if err := rows.Scan(&g.ID, &g.Subdomain, &g.Name, &g.CreatedBy, &g.CreatedAt, &members); err != nil {
			return nil, fmt.Errorf("scan chat group: %w", err)
		}
		g.MemberIDs = make([]uuid.UUID, 0, len(members))
		for _, m := range members {
			id, err := uuid.Parse(m)
			if err != nil {
				return nil, fmt.Errorf("parse member id: %w", err)
			}
			g.MemberIDs = append(g.MemberIDs, id)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat groups: %w", err)
	}
	return groups, nil
}

// DeleteChatGroup removes a tenant's chat group.
func (db *DB) DeleteChatGroup(ctx context.Context, id uuid.UUID, subdomain string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM chat_groups WHERE id = $1 AND subdomain = $2`, id, subdomain)
	if err != nil {
		return fmt.Errorf("delete chat group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat group: %w", ErrNotFound)
	}
	return nil
}
