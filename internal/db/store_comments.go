package db

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// CommentFilter narrows ListComments. Zero values are ignored.
type CommentFilter struct {
	Subdomain          string
	WorkerID           *uuid.UUID
	UnreadAdminReplies bool
}

func commentSelect() sq.SelectBuilder {
	return psql.Select(
		"c.id", "c.worker_id", "c.subdomain", "c.text",
		"c.attachment_name", "c.attachment_type", "c.attachment_size",
		"c.is_new", "c.has_unread_admin_reply", "c.last_reply_timestamp",
		"c.created_at", "c.updated_at",
		"w.name", "w.username", "w.photo", "d.id", "d.name",
	).
		From("comments c").
		LeftJoin("workers w ON w.id = c.worker_id").
		LeftJoin("departments d ON d.id = w.department_id")
}

func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment
	var attName, attType *string
	var attSize *int64
	var wName, wUsername, wPhoto, deptName *string
	var deptID *uuid.UUID

	err := row.Scan(
		&c.ID, &c.WorkerID, &c.Subdomain, &c.Text,
		&attName, &attType, &attSize,
		&c.IsNew, &c.HasUnreadAdminReply, &c.LastReplyTimestamp,
		&c.CreatedAt, &c.UpdatedAt,
		&wName, &wUsername, &wPhoto, &deptID, &deptName,
	)
	if err != nil {
		return nil, err
	}

	if attName != nil {
		c.Attachment = &models.Attachment{Name: *attName}
		if attType != nil {
			c.Attachment.Type = *attType
		}
		if attSize != nil {
			c.Attachment.Size = *attSize
		}
	}

	if c.WorkerID != nil && wName != nil {
		c.Worker = &models.WorkerRef{
			ID:   c.WorkerID,
			Name: *wName,
		}
		if wUsername != nil {
			c.Worker.Username = *wUsername
		}
		if wPhoto != nil {
			c.Worker.Photo = *wPhoto
		}
		if deptName != nil {
			c.Worker.Department = &models.DepartmentRef{ID: deptID, Name: *deptName}
		}
	}
	c.EnsureWorker()
	c.Replies = []*models.Reply{}
	return &c, nil
}

func (db *DB) listComments(ctx context.Context, q querier, f CommentFilter) ([]*models.Comment, error) {
	b := commentSelect().OrderBy("c.created_at DESC", "c.id DESC")
	if f.Subdomain != "" {
		b = b.Where(sq.Eq{"c.subdomain": f.Subdomain})
	}
	if f.WorkerID != nil {
		b = b.Where(sq.Eq{"c.worker_id": *f.WorkerID})
	}
	if f.UnreadAdminReplies {
		b = b.Where(sq.Eq{"c.has_unread_admin_reply": true})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comment query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	if err := loadReplies(ctx, q, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// loadReplies fills Replies on each comment in one round trip.
func loadReplies(ctx context.Context, q querier, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Comment, len(comments))
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
		ids = append(ids, c.ID.String())
	}

	rows, err := q.Query(ctx, `
		SELECT id, comment_id, author_id, text, is_admin_reply, is_new, subdomain, created_at
		FROM comment_replies
		WHERE comment_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Reply
		if err := rows.Scan(&r.ID, &r.CommentID, &r.AuthorID, &r.Text,
			&r.IsAdminReply, &r.IsNew, &r.Subdomain, &r.CreatedAt); err != nil {
			return fmt.Errorf("scan reply: %w", err)
		}
		if c, ok := byID[r.CommentID]; ok {
			c.Replies = append(c.Replies, &r)
		}
	}
	return rows.Err()
}

func (db *DB) getComment(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*models.Comment, error) {
	b := commentSelect().Where(sq.Eq{"c.id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE OF c")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comment query: %w", err)
	}

	c, err := scanComment(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "comment")
	}
	if err := loadReplies(ctx, q, []*models.Comment{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns comments matching f, newest first, with the worker
// and department joined and replies loaded.
func (db *DB) ListComments(ctx context.Context, f CommentFilter) ([]*models.Comment, error) {
	return db.listComments(ctx, db.Pool, f)
}

// GetComment returns a single comment by ID.
func (db *DB) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return db.getComment(ctx, db.Pool, id, false)
}

// CreateComment inserts c and returns it re-read with the worker joined.
func (db *DB) CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	var attName, attType, attKey *string
	var attData []byte
	var attSize *int64
	if a := c.Attachment; a != nil {
		attName, attType = &a.Name, &a.Type
		size := a.Size
		attSize = &size
		if a.StorageKey != "" {
			attKey = &a.StorageKey
		} else {
			attData = a.Data
		}
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO comments (id, worker_id, subdomain, text,
			attachment_name, attachment_type, attachment_data, attachment_size, attachment_key,
			is_new, has_unread_admin_reply, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID, c.WorkerID, c.Subdomain, c.Text,
		attName, attType, attData, attSize, attKey,
		c.IsNew, c.HasUnreadAdminReply, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return db.GetComment(ctx, c.ID)
}

// GetCommentAttachment returns the attachment of a comment including its
// bytes or object key.
func (db *DB) GetCommentAttachment(ctx context.Context, id uuid.UUID) (*models.Attachment, string, error) {
	var subdomain string
	var name, typ, key *string
	var data []byte
	var size *int64
	err := db.Pool.QueryRow(ctx, `
		SELECT subdomain, attachment_name, attachment_type, attachment_data, attachment_size, attachment_key
		FROM comments
		WHERE id = $1
	`, id).Scan(&subdomain, &name, &typ, &data, &size, &key)
	if err != nil {
		return nil, "", notFound(err, "comment")
	}
	if name == nil {
		return nil, subdomain, fmt.Errorf("attachment: %w", ErrNotFound)
	}

	a := &models.Attachment{Name: *name, Data: data}
	if typ != nil {
		a.Type = *typ
	}
	if size != nil {
		a.Size = *size
	}
	if key != nil {
		a.StorageKey = *key
	}
	return a, subdomain, nil
}

// AddReply appends r to its comment under a row lock and updates the
// comment's unread bookkeeping. The reply's subdomain is taken from the
// locked comment row.
func (db *DB) AddReply(ctx context.Context, r *models.Reply) (*models.Comment, error) {
	var out *models.Comment
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		c, err := db.getComment(ctx, tx, r.CommentID, true)
		if err != nil {
			return err
		}
		r.Subdomain = c.Subdomain

		if _, err := tx.Exec(ctx, `
			INSERT INTO comment_replies (id, comment_id, author_id, text, is_admin_reply, is_new, subdomain, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.ID, r.CommentID, r.AuthorID, r.Text, r.IsAdminReply, r.IsNew, r.Subdomain, r.CreatedAt); err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}

		c.ApplyReply(r)
		if _, err := tx.Exec(ctx, `
			UPDATE comments
			SET is_new = $2, has_unread_admin_reply = $3, last_reply_timestamp = $4, updated_at = $5
			WHERE id = $1
		`, c.ID, c.IsNew, c.HasUnreadAdminReply, c.LastReplyTimestamp, c.UpdatedAt); err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkCommentRead clears is_new on the comment and all of its replies.
func (db *DB) MarkCommentRead(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return db.mutateComment(ctx, id, func(ctx context.Context, tx pgx.Tx, c *models.Comment) error {
		c.MarkRead()
		if _, err := tx.Exec(ctx, `UPDATE comment_replies SET is_new = FALSE WHERE comment_id = $1`, c.ID); err != nil {
			return fmt.Errorf("mark replies read: %w", err)
		}
		return nil
	})
}

// MarkCommentAdminRepliesRead clears is_new on the comment's admin replies
// only. Worker replies keep their flags.
func (db *DB) MarkCommentAdminRepliesRead(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return db.mutateComment(ctx, id, func(ctx context.Context, tx pgx.Tx, c *models.Comment) error {
		c.MarkAdminRepliesRead()
		if _, err := tx.Exec(ctx, `
			UPDATE comment_replies SET is_new = FALSE
			WHERE comment_id = $1 AND is_admin_reply
		`, c.ID); err != nil {
			return fmt.Errorf("mark admin replies read: %w", err)
		}
		return nil
	})
}

func (db *DB) mutateComment(ctx context.Context, id uuid.UUID, fn func(context.Context, pgx.Tx, *models.Comment) error) (*models.Comment, error) {
	var out *models.Comment
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		c, err := db.getComment(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, c); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE comments
			SET is_new = $2, has_unread_admin_reply = $3, updated_at = $4
			WHERE id = $1
		`, c.ID, c.IsNew, c.HasUnreadAdminReply, c.UpdatedAt); err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkAllAdminRepliesRead clears admin reply flags across every comment of
// workerID. It returns the number of comments touched.
func (db *DB) MarkAllAdminRepliesRead(ctx context.Context, workerID uuid.UUID) (int64, error) {
	var n int64
	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			SELECT id FROM comments WHERE worker_id = $1 FOR UPDATE
		`, workerID); err != nil {
			return fmt.Errorf("lock comments: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE comment_replies r SET is_new = FALSE
			FROM comments c
			WHERE r.comment_id = c.id AND c.worker_id = $1 AND r.is_admin_reply AND r.is_new
		`, workerID); err != nil {
			return fmt.Errorf("mark admin replies read: %w", err)
		}
		tag, err := tx.Exec(ctx, `
			UPDATE comments SET has_unread_admin_reply = FALSE, updated_at = $2
			WHERE worker_id = $1 AND has_unread_admin_reply
		`, workerID, time.Now())
		if err != nil {
			return fmt.Errorf("clear unread flags: %w", err)
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}
