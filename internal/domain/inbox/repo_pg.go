package inbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const notificationCols = `id, user_id, type, title, body, reference_id, is_read, read_at, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.ReferenceID, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO notification (id, user_id, type, title, body, reference_id)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.ReferenceID).Scan(&n.CreatedAt)
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Notification, int, error) {
	q := db.NewQuery("notification", notificationCols).Eq("user_id", userID)
	if f.UnreadOnly {
		q.Where("NOT is_read")
	}
	if f.Type != "" {
		q.Eq("type", f.Type)
	}
	q.OrderBy("ORDER BY created_at DESC, id DESC")

	var out []*Notification
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		n, err := scanNotification(row)
		if err == nil {
			out = append(out, n)
		}
		return err
	})
	return out, total, err
}

func (r *repoPG) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := scanNotification(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE notification SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationCols, id, userID))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "notification")
	}
	return n, nil
}

func (r *repoPG) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE notification SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM notification WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}
