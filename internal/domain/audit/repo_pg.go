package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinichub/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const logCols = `id, user_id, action, resource, resource_id, path, method, status_code,
	ip_address, request_id, created_at`

func (p *repoPG) Create(ctx context.Context, l *Log) error {
	l.ID = uuid.New()
	return db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO audit_log (id, user_id, action, resource, resource_id, path, method, status_code,
			ip_address, request_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		l.ID, l.UserID, l.Action, l.Resource, l.ResourceID, l.Path, l.Method, l.StatusCode,
		l.IPAddress, l.RequestID, l.CreatedAt,
	).Scan(&l.CreatedAt)
}

func (p *repoPG) List(ctx context.Context, f ListFilter) ([]*Log, int, error) {
	q := db.NewQuery("audit_log", logCols)
	if f.UserID != "" {
		q.Eq("user_id", f.UserID)
	}
	if f.Resource != "" {
		q.Eq("resource", f.Resource)
	}
	if f.Action != "" {
		q.Eq("action", f.Action)
	}
	if f.DateFrom != nil {
		q.Where("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q.Where("created_at < ?", *f.DateTo)
	}
	q.OrderBy("ORDER BY created_at DESC, id DESC")

	var out []*Log
	total, err := q.Page(ctx, db.Conn(ctx, p.pool), f.Page.Limit, f.Page.Offset, func(rows pgx.Rows) error {
		var l Log
		err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID, &l.Path, &l.Method,
			&l.StatusCode, &l.IPAddress, &l.RequestID, &l.CreatedAt)
		if err == nil {
			out = append(out, &l)
		}
		return err
	})
	return out, total, err
}
