package lookup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinichub/internal/platform/db"
)

type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Upsert(ctx context.Context, values []Value) error {
	batch := &pgx.Batch{}
	for _, v := range values {
		batch.Queue(`
			INSERT INTO lookup_value (category, code, label, sort_order)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (category, code) DO UPDATE SET label = EXCLUDED.label, sort_order = EXCLUDED.sort_order`,
			v.Category, v.Code, v.Label, v.SortOrder)
	}

	b, ok := db.Conn(ctx, r.pool).(batcher)
	if !ok {
		return fmt.Errorf("upsert lookup values: connection does not support batches")
	}
	br := b.SendBatch(ctx, batch)
	defer br.Close()

	for _, v := range values {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert lookup %s/%s: %w", v.Category, v.Code, err)
		}
	}
	return nil
}
