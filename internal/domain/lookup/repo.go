package lookup

import "context"

type Repository interface {
	Upsert(ctx context.Context, values []Value) error
}
