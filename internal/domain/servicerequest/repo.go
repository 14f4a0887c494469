package servicerequest

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetProvider(ctx context.Context, id uuid.UUID, providerID *uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*ServiceRequest, int, error)
	// ListAll returns at most limit matching requests without counting.
	ListAll(ctx context.Context, f ListFilter, limit int) ([]*ServiceRequest, error)
	CountByStatus(ctx context.Context, f ListFilter) (map[string]int, error)

	AddHistory(ctx context.Context, h *History) error
	ListHistory(ctx context.Context, requestID uuid.UUID) ([]*History, error)

	UpsertResult(ctx context.Context, r *Result) error
	GetResult(ctx context.Context, requestID uuid.UUID) (*Result, error)

	AddPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListPayments(ctx context.Context, requestID uuid.UUID) ([]*Payment, error)
}
