package catalog

import (
	"context"

	"github.com/google/uuid"
)

type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	Update(ctx context.Context, s *Specialty) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Specialty, int, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *ServiceCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceCategory, error)
	Update(ctx context.Context, c *ServiceCategory) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*ServiceCategory, int, error)
}

type ServiceRepository interface {
	Create(ctx context.Context, s *MedicalService) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	Update(ctx context.Context, s *MedicalService) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*MedicalService, int, error)
	// ParentOf returns the parent id of a service, nil for a root.
	ParentOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
}

type InsuranceRepository interface {
	Create(ctx context.Context, i *Insurance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Insurance, error)
	Update(ctx context.Context, i *Insurance) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Insurance, int, error)
}
