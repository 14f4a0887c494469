package clinic

import (
	"context"

	"github.com/google/uuid"
)

type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	Update(ctx context.Context, c *Clinic) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Clinic, int, error)

	// Work hours
	DeleteWorkHours(ctx context.Context, clinicID uuid.UUID) error
	AddWorkHour(ctx context.Context, wh *WorkHour) error
	ListWorkHours(ctx context.Context, clinicID uuid.UUID) ([]*WorkHour, error)

	// Addresses
	AddAddress(ctx context.Context, a *Address) error
	RemoveAddress(ctx context.Context, clinicID, addressID uuid.UUID) error
	ListAddresses(ctx context.Context, clinicID uuid.UUID) ([]*Address, error)

	// Services
	UpsertService(ctx context.Context, clinicID, serviceID uuid.UUID, price *int64) error
	RemoveService(ctx context.Context, clinicID, serviceID uuid.UUID) error
	ListServices(ctx context.Context, clinicID uuid.UUID) ([]*OfferedService, error)
	GetService(ctx context.Context, clinicID, serviceID uuid.UUID) (*OfferedService, error)

	// Insurances
	AddInsurance(ctx context.Context, clinicID, insuranceID uuid.UUID) error
	RemoveInsurance(ctx context.Context, clinicID, insuranceID uuid.UUID) error
	ListInsurances(ctx context.Context, clinicID uuid.UUID) ([]*AcceptedInsurer, error)
}
