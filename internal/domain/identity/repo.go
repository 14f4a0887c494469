package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetActiveByPhone and GetActiveByEmail only see active users.
	GetActiveByPhone(ctx context.Context, phone string) (*User, error)
	GetActiveByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, f UserFilter) ([]*User, int, error)
	// ActiveConflict names the first of phone or national_code already held
	// by another active user, or returns "".
	ActiveConflict(ctx context.Context, phone string, nationalCode *string, exclude uuid.UUID) (string, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, f PatientFilter) ([]*Patient, int, error)

	AddInsurance(ctx context.Context, pi *PatientInsurance) error
	ListInsurances(ctx context.Context, patientID uuid.UUID) ([]*PatientInsurance, error)
	RemoveInsurance(ctx context.Context, patientID, insuranceID uuid.UUID) error
}

type ProviderRepository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)
	Update(ctx context.Context, p *Provider) error
	List(ctx context.Context, f ProviderFilter) ([]*Provider, int, error)
}
