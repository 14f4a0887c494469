package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/pkg/pagination"
)

// User maps to the app_user table. Users are never deleted; deactivation
// frees their phone and national code for reuse.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Phone        string    `db:"phone" json:"phone"`
	Email        *string   `db:"email" json:"email,omitempty"`
	NationalCode *string   `db:"national_code" json:"national_code,omitempty"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Gender       *string   `db:"gender" json:"gender,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Patient is a patient_profile row together with its user.
type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	BloodType      *string    `db:"blood_type" json:"blood_type,omitempty"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	EmergencyPhone *string    `db:"emergency_phone" json:"emergency_phone,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	User           *User      `json:"user"`
}

// PatientInsurance is a patient_insurance row joined with its insurance.
type PatientInsurance struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	InsuranceID     uuid.UUID `db:"insurance_id" json:"insurance_id"`
	InsuranceName   string    `json:"insurance_name"`
	CoveragePercent float64   `json:"coverage_percent"`
	PolicyNumber    *string   `db:"policy_number" json:"policy_number,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Provider is a provider_profile row together with its user and the names
// of its specialty and clinic.
type Provider struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	SpecialtyID     *uuid.UUID `db:"specialty_id" json:"specialty_id,omitempty"`
	SpecialtyName   *string    `json:"specialty_name,omitempty"`
	ClinicID        *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	ClinicName      *string    `json:"clinic_name,omitempty"`
	LicenseNumber   *string    `db:"license_number" json:"license_number,omitempty"`
	Degree          *string    `db:"degree" json:"degree,omitempty"`
	ExperienceYears *int       `db:"experience_years" json:"experience_years,omitempty"`
	Bio             *string    `db:"bio" json:"bio,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	User            *User      `json:"user"`
}

type UserFilter struct {
	Search   string
	Role     string
	IsActive *bool
	Page     pagination.Params
}

type PatientFilter struct {
	Search   string
	IsActive *bool
	Page     pagination.Params
}

// ProviderFilter filters are ANDed.
type ProviderFilter struct {
	Search      string
	IsActive    *bool
	SpecialtyID *uuid.UUID
	ClinicID    *uuid.UUID
	Page        pagination.Params
}
