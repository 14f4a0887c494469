package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/pkg/pagination"
)

// Clinic maps to the clinic table. The nested lists are only filled by
// detail reads.
type Clinic struct {
	ID          uuid.UUID          `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	Phone       *string            `db:"phone" json:"phone,omitempty"`
	Description *string            `db:"description" json:"description,omitempty"`
	IsActive    bool               `db:"is_active" json:"is_active"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
	Addresses   []*Address         `json:"addresses,omitempty"`
	WorkHours   []*WorkHour        `json:"work_hours,omitempty"`
	Services    []*OfferedService  `json:"services,omitempty"`
	Insurances  []*AcceptedInsurer `json:"insurances,omitempty"`
}

type Address struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ClinicID   uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Street     string    `db:"street" json:"street"`
	City       string    `db:"city" json:"city"`
	Province   *string   `db:"province" json:"province,omitempty"`
	PostalCode *string   `db:"postal_code" json:"postal_code,omitempty"`
	Latitude   *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude  *float64  `db:"longitude" json:"longitude,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// WorkHour is one opening interval. Weekday follows time.Weekday and the
// times are HH:MM in the clinic's local time.
type WorkHour struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ClinicID  uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Weekday   int       `db:"weekday" json:"weekday"`
	OpenTime  string    `db:"open_time" json:"open_time"`
	CloseTime string    `db:"close_time" json:"close_time"`
}

// OfferedService is a clinic_service row joined with its service. Price is
// the clinic override; EffectivePrice is what a request is charged.
type OfferedService struct {
	ClinicID       uuid.UUID `db:"clinic_id" json:"clinic_id"`
	ServiceID      uuid.UUID `db:"service_id" json:"service_id"`
	ServiceName    string    `json:"service_name"`
	BasePrice      int64     `json:"base_price"`
	Price          *int64    `db:"price" json:"price,omitempty"`
	EffectivePrice int64     `json:"effective_price"`
}

// AcceptedInsurer is a clinic_insurance row joined with its insurance.
type AcceptedInsurer struct {
	ClinicID        uuid.UUID `db:"clinic_id" json:"clinic_id"`
	InsuranceID     uuid.UUID `db:"insurance_id" json:"insurance_id"`
	InsuranceName   string    `json:"insurance_name"`
	CoveragePercent float64   `json:"coverage_percent"`
}

type ListFilter struct {
	Search      string
	IsActive    *bool
	ServiceID   *uuid.UUID
	InsuranceID *uuid.UUID
	Page        pagination.Params
}
