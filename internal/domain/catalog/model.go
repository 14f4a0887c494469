package catalog

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/pkg/pagination"
)

// Specialty maps to the specialty table.
type Specialty struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ServiceCategory maps to the service_category table.
type ServiceCategory struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MedicalService maps to the service table. Services form a tree through
// ParentServiceID. CategoryName and ParentName are filled on reads.
type MedicalService struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Code            *string    `db:"code" json:"code,omitempty"`
	Description     *string    `db:"description" json:"description,omitempty"`
	CategoryID      *uuid.UUID `db:"category_id" json:"category_id,omitempty"`
	CategoryName    *string    `json:"category_name,omitempty"`
	ParentServiceID *uuid.UUID `db:"parent_service_id" json:"parent_service_id,omitempty"`
	ParentName      *string    `json:"parent_name,omitempty"`
	BasePrice       int64      `db:"base_price" json:"base_price"`
	DurationMinutes *int       `db:"duration_minutes" json:"duration_minutes,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Insurance maps to the insurance table. CoveragePercent is stored with two
// decimals.
type Insurance struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	CoveragePercent float64   `db:"coverage_percent" json:"coverage_percent"`
	Description     *string   `db:"description" json:"description,omitempty"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CoverageBasisPoints returns the coverage as hundredths of a percent, so
// 70.5% is 7050.
func (i *Insurance) CoverageBasisPoints() int64 {
	return int64(math.Round(i.CoveragePercent * 100))
}

// ListFilter narrows catalog lists. Zero values mean no filter.
type ListFilter struct {
	Search     string
	IsActive   *bool
	CategoryID *uuid.UUID
	ParentID   *uuid.UUID
	Page       pagination.Params
}
