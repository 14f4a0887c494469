// Package audit stores and serves the append-only log of mutating API calls.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/pkg/pagination"
)

// Log maps to the audit_log table.
type Log struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UserID     *string    `db:"user_id" json:"user_id,omitempty"`
	Action     string     `db:"action" json:"action"`
	Resource   string     `db:"resource" json:"resource"`
	ResourceID *uuid.UUID `db:"resource_id" json:"resource_id,omitempty"`
	Path       string     `db:"path" json:"path"`
	Method     string     `db:"method" json:"method"`
	StatusCode int        `db:"status_code" json:"status_code"`
	IPAddress  *string    `db:"ip_address" json:"ip_address,omitempty"`
	RequestID  *string    `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ListFilter narrows the log. DateFrom is inclusive, DateTo exclusive.
type ListFilter struct {
	UserID   string
	Resource string
	Action   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     pagination.Params
}
