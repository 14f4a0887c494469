// Package inbox stores the in-app notifications shown to a user.
package inbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/pkg/pagination"
)

const (
	TypeServiceRequest = "service_request"
	TypeResult         = "result"
	TypePayment        = "payment"
	TypeSystem         = "system"
)

var Types = []string{TypeServiceRequest, TypeResult, TypePayment, TypeSystem}

// Notification maps to the notification table. Only the read flag changes
// after insert.
type Notification struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Type        string     `db:"type" json:"type"`
	Title       string     `db:"title" json:"title"`
	Body        string     `db:"body" json:"body"`
	ReferenceID *uuid.UUID `db:"reference_id" json:"reference_id,omitempty"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type ListFilter struct {
	UnreadOnly bool
	Type       string
	Page       pagination.Params
}
