package servicerequest

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/pkg/pagination"
)

const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusRejected   = "rejected"
)

// Statuses lists every request status in lifecycle order.
var Statuses = []string{StatusPending, StatusApproved, StatusInProgress, StatusDone, StatusRejected}

func ValidStatus(s string) bool { return slices.Contains(Statuses, s) }

const (
	MethodCash      = "cash"
	MethodCard      = "card"
	MethodOnline    = "online"
	MethodInsurance = "insurance"
)

var PaymentMethods = []string{MethodCash, MethodCard, MethodOnline, MethodInsurance}

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

var PaymentStatuses = []string{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

// ServiceRequest maps to the service_request table. The name fields are
// joined in on reads.
type ServiceRequest struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientUserID      uuid.UUID  `json:"-"`
	PatientName        string     `json:"patient_name"`
	PatientPhone       string     `json:"patient_phone"`
	ClinicID           *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	ClinicName         *string    `json:"clinic_name,omitempty"`
	ServiceID          *uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	ServiceName        *string    `json:"service_name,omitempty"`
	InsuranceID        *uuid.UUID `db:"insurance_id" json:"insurance_id,omitempty"`
	InsuranceName      *string    `json:"insurance_name,omitempty"`
	AssignedProviderID *uuid.UUID `db:"assigned_provider_id" json:"assigned_provider_id,omitempty"`
	ProviderName       *string    `json:"provider_name,omitempty"`
	Status             string     `db:"status" json:"status"`
	PreferredTime      *time.Time `db:"preferred_time" json:"preferred_time,omitempty"`
	TotalPrice         *int64     `db:"total_price" json:"total_price,omitempty"`
	InsuranceCovered   *int64     `db:"insurance_covered" json:"insurance_covered,omitempty"`
	PatientPayable     *int64     `db:"patient_payable" json:"patient_payable,omitempty"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy          *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (r *ServiceRequest) serviceLabel() string {
	if r.ServiceName != nil {
		return *r.ServiceName
	}
	return "service"
}

// History is one recorded status change.
type History struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ServiceRequestID uuid.UUID  `db:"service_request_id" json:"service_request_id"`
	FromStatus       string     `db:"from_status" json:"from_status"`
	ToStatus         string     `db:"to_status" json:"to_status"`
	Note             *string    `db:"note" json:"note,omitempty"`
	ChangedBy        *uuid.UUID `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt        time.Time  `db:"changed_at" json:"changed_at"`
}

// Result is the single outcome document of a request.
type Result struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ServiceRequestID uuid.UUID  `db:"service_request_id" json:"service_request_id"`
	ResultText       string     `db:"result_text" json:"result_text"`
	AttachmentURL    *string    `db:"attachment_url" json:"attachment_url,omitempty"`
	SubmittedBy      *uuid.UUID `db:"submitted_by" json:"submitted_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type Payment struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ServiceRequestID uuid.UUID  `db:"service_request_id" json:"service_request_id"`
	Amount           int64      `db:"amount" json:"amount"`
	Method           string     `db:"method" json:"method"`
	Status           string     `db:"status" json:"status"`
	Reference        *string    `db:"reference" json:"reference,omitempty"`
	RecordedBy       *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	PaidAt           time.Time  `db:"paid_at" json:"paid_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

const (
	DateFieldCreated   = "created_at"
	DateFieldPreferred = "preferred_time"

	ViewRecent = "recent"
	ViewToday  = "today"
)

// ListFilter filters are ANDed. DateFrom is inclusive and DateTo exclusive,
// both applied to DateField.
type ListFilter struct {
	Search     string
	Status     string
	ClinicID   *uuid.UUID
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	DateField  string
	DateFrom   *time.Time
	DateTo     *time.Time
	View       string
	Page       pagination.Params
}

// Stats counts requests per status. Every status is present.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// Quote is the price split of a request.
type Quote struct {
	Total   int64
	Covered int64
	Payable int64
}

// NewQuote splits total by an insurance coverage given in basis points
// (7000 = 70%). The covered part is rounded half up to a whole unit and the
// patient pays the rest.
func NewQuote(total, coverageBP int64) Quote {
	if coverageBP < 0 {
		coverageBP = 0
	}
	if coverageBP > 10000 {
		coverageBP = 10000
	}
	covered := (total*coverageBP + 5000) / 10000
	return Quote{Total: total, Covered: covered, Payable: total - covered}
}
