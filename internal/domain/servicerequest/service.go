package servicerequest

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinichub/clinichub/internal/domain/catalog"
	"github.com/clinichub/clinichub/internal/domain/clinic"
	"github.com/clinichub/clinichub/internal/domain/identity"
	"github.com/clinichub/clinichub/internal/domain/inbox"
	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/auth"
	"github.com/clinichub/clinichub/internal/platform/db"
	"github.com/clinichub/clinichub/internal/platform/notification"
	"github.com/clinichub/clinichub/internal/platform/reporting"
)

// ExportLimit caps the rows written to a spreadsheet export.
const ExportLimit = 10000

type PatientLookup interface {
	ActivePatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	PatientByUser(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
}

type ProviderLookup interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*identity.Provider, error)
}

type ClinicLookup interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error)
	ServicePrice(ctx context.Context, clinicID, serviceID uuid.UUID) (*clinic.OfferedService, bool, error)
}

type CatalogLookup interface {
	GetService(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
	GetInsurance(ctx context.Context, id uuid.UUID) (*catalog.Insurance, error)
}

// Notifier records an in-app notification rendered from a template.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, templateID string, data map[string]string, ref *uuid.UUID) error
}

// Deliverer sends a templated message over an outside channel.
type Deliverer interface {
	Deliver(ctx context.Context, channel notification.Channel, recipient, templateID string, data map[string]string) error
}

type Deps struct {
	Repo      Repository
	Patients  PatientLookup
	Providers ProviderLookup
	Clinics   ClinicLookup
	Catalog   CatalogLookup
	Notifier  Notifier
	Deliverer Deliverer
	Tx        db.Transactor
	Logger    zerolog.Logger
}

type Service struct {
	repo      Repository
	patients  PatientLookup
	providers ProviderLookup
	clinics   ClinicLookup
	catalog   CatalogLookup
	notifier  Notifier
	deliverer Deliverer
	tx        db.Transactor
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Repo,
		patients:  d.Patients,
		providers: d.Providers,
		clinics:   d.Clinics,
		catalog:   d.Catalog,
		notifier:  d.Notifier,
		deliverer: d.Deliverer,
		tx:        d.Tx,
		logger:    d.Logger.With().Str("component", "service_request").Logger(),
		now:       time.Now,
	}
}

func callerID(ctx context.Context) *uuid.UUID {
	if id, ok := auth.UserUUIDFromContext(ctx); ok {
		return &id
	}
	return nil
}

// ownPatient returns the caller's patient id when the caller acts purely as a
// patient, and nil for staff.
func (s *Service) ownPatient(ctx context.Context) (*uuid.UUID, error) {
	if !auth.IsPatientOnly(ctx) {
		return nil, nil
	}
	userID, ok := auth.UserUUIDFromContext(ctx)
	if !ok {
		return nil, apperr.Forbidden("access denied")
	}
	p, err := s.patients.PatientByUser(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Forbidden("caller has no patient profile")
		}
		return nil, err
	}
	return &p.ID, nil
}

func (s *Service) authorize(ctx context.Context, r *ServiceRequest) error {
	own, err := s.ownPatient(ctx)
	if err != nil {
		return err
	}
	if own != nil && *own != r.PatientID {
		return apperr.Forbidden("patients may only access their own requests")
	}
	return nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// price computes the quote for a service at a clinic under an insurance.
// The clinic override wins over the service base price when the clinic
// offers the service.
func (s *Service) price(ctx context.Context, r *ServiceRequest) error {
	var bp int64
	if r.InsuranceID != nil {
		ins, err := s.catalog.GetInsurance(ctx, *r.InsuranceID)
		if err != nil {
			return err
		}
		bp = ins.CoverageBasisPoints()
	}
	if r.ServiceID == nil {
		return nil
	}
	svc, err := s.catalog.GetService(ctx, *r.ServiceID)
	if err != nil {
		return err
	}
	total := svc.BasePrice
	if r.ClinicID != nil {
		offered, ok, err := s.clinics.ServicePrice(ctx, *r.ClinicID, *r.ServiceID)
		if err != nil {
			return err
		}
		if ok {
			total = offered.EffectivePrice
		}
	}
	q := NewQuote(total, bp)
	r.TotalPrice, r.InsuranceCovered, r.PatientPayable = &q.Total, &q.Covered, &q.Payable
	return nil
}

// Create validates the references of r, prices it and stores it as pending.
// A patient caller may only create requests for themselves; an empty
// patient_id defaults to the caller.
func (s *Service) Create(ctx context.Context, r *ServiceRequest) error {
	own, err := s.ownPatient(ctx)
	if err != nil {
		return err
	}
	if own != nil {
		if r.PatientID == uuid.Nil {
			r.PatientID = *own
		} else if r.PatientID != *own {
			return apperr.Forbidden("patients may only create requests for themselves")
		}
	}
	if r.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	r.Notes = trimOptional(r.Notes)

	if _, err := s.patients.ActivePatient(ctx, r.PatientID); err != nil {
		return err
	}
	if r.ClinicID != nil {
		if _, err := s.clinics.GetClinic(ctx, *r.ClinicID); err != nil {
			return err
		}
	}
	if r.AssignedProviderID != nil {
		if _, err := s.providers.GetProvider(ctx, *r.AssignedProviderID); err != nil {
			return err
		}
	}
	if err := s.price(ctx, r); err != nil {
		return err
	}

	r.Status = StatusPending
	r.CreatedBy = callerID(ctx)
	if err := s.repo.Create(ctx, r); err != nil {
		return err
	}
	full, err := s.repo.GetByID(ctx, r.ID)
	if err != nil {
		return err
	}
	*r = *full

	s.announce(ctx, r, inbox.TypeServiceRequest, notification.TemplateServiceRequestCreate, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ChangeStatus moves a request to status. Any transition between known
// statuses is accepted; the status update, its history row and the patient
// notification commit together.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status string, note *string) (*ServiceRequest, error) {
	status = strings.TrimSpace(status)
	if !ValidStatus(status) {
		return nil, apperr.Validation("invalid status %q, expected one of %s", status, strings.Join(Statuses, ", "))
	}
	note = trimOptional(note)

	var updated *ServiceRequest
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		h := &History{ServiceRequestID: id, FromStatus: r.Status, ToStatus: status, Note: note, ChangedBy: callerID(ctx)}
		if err := s.repo.AddHistory(ctx, h); err != nil {
			return err
		}
		r.Status = status
		if err := s.notifier.Notify(ctx, r.PatientUserID, inbox.TypeServiceRequest,
			notification.TemplateServiceRequestStatus, templateData(r, nil), &r.ID); err != nil {
			return err
		}
		updated, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, updated, notification.TemplateServiceRequestStatus, nil)
	return updated, nil
}

// Assign sets or clears the provider responsible for a request.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, providerID *uuid.UUID) (*ServiceRequest, error) {
	if providerID != nil {
		if _, err := s.providers.GetProvider(ctx, *providerID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetProvider(ctx, id, providerID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*History, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// normalize applies the caller restriction and the named views to f.
func (s *Service) normalize(ctx context.Context, f *ListFilter) error {
	if f.Status != "" && !ValidStatus(f.Status) {
		return apperr.Validation("invalid status %q", f.Status)
	}
	if f.DateField == "" {
		f.DateField = DateFieldCreated
	}
	if f.DateField != DateFieldCreated && f.DateField != DateFieldPreferred {
		return apperr.Validation("date_field must be created_at or preferred_time")
	}
	if f.DateFrom != nil && f.DateTo != nil && !f.DateFrom.Before(*f.DateTo) {
		return apperr.Validation("date_from must be before date_to")
	}

	switch f.View {
	case "":
	case ViewRecent:
		f.Page.Sort, f.Page.Desc = DateFieldCreated, true
	case ViewToday:
		now := s.now()
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 0, 1)
		f.DateField, f.DateFrom, f.DateTo = DateFieldPreferred, &start, &end
		f.Page.Sort, f.Page.Desc = DateFieldPreferred, false
	default:
		return apperr.Validation("view must be recent or today")
	}

	own, err := s.ownPatient(ctx)
	if err != nil {
		return err
	}
	if own != nil {
		f.PatientID = own
	}
	return nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*ServiceRequest, int, error) {
	if err := s.normalize(ctx, &f); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Stats(ctx context.Context, f ListFilter) (*Stats, error) {
	if err := s.normalize(ctx, &f); err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, f)
	if err != nil {
		return nil, err
	}
	st := &Stats{ByStatus: make(map[string]int, len(Statuses))}
	for _, status := range Statuses {
		st.ByStatus[status] = counts[status]
		st.Total += counts[status]
	}
	return st, nil
}

// Export renders the filtered requests as an xlsx workbook.
func (s *Service) Export(ctx context.Context, f ListFilter) ([]byte, error) {
	if err := s.normalize(ctx, &f); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAll(ctx, f, ExportLimit)
	if err != nil {
		return nil, err
	}
	rows := make([]reporting.ServiceRequestRow, len(items))
	for i, r := range items {
		rows[i] = reporting.ServiceRequestRow{
			ID:               r.ID.String(),
			PatientName:      r.PatientName,
			PatientPhone:     r.PatientPhone,
			ClinicName:       deref(r.ClinicName),
			ServiceName:      deref(r.ServiceName),
			ProviderName:     deref(r.ProviderName),
			Status:           r.Status,
			PreferredTime:    r.PreferredTime,
			TotalPrice:       r.TotalPrice,
			InsuranceCovered: r.InsuranceCovered,
			PatientPayable:   r.PatientPayable,
			CreatedAt:        r.CreatedAt,
		}
	}
	return reporting.ServiceRequestWorkbook(rows)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// -- Result --

func validAttachmentURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SubmitResult creates or replaces the result of a request.
func (s *Service) SubmitResult(ctx context.Context, res *Result) error {
	res.ResultText = strings.TrimSpace(res.ResultText)
	res.AttachmentURL = trimOptional(res.AttachmentURL)
	if res.ResultText == "" {
		return apperr.Validation("result_text is required")
	}
	if res.AttachmentURL != nil && !validAttachmentURL(*res.AttachmentURL) {
		return apperr.Validation("attachment_url must be an http or https URL")
	}
	r, err := s.repo.GetByID(ctx, res.ServiceRequestID)
	if err != nil {
		return err
	}
	res.SubmittedBy = callerID(ctx)
	if err := s.repo.UpsertResult(ctx, res); err != nil {
		return err
	}
	s.announce(ctx, r, inbox.TypeResult, notification.TemplateServiceResultReady, nil)
	return nil
}

func (s *Service) GetResult(ctx context.Context, requestID uuid.UUID) (*Result, error) {
	if _, err := s.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.GetResult(ctx, requestID)
}

// -- Payment --

func (s *Service) RecordPayment(ctx context.Context, p *Payment) error {
	if p.Amount <= 0 {
		return apperr.Validation("amount must be positive")
	}
	p.Method = strings.TrimSpace(p.Method)
	if !slices.Contains(PaymentMethods, p.Method) {
		return apperr.Validation("method must be one of %s", strings.Join(PaymentMethods, ", "))
	}
	if p.Status == "" {
		p.Status = PaymentPaid
	}
	if !slices.Contains(PaymentStatuses, p.Status) {
		return apperr.Validation("status must be one of %s", strings.Join(PaymentStatuses, ", "))
	}
	p.Reference = trimOptional(p.Reference)
	if p.PaidAt.IsZero() {
		p.PaidAt = s.now()
	}
	r, err := s.repo.GetByID(ctx, p.ServiceRequestID)
	if err != nil {
		return err
	}
	p.RecordedBy = callerID(ctx)
	if err := s.repo.AddPayment(ctx, p); err != nil {
		return err
	}
	s.announce(ctx, r, inbox.TypePayment, notification.TemplatePaymentRecorded, map[string]string{
		"amount": reporting.FormatAmount(p.Amount),
		"method": p.Method,
	})
	return nil
}

func (s *Service) ListPayments(ctx context.Context, requestID uuid.UUID) ([]*Payment, error) {
	if _, err := s.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, requestID)
}

// Receipt renders a PDF receipt for a payment.
func (s *Service) Receipt(ctx context.Context, paymentID uuid.UUID) ([]byte, *Payment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.Get(ctx, p.ServiceRequestID)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := reporting.PaymentReceipt(reporting.Receipt{
		PaymentID:        p.ID.String(),
		ServiceRequestID: r.ID.String(),
		PatientName:      r.PatientName,
		ClinicName:       deref(r.ClinicName),
		ServiceName:      deref(r.ServiceName),
		Amount:           p.Amount,
		Method:           p.Method,
		Status:           p.Status,
		TotalPrice:       r.TotalPrice,
		InsuranceCovered: r.InsuranceCovered,
		PatientPayable:   r.PatientPayable,
		PaidAt:           p.PaidAt,
	})
	if err != nil {
		return nil, nil, err
	}
	return pdf, p, nil
}

// -- Notifications --

func templateData(r *ServiceRequest, extra map[string]string) map[string]string {
	data := map[string]string{
		"patient_name": r.PatientName,
		"service_name": r.serviceLabel(),
		"status":       r.Status,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// announce records an in-app notification and sends an SMS to the patient.
// The triggering write has already succeeded, so failures are only logged.
func (s *Service) announce(ctx context.Context, r *ServiceRequest, kind, templateID string, extra map[string]string) {
	if err := s.notifier.Notify(ctx, r.PatientUserID, kind, templateID, templateData(r, extra), &r.ID); err != nil {
		s.logger.Warn().Err(err).Str("service_request_id", r.ID.String()).Str("template", templateID).
			Msg("failed to record notification")
	}
	s.deliver(ctx, r, templateID, extra)
}

func (s *Service) deliver(ctx context.Context, r *ServiceRequest, templateID string, extra map[string]string) {
	if s.deliverer == nil || r.PatientPhone == "" {
		return
	}
	if err := s.deliverer.Deliver(ctx, notification.ChannelSMS, r.PatientPhone, templateID, templateData(r, extra)); err != nil {
		s.logger.Warn().Err(err).Str("service_request_id", r.ID.String()).Str("template", templateID).
			Msg("failed to deliver notification")
	}
}
