package servicerequest

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinichub/clinichub/internal/domain/catalog"
	"github.com/clinichub/clinichub/internal/domain/clinic"
	"github.com/clinichub/clinichub/internal/domain/identity"
	"github.com/clinichub/clinichub/internal/domain/inbox"
	"github.com/clinichub/clinichub/internal/domain/lookup"
	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/auth"
	"github.com/clinichub/clinichub/internal/platform/db"
	"github.com/clinichub/clinichub/internal/platform/notification"
	"github.com/clinichub/clinichub/pkg/pagination"
)

// -- Mocks --

type mockRefs struct {
	patients   map[uuid.UUID]*identity.Patient
	providers  map[uuid.UUID]*identity.Provider
	clinics    map[uuid.UUID]*clinic.Clinic
	offered    map[[2]uuid.UUID]int64
	services   map[uuid.UUID]*catalog.MedicalService
	insurances map[uuid.UUID]*catalog.Insurance
}

func newMockRefs() *mockRefs {
	return &mockRefs{
		patients:   make(map[uuid.UUID]*identity.Patient),
		providers:  make(map[uuid.UUID]*identity.Provider),
		clinics:    make(map[uuid.UUID]*clinic.Clinic),
		offered:    make(map[[2]uuid.UUID]int64),
		services:   make(map[uuid.UUID]*catalog.MedicalService),
		insurances: make(map[uuid.UUID]*catalog.Insurance),
	}
}

func (m *mockRefs) ActivePatient(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	if !p.User.IsActive {
		return nil, apperr.Validation("patient is inactive")
	}
	return p, nil
}

func (m *mockRefs) PatientByUser(_ context.Context, userID uuid.UUID) (*identity.Patient, error) {
	for _, p := range m.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (m *mockRefs) GetProvider(_ context.Context, id uuid.UUID) (*identity.Provider, error) {
	p, ok := m.providers[id]
	if !ok {
		return nil, apperr.NotFound("provider not found")
	}
	return p, nil
}

func (m *mockRefs) GetClinic(_ context.Context, id uuid.UUID) (*clinic.Clinic, error) {
	c, ok := m.clinics[id]
	if !ok {
		return nil, apperr.NotFound("clinic not found")
	}
	return c, nil
}

func (m *mockRefs) ServicePrice(_ context.Context, clinicID, serviceID uuid.UUID) (*clinic.OfferedService, bool, error) {
	price, ok := m.offered[[2]uuid.UUID{clinicID, serviceID}]
	if !ok {
		return nil, false, nil
	}
	return &clinic.OfferedService{ClinicID: clinicID, ServiceID: serviceID, Price: &price, EffectivePrice: price}, true, nil
}

func (m *mockRefs) GetService(_ context.Context, id uuid.UUID) (*catalog.MedicalService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, apperr.NotFound("service not found")
	}
	return s, nil
}

func (m *mockRefs) GetInsurance(_ context.Context, id uuid.UUID) (*catalog.Insurance, error) {
	i, ok := m.insurances[id]
	if !ok {
		return nil, apperr.NotFound("insurance not found")
	}
	return i, nil
}

type mockRepo struct {
	refs       *mockRefs
	requests   map[uuid.UUID]*ServiceRequest
	history    []*History
	results    map[uuid.UUID]*Result
	payments   []*Payment
	lastFilter ListFilter
}

func newMockRepo(refs *mockRefs) *mockRepo {
	return &mockRepo{
		refs:     refs,
		requests: make(map[uuid.UUID]*ServiceRequest),
		results:  make(map[uuid.UUID]*Result),
	}
}

func (m *mockRepo) Create(_ context.Context, r *ServiceRequest) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

// joined fills the read-side fields the SQL joins provide.
func (m *mockRepo) joined(r *ServiceRequest) *ServiceRequest {
	cp := *r
	if p, ok := m.refs.patients[r.PatientID]; ok {
		cp.PatientUserID = p.UserID
		cp.PatientName = p.User.FirstName + " " + p.User.LastName
		cp.PatientPhone = p.User.Phone
	}
	if r.ServiceID != nil {
		if s, ok := m.refs.services[*r.ServiceID]; ok {
			cp.ServiceName = &s.Name
		}
	}
	if r.ClinicID != nil {
		if c, ok := m.refs.clinics[*r.ClinicID]; ok {
			cp.ClinicName = &c.Name
		}
	}
	return &cp
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("service request not found")
	}
	return m.joined(r), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r, ok := m.requests[id]
	if !ok {
		return apperr.NotFound("service request not found")
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) SetProvider(_ context.Context, id uuid.UUID, providerID *uuid.UUID) error {
	r, ok := m.requests[id]
	if !ok {
		return apperr.NotFound("service request not found")
	}
	r.AssignedProviderID = providerID
	return nil
}

func (m *mockRepo) filter(f ListFilter) []*ServiceRequest {
	m.lastFilter = f
	var out []*ServiceRequest
	for _, r := range m.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.PatientID != nil && r.PatientID != *f.PatientID {
			continue
		}
		if f.ClinicID != nil && (r.ClinicID == nil || *r.ClinicID != *f.ClinicID) {
			continue
		}
		out = append(out, m.joined(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]*ServiceRequest, int, error) {
	all := m.filter(f)
	start, end := f.Page.Window(len(all))
	return all[start:end], len(all), nil
}

func (m *mockRepo) ListAll(_ context.Context, f ListFilter, limit int) ([]*ServiceRequest, error) {
	all := m.filter(f)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockRepo) CountByStatus(_ context.Context, f ListFilter) (map[string]int, error) {
	out := make(map[string]int)
	for _, r := range m.filter(f) {
		out[r.Status]++
	}
	return out, nil
}

func (m *mockRepo) AddHistory(_ context.Context, h *History) error {
	h.ID = uuid.New()
	h.ChangedAt = time.Now()
	m.history = append(m.history, h)
	return nil
}

func (m *mockRepo) ListHistory(_ context.Context, requestID uuid.UUID) ([]*History, error) {
	var out []*History
	for _, h := range m.history {
		if h.ServiceRequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockRepo) UpsertResult(_ context.Context, r *Result) error {
	if old, ok := m.results[r.ServiceRequestID]; ok {
		r.ID, r.CreatedAt = old.ID, old.CreatedAt
	} else {
		r.ID, r.CreatedAt = uuid.New(), time.Now()
	}
	r.UpdatedAt = time.Now()
	cp := *r
	m.results[r.ServiceRequestID] = &cp
	return nil
}

func (m *mockRepo) GetResult(_ context.Context, requestID uuid.UUID) (*Result, error) {
	r, ok := m.results[requestID]
	if !ok {
		return nil, apperr.NotFound("result not found")
	}
	return r, nil
}

func (m *mockRepo) AddPayment(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *mockRepo) GetPayment(_ context.Context, id uuid.UUID) (*Payment, error) {
	for _, p := range m.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperr.NotFound("payment not found")
}

func (m *mockRepo) ListPayments(_ context.Context, requestID uuid.UUID) ([]*Payment, error) {
	var out []*Payment
	for _, p := range m.payments {
		if p.ServiceRequestID == requestID {
			out = append(out, p)
		}
	}
	return out, nil
}

type sent struct {
	userID     uuid.UUID
	kind       string
	templateID string
	data       map[string]string
}

type mockNotifier struct {
	sent []sent
	fail error
}

func (m *mockNotifier) Notify(_ context.Context, userID uuid.UUID, kind, templateID string, data map[string]string, _ *uuid.UUID) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sent{userID, kind, templateID, data})
	return nil
}

// -- Fixtures --

type testEnv struct {
	svc      *Service
	repo     *mockRepo
	refs     *mockRefs
	notifier *mockNotifier
	sms      *notification.MockSender
}

func newTestEnv() *testEnv {
	refs := newMockRefs()
	repo := newMockRepo(refs)
	notifier := &mockNotifier{}
	sms := &notification.MockSender{}
	svc := NewService(Deps{
		Repo:      repo,
		Patients:  refs,
		Providers: refs,
		Clinics:   refs,
		Catalog:   refs,
		Notifier:  notifier,
		Deliverer: notification.NewDispatcher(sms, sms, nil, zerolog.Nop()),
		Tx:        db.NopTransactor{},
		Logger:    zerolog.Nop(),
	})
	return &testEnv{svc: svc, repo: repo, refs: refs, notifier: notifier, sms: sms}
}

func (e *testEnv) addPatient(first, phone string) *identity.Patient {
	p := &identity.Patient{
		ID:     uuid.New(),
		UserID: uuid.New(),
		User:   &identity.User{FirstName: first, LastName: "Test", Phone: phone, Role: auth.RolePatient, IsActive: true},
	}
	p.User.ID = p.UserID
	e.refs.patients[p.ID] = p
	return p
}

func (e *testEnv) addService(name string, price int64) *catalog.MedicalService {
	s := &catalog.MedicalService{ID: uuid.New(), Name: name, BasePrice: price, IsActive: true}
	e.refs.services[s.ID] = s
	return s
}

func (e *testEnv) addInsurance(name string, percent float64) *catalog.Insurance {
	i := &catalog.Insurance{ID: uuid.New(), Name: name, CoveragePercent: percent, IsActive: true}
	e.refs.insurances[i.ID] = i
	return i
}

func (e *testEnv) addClinic(name string) *clinic.Clinic {
	c := &clinic.Clinic{ID: uuid.New(), Name: name, IsActive: true}
	e.refs.clinics[c.ID] = c
	return c
}

func staffCtx() context.Context {
	return auth.WithIdentity(context.Background(), uuid.NewString(), auth.RoleProvider)
}

func patientCtx(p *identity.Patient) context.Context {
	return auth.WithIdentity(context.Background(), p.UserID.String(), auth.RolePatient)
}

func (e *testEnv) create(t *testing.T, p *identity.Patient) *ServiceRequest {
	t.Helper()
	r := &ServiceRequest{PatientID: p.ID}
	if err := e.svc.Create(staffCtx(), r); err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

// -- Tests --

func TestStatuses_MatchLookup(t *testing.T) {
	if !slices.Equal(Statuses, lookup.Codes(lookup.CategoryServiceRequestStatus)) {
		t.Errorf("statuses %v differ from lookup %v", Statuses, lookup.Codes(lookup.CategoryServiceRequestStatus))
	}
	if !slices.Equal(PaymentMethods, lookup.Codes(lookup.CategoryPaymentMethod)) {
		t.Errorf("payment methods %v differ from lookup", PaymentMethods)
	}
	if !slices.Equal(PaymentStatuses, lookup.Codes(lookup.CategoryPaymentStatus)) {
		t.Errorf("payment statuses %v differ from lookup", PaymentStatuses)
	}
}

func TestNewQuote(t *testing.T) {
	tests := []struct {
		total, bp                int64
		wantCovered, wantPayable int64
	}{
		{1000000, 7000, 700000, 300000},
		{1000000, 0, 0, 1000000},
		{1000000, 10000, 1000000, 0},
		{1001, 5000, 501, 500},
		{999, 3333, 333, 666},
		{500, -10, 0, 500},
		{500, 12000, 500, 0},
	}
	for _, tt := range tests {
		q := NewQuote(tt.total, tt.bp)
		if q.Covered != tt.wantCovered || q.Payable != tt.wantPayable || q.Total != tt.total {
			t.Errorf("NewQuote(%d, %d) = %+v, want covered %d payable %d", tt.total, tt.bp, q, tt.wantCovered, tt.wantPayable)
		}
	}
}

func TestCreate_PricesWithInsurance(t *testing.T) {
	e := newTestEnv()
	p := e.addPatient("Sara", "+989121234567")
	svc := e.addService("MRI", 1000000)
	ins := e.addInsurance("Basic", 70)

	r := &ServiceRequest{PatientID: p.ID, ServiceID: &svc.ID, InsuranceID: &ins.ID}
	if err := e.svc.Create(staffCtx(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("expected pending, got %q", r.Status)
	}
	if r.TotalPrice == nil || *r.TotalPrice != 1000000 {
		t.Errorf("expected total 1000000, got %v", r.TotalPrice)
	}
	if r.InsuranceCovered == nil || *r.InsuranceCovered != 700000 {
		t.Errorf("expected covered 700000, got %v", r.InsuranceCovered)
	}
	if r.PatientPayable == nil || *r.PatientPayable != 300000 {
		t.Errorf("expected payable 300000, got %v", r.PatientPayable)
	}
	if r.CreatedBy == nil {
		t.Error("expected created_by to be set")
	}
	if r.PatientName != "Sara Test" {
		t.Errorf("expected joined patient name, got %q", r.PatientName)
	}

	if len(e.notifier.sent) != 1 || e.notifier.sent[0].templateID != notification.TemplateServiceRequestCreate ||
		e.notifier.sent[0].userID != p.UserID || e.notifier.sent[0].kind != inbox.TypeServiceRequest {
		t.Errorf("unexpected notifications: %+v", e.notifier.sent)
	}
	msgs := e.sms.Messages()
	if len(msgs) != 1 || msgs[0].To != "+989121234567" {
		t.Errorf("expected one sms to the patient, got %+v", msgs)
	}
}

func TestCreate_ClinicPriceOverride(t *testing.T) {
	e := newTestEnv()
	p := e.addPatient("Ali", "+989120000000")
	svc := e.addService("CT", 500000)
	cl := e.addClinic("Central")
	e.refs.offered[[2]uuid.UUID{cl.ID, svc.ID}] = 450000

	r := &ServiceRequest{PatientID: p.ID, ServiceID: &svc.ID, ClinicID: &cl.ID}
	if err := e.svc.Create(staffCtx(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r.TotalPrice != 450000 || *r.InsuranceCovered != 0 || *r.PatientPayable != 450000 {
		t.Errorf("unexpected quote %d/%d/%d", *r.TotalPrice, *r.InsuranceCovered, *r.PatientPayable)
	}

	other := e.addClinic("North")
	r2 := &ServiceRequest{PatientID: p.ID, ServiceID: &svc.ID, ClinicID: &other.ID}
	if err := e.svc.Create(staffCtx(), r2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r2.TotalPrice != 500000 {
		t.Errorf("expected base price when clinic does not offer the service, got %d", *r2.TotalPrice)
	}
}

func TestCreate_WithoutServiceHasNoPrice(t *testing.T) {
	e := newTestEnv()
	r := e.create(t, e.addPatient("Ali", "+989120000000"))
	if r.TotalPrice != nil || r.PatientPayable != nil {
		t.Errorf("expected no price, got %v %v", r.TotalPrice, r.PatientPayable)
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newTestEnv()
	p := e.addPatient("Ali", "+989120000000")
	inactive := e.addPatient("Old", "+989120000001")
	inactive.User.IsActive = false
	missing := uuid.New()

	tests := []struct {
		name string
		req  *ServiceRequest
		kind error
	}{
		{"no patient", &ServiceRequest{}, apperr.ErrValidation},
		{"unknown patient", &ServiceRequest{PatientID: uuid.New()}, apperr.ErrNotFound},
		{"inactive patient", &ServiceRequest{PatientID: inactive.ID}, apperr.ErrValidation},
		{"unknown clinic", &ServiceRequest{PatientID: p.ID, ClinicID: &missing}, apperr.ErrNotFound},
		{"unknown service", &ServiceRequest{PatientID: p.ID, ServiceID: &missing}, apperr.ErrNotFound},
		{"unknown insurance", &ServiceRequest{PatientID: p.ID, InsuranceID: &missing}, apperr.ErrNotFound},
		{"unknown provider", &ServiceRequest{PatientID: p.ID, AssignedProviderID: &missing}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.svc.Create(staffCtx(), tt.req)
			if !errors.Is(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
		})
	}
	if len(e.repo.requests) != 0 {
		t.Errorf("expected nothing stored, got %d", len(e.repo.requests))
	}
}

func TestCreate_PatientCaller(t *testing.T) {
	e := newTestEnv()
	me := e.addPatient("Sara", "+989121111111")
	other := e.addPatient("Ali", "+989122222222")

	r := &ServiceRequest{}
	if err := e.svc.Create(patientCtx(me), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.PatientID != me.ID {
		t.Errorf("expected own patient id, got %s", r.PatientID)
	}

	err := e.svc.Create(patientCtx(me), &ServiceRequest{PatientID: other.ID})
	if !apperr.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestCreate_NotificationFailureDoesNotFail(t *testing.T) {
	e := newTestEnv()
	e.notifier.fail = errors.New("inbox down")
	e.sms.Fail = true
	r := e.create(t, e.addPatient("Ali", "+989120000000"))
	if r.ID == uuid.Nil {
		t.Error("expected request to be stored")
	}
}

func TestGet_OwnOnly(t *testing.T) {
	e := newTestEnv()
	me := e.addPatient("Sara", "+989121111111")
	other := e.addPatient("Ali", "+989122222222")
	mine := e.create(t, me)
	theirs := e.create(t, other)

	if _, err := e.svc.Get(patientCtx(me), mine.ID); err != nil {
		t.Errorf("expected own request readable, got %v", err)
	}
	if _, err := e.svc.Get(patientCtx(me), theirs.ID); !apperr.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := e.svc.History(patientCtx(me), theirs.ID); !apperr.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden history, got %v", err)
	}
	if _, err := e.svc.Get(staffCtx(), theirs.ID); err != nil {
		t.Errorf("expected staff access, got %v", err)
	}

	noProfile := auth.WithIdentity(context.Background(), uuid.NewString(), auth.RolePatient)
	if _, err := e.svc.Get(noProfile, mine.ID); !apperr.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden without profile, got %v", err)
	}
}

func TestChangeStatus_RecordsHistory(t *testing.T) {
	e := newTestEnv()
	p := e.addPatient("Sara", "+989121111111")
	r := e.create(t, p)
	e.notifier.sent = nil

	note := "  looks fine "
	got, err := e.svc.ChangeStatus(staffCtx(), r.ID, StatusApproved, &note)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected approved, got %q", got.Status)
	}
	// Any transition is accepted, including back to pending.
	if _, err := e.svc.ChangeStatus(staffCtx(), r.ID, StatusPending, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hist, _ := e.svc.History(staffCtx(), r.ID)
	if len(hist) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(hist))
	}
	if hist[0].FromStatus != StatusPending || hist[0].ToStatus != StatusApproved {
		t.Errorf("unexpected first history row %+v", hist[0])
	}
	if hist[0].Note == nil || *hist[0].Note != "looks fine" {
		t.Errorf("expected trimmed note, got %v", hist[0].Note)
	}
	if hist[0].ChangedBy == nil {
		t.Error("expected changed_by")
	}
	if hist[1].FromStatus != StatusApproved || hist[1].ToStatus != StatusPending {
		t.Errorf("unexpected second history row %+v", hist[1])
	}

	if len(e.notifier.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(e.notifier.sent))
	}
	n := e.notifier.sent[0]
	if n.templateID != notification.TemplateServiceRequestStatus || n.data["status"] != StatusApproved || n.userID != p.UserID {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestChangeStatus_Invalid(t *testing.T) {
	e := newTestEnv()
	r := e.create(t, e.addPatient("Sara", "+989121111111"))

	if _, err := e.svc.ChangeStatus(staffCtx(), r.ID, "archived", nil); !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := e.svc.ChangeStatus(staffCtx(), uuid.New(), StatusDone, nil); !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(e.repo.history) != 0 {
		t.Errorf("expected no history, got %d", len(e.repo.history))
	}
}

func TestChangeStatus_NotifyFailureFails(t *testing.T) {
	e := newTestEnv()
	r := e.create(t, e.addPatient("Sara", "+989121111111"))
	e.notifier.fail = errors.New("inbox down")
	if _, err := e.svc.ChangeStatus(staffCtx(), r.ID, StatusDone, nil); err == nil {
		t.Error("expected error when the notification cannot be recorded")
	}
}

func TestAssign(t *testing.T) {
	e := newTestEnv()
	r := e.create(t, e.addPatient("Sara", "+989121111111"))
	prov := &identity.Provider{ID: uuid.New(), UserID: uuid.New()}
	e.refs.providers[prov.ID] = prov

	got, err := e.svc.Assign(staffCtx(), r.ID, &prov.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AssignedProviderID == nil || *got.AssignedProviderID != prov.ID {
		t.Errorf("expected provider assigned, got %v", got.AssignedProviderID)
	}
	missing := uuid.New()
	if _, err := e.svc.Assign(staffCtx(), r.ID, &missing); !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	got, err = e.svc.Assign(staffCtx(), r.ID, nil)
	if err != nil || got.AssignedProviderID != nil {
		t.Errorf("expected provider cleared, got %v %v", got, err)
	}
}

func TestList_PatientSeesOwn(t *testing.T) {
	e := newTestEnv()
	me := e.addPatient("Sara", "+989121111111")
	other := e.addPatient("Ali", "+989122222222")
	e.create(t, me)
	e.create(t, other)
	e.create(t, other)

	f := ListFilter{PatientID: &other.ID, Page: pagination.Params{Limit: 20}}
	items, total, err := e.svc.List(patientCtx(me), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].PatientID != me.ID {
		t.Errorf("expected only own request, got %d", total)
	}

	_, total, _ = e.svc.List(staffCtx(), ListFilter{Page: pagination.Params{Limit: 20}})
	if total != 3 {
		t.Errorf("expected staff to see 3, got %d", total)
	}
}

func TestList_Views(t *testing.T) {
	e := newTestEnv()
	now := time.Date(2026, 5, 10, 15, 4, 0, 0, time.UTC)
	e.svc.now = func() time.Time { return now }

	if _, _, err := e.svc.List(staffCtx(), ListFilter{View: ViewToday}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := e.repo.lastFilter
	if f.DateField != DateFieldPreferred || f.Page.Sort != DateFieldPreferred || f.Page.Desc {
		t.Errorf("unexpected today filter %+v", f)
	}
	if !f.DateFrom.Equal(time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)) || !f.DateTo.Equal(time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected today range %v - %v", f.DateFrom, f.DateTo)
	}

	if _, _, err := e.svc.List(staffCtx(), ListFilter{View: ViewRecent}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f := e.repo.lastFilter; f.Page.Sort != DateFieldCreated || !f.Page.Desc || f.DateField != DateFieldCreated {
		t.Errorf("unexpected recent filter %+v", f)
	}
}

func TestList_InvalidFilters(t *testing.T) {
	e := newTestEnv()
	from := time.Now()
	to := from.Add(-time.Hour)
	for name, f := range map[string]ListFilter{
		"status":     {Status: "archived"},
		"date field": {DateField: "updated_at"},
		"view":       {View: "tomorrow"},
		"range":      {DateFrom: &from, DateTo: &to},
	} {
		if _, _, err := e.svc.List(staffCtx(), f); !apperr.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestStats_ZeroFilled(t *testing.T) {
	e := newTestEnv()
	p := e.addPatient("Sara", "+989121111111")
	e.create(t, p)
	r := e.create(t, p)
	if _, err := e.svc.ChangeStatus(staffCtx(), r.ID, StatusDone, nil); err != nil {
		t.Fatal(err)
	}

	st, err := e.svc.Stats(staffCtx(), ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Total != 2 || st.ByStatus[StatusPending] != 1 || st.ByStatus[StatusDone] != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(st.ByStatus) != len(Statuses) {
		t.Errorf("expected every status present, got %v", st.ByStatus)
	}
}

func TestExport(t *testing.T) {
	e := newTestEnv()
	svc := e.addService("MRI", 1000000)
	r := &ServiceRequest{PatientID: e.addPatient("Sara", "+989121111111").ID, ServiceID: &svc.ID}
	if err := e.svc.Create(staffCtx(), r); err != nil {
		t.Fatal(err)
	}
	data, err := e.svc.Export(staffCtx(), ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("expected an xlsx (zip) payload")
	}
}

func TestSubmitResult(t *testing.T) {
	e := newTestEnv()
	p := e.addPatient("Sara", "+989121111111")
	r := e.create(t, p)
	e.notifier.sent = nil

	for name, res := range map[string]*Result{
		"empty text": {ServiceRequestID: r.ID, ResultText: "  "},
		"bad url":    {ServiceRequestID: r.ID, ResultText: "ok", AttachmentURL: strPtr("ftp://files/x.pdf")},
		"relative":   {ServiceRequestID: r.ID, ResultText: "ok", AttachmentURL: strPtr("/x.pdf")},
	} {
		if err := e.svc.SubmitResult(staffCtx(), res); !apperr.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}

	res := &Result{ServiceRequestID: r.ID, ResultText: "Normal", AttachmentURL: strPtr("https://files.example.com/r.pdf")}
	if err := e.svc.SubmitResult(staffCtx(), res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again := &Result{ServiceRequestID: r.ID, ResultText: "Revised"}
	if err := e.svc.SubmitResult(staffCtx(), again); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != res.ID {
		t.Error("expected the result to be replaced in place")
	}

	got, err := e.svc.GetResult(patientCtx(p), r.ID)
	if err != nil || got.ResultText != "Revised" {
		t.Errorf("unexpected result %+v %v", got, err)
	}
	if len(e.notifier.sent) != 2 || e.notifier.sent[0].kind != inbox.TypeResult {
		t.Errorf("unexpected notifications %+v", e.notifier.sent)
	}

	if err := e.svc.SubmitResult(staffCtx(), &Result{ServiceRequestID: uuid.New(), ResultText: "x"}); !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRecordPayment(t *testing.T) {
	e := newTestEnv()
	p := e.addPatient("Sara", "+989121111111")
	r := e.create(t, p)
	e.notifier.sent = nil

	for name, pay := range map[string]*Payment{
		"zero amount": {ServiceRequestID: r.ID, Amount: 0, Method: MethodCash},
		"bad method":  {ServiceRequestID: r.ID, Amount: 100, Method: "barter"},
		"bad status":  {ServiceRequestID: r.ID, Amount: 100, Method: MethodCash, Status: "lost"},
	} {
		if err := e.svc.RecordPayment(staffCtx(), pay); !apperr.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}

	pay := &Payment{ServiceRequestID: r.ID, Amount: 300000, Method: MethodCard}
	if err := e.svc.RecordPayment(staffCtx(), pay); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pay.Status != PaymentPaid || pay.PaidAt.IsZero() || pay.RecordedBy == nil {
		t.Errorf("expected defaults applied, got %+v", pay)
	}
	if len(e.notifier.sent) != 1 || e.notifier.sent[0].data["amount"] != "300,000" || e.notifier.sent[0].data["method"] != MethodCard {
		t.Errorf("unexpected notifications %+v", e.notifier.sent)
	}

	items, err := e.svc.ListPayments(patientCtx(p), r.ID)
	if err != nil || len(items) != 1 {
		t.Errorf("expected one payment, got %d %v", len(items), err)
	}

	pdf, got, err := e.svc.Receipt(patientCtx(p), pay.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != pay.ID || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("expected a PDF receipt for the payment")
	}

	stranger := e.addPatient("Ali", "+989122222222")
	if _, _, err := e.svc.Receipt(patientCtx(stranger), pay.ID); !apperr.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden receipt, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
