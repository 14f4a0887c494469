package clinic

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/internal/domain/catalog"
	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/db"
)

// -- Mocks --

type link struct{ clinic, other uuid.UUID }

type mockClinicRepo struct {
	clinics    map[uuid.UUID]*Clinic
	hours      map[uuid.UUID][]*WorkHour
	addresses  map[uuid.UUID][]*Address
	services   map[link]*int64
	insurances map[link]bool
	cat        *mockCatalog
	failAdd    error
}

func newMockClinicRepo(cat *mockCatalog) *mockClinicRepo {
	return &mockClinicRepo{
		clinics:    make(map[uuid.UUID]*Clinic),
		hours:      make(map[uuid.UUID][]*WorkHour),
		addresses:  make(map[uuid.UUID][]*Address),
		services:   make(map[link]*int64),
		insurances: make(map[link]bool),
		cat:        cat,
	}
}

func (m *mockClinicRepo) Create(_ context.Context, c *Clinic) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.clinics[c.ID] = &cp
	return nil
}

func (m *mockClinicRepo) GetByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	c, ok := m.clinics[id]
	if !ok {
		return nil, apperr.NotFound("clinic not found")
	}
	cp := *c
	return &cp, nil
}

func (m *mockClinicRepo) Update(_ context.Context, c *Clinic) error {
	if _, ok := m.clinics[c.ID]; !ok {
		return apperr.NotFound("clinic not found")
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.clinics[c.ID] = &cp
	return nil
}

func (m *mockClinicRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.clinics[id]; !ok {
		return apperr.NotFound("clinic not found")
	}
	delete(m.clinics, id)
	return nil
}

func (m *mockClinicRepo) List(_ context.Context, f ListFilter) ([]*Clinic, int, error) {
	var out []*Clinic
	for _, c := range m.clinics {
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			continue
		}
		if f.IsActive != nil && c.IsActive != *f.IsActive {
			continue
		}
		if f.ServiceID != nil {
			if _, ok := m.services[link{c.ID, *f.ServiceID}]; !ok {
				continue
			}
		}
		if f.InsuranceID != nil && !m.insurances[link{c.ID, *f.InsuranceID}] {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *mockClinicRepo) DeleteWorkHours(_ context.Context, clinicID uuid.UUID) error {
	delete(m.hours, clinicID)
	return nil
}

func (m *mockClinicRepo) AddWorkHour(_ context.Context, wh *WorkHour) error {
	if m.failAdd != nil {
		return m.failAdd
	}
	wh.ID = uuid.New()
	m.hours[wh.ClinicID] = append(m.hours[wh.ClinicID], wh)
	return nil
}

func (m *mockClinicRepo) ListWorkHours(_ context.Context, clinicID uuid.UUID) ([]*WorkHour, error) {
	return m.hours[clinicID], nil
}

func (m *mockClinicRepo) AddAddress(_ context.Context, a *Address) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.addresses[a.ClinicID] = append(m.addresses[a.ClinicID], a)
	return nil
}

func (m *mockClinicRepo) RemoveAddress(_ context.Context, clinicID, addressID uuid.UUID) error {
	list := m.addresses[clinicID]
	for i, a := range list {
		if a.ID == addressID {
			m.addresses[clinicID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("address not found")
}

func (m *mockClinicRepo) ListAddresses(_ context.Context, clinicID uuid.UUID) ([]*Address, error) {
	return m.addresses[clinicID], nil
}

func (m *mockClinicRepo) UpsertService(_ context.Context, clinicID, serviceID uuid.UUID, price *int64) error {
	m.services[link{clinicID, serviceID}] = price
	return nil
}

func (m *mockClinicRepo) RemoveService(_ context.Context, clinicID, serviceID uuid.UUID) error {
	k := link{clinicID, serviceID}
	if _, ok := m.services[k]; !ok {
		return apperr.NotFound("clinic service not found")
	}
	delete(m.services, k)
	return nil
}

func (m *mockClinicRepo) offered(clinicID, serviceID uuid.UUID, price *int64) *OfferedService {
	svc := m.cat.services[serviceID]
	o := &OfferedService{ClinicID: clinicID, ServiceID: serviceID, ServiceName: svc.Name, BasePrice: svc.BasePrice, Price: price}
	o.EffectivePrice = svc.BasePrice
	if price != nil {
		o.EffectivePrice = *price
	}
	return o
}

func (m *mockClinicRepo) ListServices(_ context.Context, clinicID uuid.UUID) ([]*OfferedService, error) {
	var out []*OfferedService
	for k, price := range m.services {
		if k.clinic == clinicID {
			out = append(out, m.offered(k.clinic, k.other, price))
		}
	}
	return out, nil
}

func (m *mockClinicRepo) GetService(_ context.Context, clinicID, serviceID uuid.UUID) (*OfferedService, error) {
	price, ok := m.services[link{clinicID, serviceID}]
	if !ok {
		return nil, apperr.NotFound("clinic service not found")
	}
	return m.offered(clinicID, serviceID, price), nil
}

func (m *mockClinicRepo) AddInsurance(_ context.Context, clinicID, insuranceID uuid.UUID) error {
	m.insurances[link{clinicID, insuranceID}] = true
	return nil
}

func (m *mockClinicRepo) RemoveInsurance(_ context.Context, clinicID, insuranceID uuid.UUID) error {
	k := link{clinicID, insuranceID}
	if !m.insurances[k] {
		return apperr.NotFound("clinic insurance not found")
	}
	delete(m.insurances, k)
	return nil
}

func (m *mockClinicRepo) ListInsurances(_ context.Context, clinicID uuid.UUID) ([]*AcceptedInsurer, error) {
	var out []*AcceptedInsurer
	for k := range m.insurances {
		if k.clinic == clinicID {
			ins := m.cat.insurances[k.other]
			out = append(out, &AcceptedInsurer{ClinicID: clinicID, InsuranceID: ins.ID, InsuranceName: ins.Name, CoveragePercent: ins.CoveragePercent})
		}
	}
	return out, nil
}

type mockCatalog struct {
	services   map[uuid.UUID]*catalog.MedicalService
	insurances map[uuid.UUID]*catalog.Insurance
}

func (m *mockCatalog) GetService(_ context.Context, id uuid.UUID) (*catalog.MedicalService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, apperr.NotFound("service not found")
	}
	return s, nil
}

func (m *mockCatalog) GetInsurance(_ context.Context, id uuid.UUID) (*catalog.Insurance, error) {
	i, ok := m.insurances[id]
	if !ok {
		return nil, apperr.NotFound("insurance not found")
	}
	return i, nil
}

func (m *mockCatalog) addService(name string, price int64) uuid.UUID {
	s := &catalog.MedicalService{ID: uuid.New(), Name: name, BasePrice: price, IsActive: true}
	m.services[s.ID] = s
	return s.ID
}

func (m *mockCatalog) addInsurance(name string, pct float64) uuid.UUID {
	i := &catalog.Insurance{ID: uuid.New(), Name: name, CoveragePercent: pct, IsActive: true}
	m.insurances[i.ID] = i
	return i.ID
}

func newTestService() (*Service, *mockClinicRepo, *mockCatalog) {
	cat := &mockCatalog{
		services:   make(map[uuid.UUID]*catalog.MedicalService),
		insurances: make(map[uuid.UUID]*catalog.Insurance),
	}
	repo := newMockClinicRepo(cat)
	return NewService(repo, cat, db.NopTransactor{}), repo, cat
}

func createClinic(t *testing.T, svc *Service, name string) *Clinic {
	t.Helper()
	c := &Clinic{Name: name}
	if err := svc.CreateClinic(context.Background(), c); err != nil {
		t.Fatalf("create clinic: %v", err)
	}
	return c
}

// -- Clinic Tests --

func TestCreateClinic(t *testing.T) {
	svc, _, _ := newTestService()
	c := createClinic(t, svc, "  Central Clinic ")
	if c.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if c.Name != "Central Clinic" {
		t.Errorf("expected trimmed name, got %q", c.Name)
	}
	if !c.IsActive {
		t.Error("new clinics should be active")
	}
}

func TestCreateClinic_NameRequired(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.CreateClinic(context.Background(), &Clinic{Name: "  "})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGetClinicDetail(t *testing.T) {
	svc, _, cat := newTestService()
	ctx := context.Background()
	c := createClinic(t, svc, "Central")
	mri := cat.addService("MRI", 1000000)
	ins := cat.addInsurance("Basic", 70)

	if _, err := svc.AddService(ctx, c.ID, mri, nil); err != nil {
		t.Fatalf("add service: %v", err)
	}
	if err := svc.AddInsurance(ctx, c.ID, ins); err != nil {
		t.Fatalf("add insurance: %v", err)
	}
	if err := svc.AddAddress(ctx, &Address{ClinicID: c.ID, Street: "Main St 1", City: "Tehran"}); err != nil {
		t.Fatalf("add address: %v", err)
	}
	if _, err := svc.ReplaceWorkHours(ctx, c.ID, []*WorkHour{{Weekday: 1, OpenTime: "08:00", CloseTime: "16:00"}}); err != nil {
		t.Fatalf("work hours: %v", err)
	}

	got, err := svc.GetClinicDetail(ctx, c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Services) != 1 || len(got.Insurances) != 1 || len(got.Addresses) != 1 || len(got.WorkHours) != 1 {
		t.Errorf("expected one of each nested item, got %+v", got)
	}
}

func TestListClinics_Filters(t *testing.T) {
	svc, _, cat := newTestService()
	ctx := context.Background()
	a := createClinic(t, svc, "Alborz")
	b := createClinic(t, svc, "Bahar")
	createClinic(t, svc, "Caspian")
	mri := cat.addService("MRI", 1000000)
	ins := cat.addInsurance("Basic", 70)

	if _, err := svc.AddService(ctx, a.ID, mri, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddService(ctx, b.ID, mri, nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddInsurance(ctx, b.ID, ins); err != nil {
		t.Fatal(err)
	}

	items, total, err := svc.ListClinics(ctx, ListFilter{ServiceID: &mri, InsuranceID: &ins})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].ID != b.ID {
		t.Errorf("expected only Bahar, got %d items", total)
	}

	_, total, _ = svc.ListClinics(ctx, ListFilter{Search: "a"})
	if total != 3 {
		t.Errorf("expected 3 clinics matching 'a', got %d", total)
	}
}

// -- Work Hour Tests --

func TestValidateWorkHours(t *testing.T) {
	tests := []struct {
		name    string
		hours   []*WorkHour
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", []*WorkHour{{Weekday: 0, OpenTime: "08:00", CloseTime: "12:00"}, {Weekday: 0, OpenTime: "13:00", CloseTime: "17:00"}}, false},
		{"touching", []*WorkHour{{Weekday: 2, OpenTime: "08:00", CloseTime: "12:00"}, {Weekday: 2, OpenTime: "12:00", CloseTime: "14:00"}}, false},
		{"different days", []*WorkHour{{Weekday: 1, OpenTime: "08:00", CloseTime: "18:00"}, {Weekday: 2, OpenTime: "08:00", CloseTime: "18:00"}}, false},
		{"overlap", []*WorkHour{{Weekday: 3, OpenTime: "13:00", CloseTime: "17:00"}, {Weekday: 3, OpenTime: "08:00", CloseTime: "14:00"}}, true},
		{"close before open", []*WorkHour{{Weekday: 1, OpenTime: "12:00", CloseTime: "08:00"}}, true},
		{"equal times", []*WorkHour{{Weekday: 1, OpenTime: "08:00", CloseTime: "08:00"}}, true},
		{"bad weekday", []*WorkHour{{Weekday: 7, OpenTime: "08:00", CloseTime: "12:00"}}, true},
		{"bad format", []*WorkHour{{Weekday: 1, OpenTime: "8:00", CloseTime: "12:00"}}, true},
		{"out of range", []*WorkHour{{Weekday: 1, OpenTime: "08:00", CloseTime: "25:00"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWorkHours(tt.hours)
			if tt.wantErr && !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestReplaceWorkHours_ReplacesSchedule(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	c := createClinic(t, svc, "Central")

	if _, err := svc.ReplaceWorkHours(ctx, c.ID, []*WorkHour{
		{Weekday: 1, OpenTime: "08:00", CloseTime: "12:00"},
		{Weekday: 2, OpenTime: "08:00", CloseTime: "12:00"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.ReplaceWorkHours(ctx, c.ID, []*WorkHour{{Weekday: 5, OpenTime: "09:00", CloseTime: "13:00"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Weekday != 5 || got[0].ClinicID != c.ID {
		t.Errorf("expected only the new interval, got %+v", got)
	}
	if len(repo.hours[c.ID]) != 1 {
		t.Errorf("expected repository to hold 1 interval, got %d", len(repo.hours[c.ID]))
	}
}

func TestReplaceWorkHours_UnknownClinic(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ReplaceWorkHours(context.Background(), uuid.New(), nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReplaceWorkHours_RepoError(t *testing.T) {
	svc, repo, _ := newTestService()
	c := createClinic(t, svc, "Central")
	repo.failAdd = errors.New("boom")
	_, err := svc.ReplaceWorkHours(context.Background(), c.ID, []*WorkHour{{Weekday: 1, OpenTime: "08:00", CloseTime: "12:00"}})
	if err == nil || err.Error() != "boom" {
		t.Errorf("expected repository error, got %v", err)
	}
}

// -- Address Tests --

func TestAddAddress_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	c := createClinic(t, svc, "Central")
	lat := 95.0
	tests := []struct {
		name string
		in   Address
	}{
		{"no street", Address{ClinicID: c.ID, City: "Tehran"}},
		{"no city", Address{ClinicID: c.ID, Street: "Main"}},
		{"bad latitude", Address{ClinicID: c.ID, Street: "Main", City: "Tehran", Latitude: &lat}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AddAddress(context.Background(), &tt.in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRemoveAddress(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	c := createClinic(t, svc, "Central")
	a := &Address{ClinicID: c.ID, Street: "Main", City: "Tehran"}
	if err := svc.AddAddress(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveAddress(ctx, c.ID, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemoveAddress(ctx, c.ID, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found on second remove, got %v", err)
	}
}

// -- Service Tests --

func TestAddService_PriceOverride(t *testing.T) {
	svc, _, cat := newTestService()
	ctx := context.Background()
	c := createClinic(t, svc, "Central")
	mri := cat.addService("MRI", 1000000)

	o, err := svc.AddService(ctx, c.ID, mri, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.EffectivePrice != 1000000 {
		t.Errorf("expected base price, got %d", o.EffectivePrice)
	}

	override := int64(850000)
	o, err = svc.AddService(ctx, c.ID, mri, &override)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.EffectivePrice != 850000 || o.BasePrice != 1000000 {
		t.Errorf("expected override 850000 over base 1000000, got %+v", o)
	}

	got, ok, err := svc.ServicePrice(ctx, c.ID, mri)
	if err != nil || !ok {
		t.Fatalf("expected offered service, got ok=%v err=%v", ok, err)
	}
	if got.EffectivePrice != 850000 {
		t.Errorf("expected 850000, got %d", got.EffectivePrice)
	}
}

func TestAddService_Errors(t *testing.T) {
	svc, _, cat := newTestService()
	ctx := context.Background()
	c := createClinic(t, svc, "Central")
	mri := cat.addService("MRI", 1000000)
	negative := int64(-1)

	if _, err := svc.AddService(ctx, c.ID, mri, &negative); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for negative price, got %v", err)
	}
	if _, err := svc.AddService(ctx, c.ID, uuid.New(), nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown service, got %v", err)
	}
	if _, err := svc.AddService(ctx, uuid.New(), mri, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown clinic, got %v", err)
	}
}

func TestServicePrice_NotOffered(t *testing.T) {
	svc, _, cat := newTestService()
	c := createClinic(t, svc, "Central")
	mri := cat.addService("MRI", 1000000)

	o, ok, err := svc.ServicePrice(context.Background(), c.ID, mri)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || o != nil {
		t.Error("expected service not to be offered")
	}
}

// -- Insurance Tests --

func TestAddInsurance(t *testing.T) {
	svc, _, cat := newTestService()
	ctx := context.Background()
	c := createClinic(t, svc, "Central")
	ins := cat.addInsurance("Basic", 70)

	if err := svc.AddInsurance(ctx, c.ID, ins); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, err := svc.ListInsurances(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].CoveragePercent != 70 {
		t.Errorf("unexpected insurances %+v", list)
	}
	if err := svc.AddInsurance(ctx, c.ID, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown insurance, got %v", err)
	}
	if err := svc.RemoveInsurance(ctx, c.ID, ins); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
