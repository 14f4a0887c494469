package clinic

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/internal/domain/catalog"
	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/db"
)

// CatalogReader resolves the services and insurances a clinic links to.
type CatalogReader interface {
	GetService(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
	GetInsurance(ctx context.Context, id uuid.UUID) (*catalog.Insurance, error)
}

type Service struct {
	clinics ClinicRepository
	catalog CatalogReader
	tx      db.Transactor
}

func NewService(clinics ClinicRepository, catalog CatalogReader, tx db.Transactor) *Service {
	return &Service{clinics: clinics, catalog: catalog, tx: tx}
}

func validateClinic(c *Clinic) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return apperr.Validation("name is required")
	}
	if len([]rune(c.Name)) > 200 {
		return apperr.Validation("name must be at most 200 characters")
	}
	return nil
}

func (s *Service) CreateClinic(ctx context.Context, c *Clinic) error {
	if err := validateClinic(c); err != nil {
		return err
	}
	c.IsActive = true
	return s.clinics.Create(ctx, c)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.clinics.GetByID(ctx, id)
}

// GetClinicDetail returns the clinic with its addresses, work hours, services
// and insurances.
func (s *Service) GetClinicDetail(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	c, err := s.clinics.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Addresses, err = s.clinics.ListAddresses(ctx, id); err != nil {
		return nil, err
	}
	if c.WorkHours, err = s.clinics.ListWorkHours(ctx, id); err != nil {
		return nil, err
	}
	if c.Services, err = s.clinics.ListServices(ctx, id); err != nil {
		return nil, err
	}
	if c.Insurances, err = s.clinics.ListInsurances(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateClinic(ctx context.Context, c *Clinic) error {
	if err := validateClinic(c); err != nil {
		return err
	}
	return s.clinics.Update(ctx, c)
}

func (s *Service) DeleteClinic(ctx context.Context, id uuid.UUID) error {
	return s.clinics.Delete(ctx, id)
}

func (s *Service) ListClinics(ctx context.Context, f ListFilter) ([]*Clinic, int, error) {
	return s.clinics.List(ctx, f)
}

// -- Work hours --

func parseClock(v string) (time.Time, error) {
	t, err := time.Parse("15:04", v)
	if err != nil || len(v) != 5 {
		return time.Time{}, apperr.Validation("invalid time %q, expected HH:MM", v)
	}
	return t, nil
}

// validateWorkHours checks each interval and rejects overlapping intervals on
// the same weekday.
func validateWorkHours(hours []*WorkHour) error {
	for _, wh := range hours {
		if wh.Weekday < 0 || wh.Weekday > 6 {
			return apperr.Validation("weekday must be between 0 and 6")
		}
		open, err := parseClock(wh.OpenTime)
		if err != nil {
			return err
		}
		closing, err := parseClock(wh.CloseTime)
		if err != nil {
			return err
		}
		if !open.Before(closing) {
			return apperr.Validation("open_time must be before close_time on weekday %d", wh.Weekday)
		}
	}

	sorted := make([]*WorkHour, len(hours))
	copy(sorted, hours)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weekday != sorted[j].Weekday {
			return sorted[i].Weekday < sorted[j].Weekday
		}
		return sorted[i].OpenTime < sorted[j].OpenTime
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Weekday == cur.Weekday && cur.OpenTime < prev.CloseTime {
			return apperr.Validation("work hours overlap on weekday %d", cur.Weekday)
		}
	}
	return nil
}

// ReplaceWorkHours swaps the whole weekly schedule of a clinic in one
// transaction.
func (s *Service) ReplaceWorkHours(ctx context.Context, clinicID uuid.UUID, hours []*WorkHour) ([]*WorkHour, error) {
	if err := validateWorkHours(hours); err != nil {
		return nil, err
	}
	if _, err := s.clinics.GetByID(ctx, clinicID); err != nil {
		return nil, err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.clinics.DeleteWorkHours(ctx, clinicID); err != nil {
			return err
		}
		for _, wh := range hours {
			wh.ClinicID = clinicID
			if err := s.clinics.AddWorkHour(ctx, wh); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.clinics.ListWorkHours(ctx, clinicID)
}

func (s *Service) ListWorkHours(ctx context.Context, clinicID uuid.UUID) ([]*WorkHour, error) {
	if _, err := s.clinics.GetByID(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.clinics.ListWorkHours(ctx, clinicID)
}

// -- Addresses --

func (s *Service) AddAddress(ctx context.Context, a *Address) error {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	if a.Street == "" {
		return apperr.Validation("street is required")
	}
	if a.City == "" {
		return apperr.Validation("city is required")
	}
	if a.Latitude != nil && (*a.Latitude < -90 || *a.Latitude > 90) {
		return apperr.Validation("latitude must be between -90 and 90")
	}
	if a.Longitude != nil && (*a.Longitude < -180 || *a.Longitude > 180) {
		return apperr.Validation("longitude must be between -180 and 180")
	}
	if _, err := s.clinics.GetByID(ctx, a.ClinicID); err != nil {
		return err
	}
	return s.clinics.AddAddress(ctx, a)
}

func (s *Service) RemoveAddress(ctx context.Context, clinicID, addressID uuid.UUID) error {
	return s.clinics.RemoveAddress(ctx, clinicID, addressID)
}

func (s *Service) ListAddresses(ctx context.Context, clinicID uuid.UUID) ([]*Address, error) {
	if _, err := s.clinics.GetByID(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.clinics.ListAddresses(ctx, clinicID)
}

// -- Services --

// AddService links a service to the clinic, replacing the price override if
// the link already exists.
func (s *Service) AddService(ctx context.Context, clinicID, serviceID uuid.UUID, price *int64) (*OfferedService, error) {
	if price != nil && *price < 0 {
		return nil, apperr.Validation("price must not be negative")
	}
	if _, err := s.clinics.GetByID(ctx, clinicID); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	if err := s.clinics.UpsertService(ctx, clinicID, serviceID, price); err != nil {
		return nil, err
	}
	return s.clinics.GetService(ctx, clinicID, serviceID)
}

func (s *Service) RemoveService(ctx context.Context, clinicID, serviceID uuid.UUID) error {
	return s.clinics.RemoveService(ctx, clinicID, serviceID)
}

func (s *Service) ListServices(ctx context.Context, clinicID uuid.UUID) ([]*OfferedService, error) {
	if _, err := s.clinics.GetByID(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.clinics.ListServices(ctx, clinicID)
}

// ServicePrice returns the clinic's link to a service. ok is false when the
// clinic does not offer it.
func (s *Service) ServicePrice(ctx context.Context, clinicID, serviceID uuid.UUID) (o *OfferedService, ok bool, err error) {
	o, err = s.clinics.GetService(ctx, clinicID, serviceID)
	if apperr.Is(err, apperr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// -- Insurances --

func (s *Service) AddInsurance(ctx context.Context, clinicID, insuranceID uuid.UUID) error {
	if _, err := s.clinics.GetByID(ctx, clinicID); err != nil {
		return err
	}
	if _, err := s.catalog.GetInsurance(ctx, insuranceID); err != nil {
		return err
	}
	return s.clinics.AddInsurance(ctx, clinicID, insuranceID)
}

func (s *Service) RemoveInsurance(ctx context.Context, clinicID, insuranceID uuid.UUID) error {
	return s.clinics.RemoveInsurance(ctx, clinicID, insuranceID)
}

func (s *Service) ListInsurances(ctx context.Context, clinicID uuid.UUID) ([]*AcceptedInsurer, error) {
	if _, err := s.clinics.GetByID(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.clinics.ListInsurances(ctx, clinicID)
}
