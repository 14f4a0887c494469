package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/internal/platform/apperr"
)

const (
	maxNameLength = 100
	// maxServiceDepth bounds the parent walk so that a cycle already present
	// in stored data cannot loop forever.
	maxServiceDepth = 64
)

type Service struct {
	specialties SpecialtyRepository
	categories  CategoryRepository
	services    ServiceRepository
	insurances  InsuranceRepository
}

func NewService(specialties SpecialtyRepository, categories CategoryRepository, services ServiceRepository, insurances InsuranceRepository) *Service {
	return &Service{
		specialties: specialties,
		categories:  categories,
		services:    services,
		insurances:  insurances,
	}
}

func validateName(name string, max int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("name is required")
	}
	if len([]rune(name)) > max {
		return "", apperr.Validation("name must be at most %d characters", max)
	}
	return name, nil
}

// -- Specialty --

func (s *Service) CreateSpecialty(ctx context.Context, sp *Specialty) error {
	name, err := validateName(sp.Name, maxNameLength)
	if err != nil {
		return err
	}
	sp.Name = name
	return s.specialties.Create(ctx, sp)
}

func (s *Service) GetSpecialty(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	return s.specialties.GetByID(ctx, id)
}

func (s *Service) UpdateSpecialty(ctx context.Context, sp *Specialty) error {
	name, err := validateName(sp.Name, maxNameLength)
	if err != nil {
		return err
	}
	sp.Name = name
	return s.specialties.Update(ctx, sp)
}

func (s *Service) DeleteSpecialty(ctx context.Context, id uuid.UUID) error {
	return s.specialties.Delete(ctx, id)
}

func (s *Service) ListSpecialties(ctx context.Context, f ListFilter) ([]*Specialty, int, error) {
	return s.specialties.List(ctx, f)
}

// -- Service Category --

func (s *Service) CreateCategory(ctx context.Context, c *ServiceCategory) error {
	name, err := validateName(c.Name, maxNameLength)
	if err != nil {
		return err
	}
	c.Name = name
	return s.categories.Create(ctx, c)
}

func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (*ServiceCategory, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *Service) UpdateCategory(ctx context.Context, c *ServiceCategory) error {
	name, err := validateName(c.Name, maxNameLength)
	if err != nil {
		return err
	}
	c.Name = name
	return s.categories.Update(ctx, c)
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.Delete(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context, f ListFilter) ([]*ServiceCategory, int, error) {
	return s.categories.List(ctx, f)
}

// -- Service --

func (s *Service) validateService(ctx context.Context, svc *MedicalService) error {
	name, err := validateName(svc.Name, 200)
	if err != nil {
		return err
	}
	svc.Name = name
	if svc.BasePrice < 0 {
		return apperr.Validation("base_price must not be negative")
	}
	if svc.DurationMinutes != nil && *svc.DurationMinutes <= 0 {
		return apperr.Validation("duration_minutes must be positive")
	}
	if svc.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *svc.CategoryID); err != nil {
			return err
		}
	}
	if svc.ParentServiceID != nil {
		return s.checkParent(ctx, svc.ID, *svc.ParentServiceID)
	}
	return nil
}

// checkParent rejects a parent that does not exist or whose ancestry already
// contains id.
func (s *Service) checkParent(ctx context.Context, id, parentID uuid.UUID) error {
	if id != uuid.Nil && parentID == id {
		return apperr.Validation("a service cannot be its own parent")
	}
	current := &parentID
	for depth := 0; current != nil; depth++ {
		if depth >= maxServiceDepth {
			return apperr.Validation("service hierarchy is too deep")
		}
		next, err := s.services.ParentOf(ctx, *current)
		if err != nil {
			if depth == 0 && errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFound("parent service not found")
			}
			return err
		}
		if id != uuid.Nil && next != nil && *next == id {
			return apperr.Validation("parent_service_id would create a cycle")
		}
		current = next
	}
	return nil
}

func (s *Service) CreateService(ctx context.Context, svc *MedicalService) error {
	svc.ID = uuid.Nil
	if err := s.validateService(ctx, svc); err != nil {
		return err
	}
	svc.IsActive = true
	return s.services.Create(ctx, svc)
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	return s.services.GetByID(ctx, id)
}

func (s *Service) UpdateService(ctx context.Context, svc *MedicalService) error {
	if err := s.validateService(ctx, svc); err != nil {
		return err
	}
	return s.services.Update(ctx, svc)
}

func (s *Service) DeleteService(ctx context.Context, id uuid.UUID) error {
	return s.services.Delete(ctx, id)
}

func (s *Service) ListServices(ctx context.Context, f ListFilter) ([]*MedicalService, int, error) {
	return s.services.List(ctx, f)
}

// ListChildren returns the direct children of a service.
func (s *Service) ListChildren(ctx context.Context, id uuid.UUID, f ListFilter) ([]*MedicalService, int, error) {
	if _, err := s.services.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	f.ParentID = &id
	return s.services.List(ctx, f)
}

// -- Insurance --

func validateInsurance(i *Insurance) error {
	name, err := validateName(i.Name, 200)
	if err != nil {
		return err
	}
	i.Name = name
	if i.CoveragePercent < 0 || i.CoveragePercent > 100 {
		return apperr.Validation("coverage_percent must be between 0 and 100")
	}
	// Stored as NUMERIC(5,2).
	i.CoveragePercent = float64(i.CoverageBasisPoints()) / 100
	return nil
}

func (s *Service) CreateInsurance(ctx context.Context, i *Insurance) error {
	if err := validateInsurance(i); err != nil {
		return err
	}
	i.IsActive = true
	return s.insurances.Create(ctx, i)
}

func (s *Service) GetInsurance(ctx context.Context, id uuid.UUID) (*Insurance, error) {
	return s.insurances.GetByID(ctx, id)
}

func (s *Service) UpdateInsurance(ctx context.Context, i *Insurance) error {
	if err := validateInsurance(i); err != nil {
		return err
	}
	return s.insurances.Update(ctx, i)
}

func (s *Service) DeleteInsurance(ctx context.Context, id uuid.UUID) error {
	return s.insurances.Delete(ctx, id)
}

func (s *Service) ListInsurances(ctx context.Context, f ListFilter) ([]*Insurance, int, error) {
	return s.insurances.List(ctx, f)
}
