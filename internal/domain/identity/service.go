package identity

import (
	"context"
	"net/mail"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/internal/domain/catalog"
	"github.com/clinichub/clinichub/internal/domain/clinic"
	"github.com/clinichub/clinichub/internal/domain/lookup"
	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/auth"
	"github.com/clinichub/clinichub/internal/platform/db"
)

// CatalogReader resolves the specialty of a provider and the insurances of a
// patient.
type CatalogReader interface {
	GetSpecialty(ctx context.Context, id uuid.UUID) (*catalog.Specialty, error)
	GetInsurance(ctx context.Context, id uuid.UUID) (*catalog.Insurance, error)
}

type ClinicReader interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error)
}

type Service struct {
	users     UserRepository
	patients  PatientRepository
	providers ProviderRepository
	catalog   CatalogReader
	clinics   ClinicReader
	tx        db.Transactor
}

func NewService(users UserRepository, patients PatientRepository, providers ProviderRepository,
	catalog CatalogReader, clinics ClinicReader, tx db.Transactor) *Service {
	return &Service{users: users, patients: patients, providers: providers, catalog: catalog, clinics: clinics, tx: tx}
}

var (
	phonePattern        = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	nationalCodePattern = regexp.MustCompile(`^[0-9]{5,20}$`)
)

// NormalizePhone strips spaces, dashes and parentheses so one number always
// has one stored form.
func NormalizePhone(v string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(v))
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

func checkCode(category, field string, v *string) error {
	if v != nil && !slices.Contains(lookup.Codes(category), *v) {
		return apperr.Validation("invalid %s %q", field, *v)
	}
	return nil
}

func validateUser(u *User) error {
	u.Phone = NormalizePhone(u.Phone)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Email = trimOptional(u.Email)
	u.NationalCode = trimOptional(u.NationalCode)
	u.Gender = trimOptional(u.Gender)

	if u.Phone == "" {
		return apperr.Validation("phone is required")
	}
	if !phonePattern.MatchString(u.Phone) {
		return apperr.Validation("invalid phone number")
	}
	if u.FirstName == "" || u.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	if len([]rune(u.FirstName)) > 100 || len([]rune(u.LastName)) > 100 {
		return apperr.Validation("names must be at most 100 characters")
	}
	if u.Email != nil {
		if _, err := mail.ParseAddress(*u.Email); err != nil {
			return apperr.Validation("invalid email")
		}
	}
	if u.NationalCode != nil && !nationalCodePattern.MatchString(*u.NationalCode) {
		return apperr.Validation("invalid national_code")
	}
	if !auth.IsValidRole(u.Role) {
		return apperr.Validation("invalid role %q", u.Role)
	}
	return checkCode(lookup.CategoryGender, "gender", u.Gender)
}

func (s *Service) checkUnique(ctx context.Context, u *User) error {
	field, err := s.users.ActiveConflict(ctx, u.Phone, u.NationalCode, u.ID)
	if err != nil {
		return err
	}
	if field != "" {
		return apperr.Conflict("an active user with this %s already exists", field)
	}
	return nil
}

func setPassword(u *User, password string) error {
	if password == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	u.PasswordHash = &hash
	return nil
}

// createUser validates u, checks uniqueness among active users and stores it.
// Callers run it inside a transaction together with the profile insert.
func (s *Service) createUser(ctx context.Context, u *User, password string) error {
	if err := validateUser(u); err != nil {
		return err
	}
	if err := setPassword(u, password); err != nil {
		return err
	}
	if err := s.checkUnique(ctx, u); err != nil {
		return err
	}
	u.IsActive = true
	return s.users.Create(ctx, u)
}

// -- Patient --

func validatePatient(p *Patient) error {
	p.BloodType = trimOptional(p.BloodType)
	p.EmergencyPhone = trimOptional(p.EmergencyPhone)
	if p.EmergencyPhone != nil {
		phone := NormalizePhone(*p.EmergencyPhone)
		if !phonePattern.MatchString(phone) {
			return apperr.Validation("invalid emergency_phone")
		}
		p.EmergencyPhone = &phone
	}
	return checkCode(lookup.CategoryBloodType, "blood_type", p.BloodType)
}

// CreatePatient stores a patient user and profile in one transaction. password
// may be empty for patients who only log in with OTP.
func (s *Service) CreatePatient(ctx context.Context, p *Patient, password string) error {
	if p.User == nil {
		return apperr.Validation("user is required")
	}
	p.User.Role = auth.RolePatient
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.createUser(ctx, p.User, password); err != nil {
			return err
		}
		p.UserID = p.User.ID
		return s.patients.Create(ctx, p)
	})
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) PatientByUser(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return s.patients.GetByUserID(ctx, userID)
}

// ActivePatient returns the patient if it exists and its user is active.
func (s *Service) ActivePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.User.IsActive {
		return nil, apperr.Validation("patient is inactive")
	}
	return p, nil
}

// UpdatePatient saves the user and profile parts of p together.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.User == nil {
		return apperr.Validation("user is required")
	}
	p.User.Role = auth.RolePatient
	if err := validateUser(p.User); err != nil {
		return err
	}
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if p.User.IsActive {
			if err := s.checkUnique(ctx, p.User); err != nil {
				return err
			}
		}
		if err := s.users.Update(ctx, p.User); err != nil {
			return err
		}
		return s.patients.Update(ctx, p)
	})
}

func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.users.SetActive(ctx, p.UserID, false)
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter) ([]*Patient, int, error) {
	return s.patients.List(ctx, f)
}

func (s *Service) AddPatientInsurance(ctx context.Context, pi *PatientInsurance) error {
	pi.PolicyNumber = trimOptional(pi.PolicyNumber)
	if pi.PolicyNumber != nil && len(*pi.PolicyNumber) > 50 {
		return apperr.Validation("policy_number must be at most 50 characters")
	}
	if _, err := s.patients.GetByID(ctx, pi.PatientID); err != nil {
		return err
	}
	ins, err := s.catalog.GetInsurance(ctx, pi.InsuranceID)
	if err != nil {
		return err
	}
	if err := s.patients.AddInsurance(ctx, pi); err != nil {
		return err
	}
	pi.InsuranceName = ins.Name
	pi.CoveragePercent = ins.CoveragePercent
	return nil
}

func (s *Service) ListPatientInsurances(ctx context.Context, patientID uuid.UUID) ([]*PatientInsurance, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.patients.ListInsurances(ctx, patientID)
}

func (s *Service) RemovePatientInsurance(ctx context.Context, patientID, insuranceID uuid.UUID) error {
	return s.patients.RemoveInsurance(ctx, patientID, insuranceID)
}

// -- Provider --

func (s *Service) validateProvider(ctx context.Context, p *Provider) error {
	p.LicenseNumber = trimOptional(p.LicenseNumber)
	p.Degree = trimOptional(p.Degree)
	if p.ExperienceYears != nil && *p.ExperienceYears < 0 {
		return apperr.Validation("experience_years must not be negative")
	}
	if p.SpecialtyID != nil {
		sp, err := s.catalog.GetSpecialty(ctx, *p.SpecialtyID)
		if err != nil {
			return err
		}
		p.SpecialtyName = &sp.Name
	}
	if p.ClinicID != nil {
		c, err := s.clinics.GetClinic(ctx, *p.ClinicID)
		if err != nil {
			return err
		}
		p.ClinicName = &c.Name
	}
	return nil
}

// CreateProvider stores a provider user and profile in one transaction.
func (s *Service) CreateProvider(ctx context.Context, p *Provider, password string) error {
	if p.User == nil {
		return apperr.Validation("user is required")
	}
	p.User.Role = auth.RoleProvider
	if err := s.validateProvider(ctx, p); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.createUser(ctx, p.User, password); err != nil {
			return err
		}
		p.UserID = p.User.ID
		return s.providers.Create(ctx, p)
	})
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) ProviderByUser(ctx context.Context, userID uuid.UUID) (*Provider, error) {
	return s.providers.GetByUserID(ctx, userID)
}

func (s *Service) UpdateProvider(ctx context.Context, p *Provider) error {
	if p.User == nil {
		return apperr.Validation("user is required")
	}
	p.User.Role = auth.RoleProvider
	if err := validateUser(p.User); err != nil {
		return err
	}
	if err := s.validateProvider(ctx, p); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if p.User.IsActive {
			if err := s.checkUnique(ctx, p.User); err != nil {
				return err
			}
		}
		if err := s.users.Update(ctx, p.User); err != nil {
			return err
		}
		return s.providers.Update(ctx, p)
	})
}

func (s *Service) DeactivateProvider(ctx context.Context, id uuid.UUID) error {
	p, err := s.providers.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.users.SetActive(ctx, p.UserID, false)
}

func (s *Service) ListProviders(ctx context.Context, f ProviderFilter) ([]*Provider, int, error) {
	return s.providers.List(ctx, f)
}

// -- User --

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]*User, int, error) {
	if f.Role != "" && !auth.IsValidRole(f.Role) {
		return nil, 0, apperr.Validation("invalid role %q", f.Role)
	}
	return s.users.List(ctx, f)
}

// ActivateUser reactivates a user unless another active user took its phone
// or national code in the meantime.
func (s *Service) ActivateUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsActive {
		return u, nil
	}
	if err := s.checkUnique(ctx, u); err != nil {
		return nil, err
	}
	if err := s.users.SetActive(ctx, id, true); err != nil {
		return nil, err
	}
	u.IsActive = true
	return u, nil
}

func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return u, nil
	}
	if err := s.users.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	u.IsActive = false
	return u, nil
}

// -- Authentication support --

// FindActiveByLogin resolves an email address or phone number to an active
// user.
func (s *Service) FindActiveByLogin(ctx context.Context, login string) (*User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return s.users.GetActiveByEmail(ctx, login)
	}
	return s.users.GetActiveByPhone(ctx, NormalizePhone(login))
}

func (s *Service) FindActiveByPhone(ctx context.Context, phone string) (*User, error) {
	return s.users.GetActiveByPhone(ctx, NormalizePhone(phone))
}

// EnsureAdmin creates an admin user with phone unless an active user already
// holds it. It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, u *User, password string) (bool, error) {
	if _, err := s.users.GetActiveByPhone(ctx, NormalizePhone(u.Phone)); err == nil {
		return false, nil
	} else if !apperr.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	u.Role = auth.RoleAdmin
	if err := s.createUser(ctx, u, password); err != nil {
		return false, err
	}
	return true, nil
}
