package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/db"
)

const duplicateUser = "an active user with this phone or national code already exists"

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `u.id, u.phone, u.email, u.national_code, u.first_name, u.last_name, u.password_hash,
	u.role, u.gender, u.is_active, u.created_at, u.updated_at`

var userSorts = map[string]string{
	"name":       "u.last_name",
	"last_name":  "u.last_name",
	"first_name": "u.first_name",
	"phone":      "u.phone",
	"created_at": "u.created_at",
}

func userDest(u *User) []any {
	return []any{&u.ID, &u.Phone, &u.Email, &u.NationalCode, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.Role, &u.Gender, &u.IsActive, &u.CreatedAt, &u.UpdatedAt}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(userDest(&u)...)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO app_user (id, phone, email, national_code, first_name, last_name, password_hash, role, gender, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		u.ID, u.Phone, u.Email, u.NationalCode, u.FirstName, u.LastName, u.PasswordHash, u.Role, u.Gender, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return apperr.Duplicate(err, duplicateUser)
}

func (r *userRepoPG) getOne(ctx context.Context, where string, arg any) (*User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM app_user u WHERE `+where, arg))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "user")
	}
	return u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "u.id = $1", id)
}

func (r *userRepoPG) GetActiveByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getOne(ctx, "u.phone = $1 AND u.is_active", phone)
}

func (r *userRepoPG) GetActiveByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "lower(u.email) = lower($1) AND u.is_active", email)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE app_user SET phone=$2, email=$3, national_code=$4, first_name=$5, last_name=$6,
			password_hash=$7, gender=$8, updated_at=NOW()
		WHERE id = $1 RETURNING role, is_active, created_at, updated_at`,
		u.ID, u.Phone, u.Email, u.NationalCode, u.FirstName, u.LastName, u.PasswordHash, u.Gender,
	).Scan(&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return apperr.Duplicate(apperr.NotFoundIfNoRows(err, "user"), duplicateUser)
	}
	return nil
}

func (r *userRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE app_user SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return apperr.Duplicate(err, duplicateUser)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, f UserFilter) ([]*User, int, error) {
	q := db.NewQuery("app_user u", userCols).
		Search(f.Search, "u.first_name", "u.last_name", "u.phone", "u.email", "u.national_code")
	if f.Role != "" {
		q.Eq("u.role", f.Role)
	}
	if f.IsActive != nil {
		q.Eq("u.is_active", *f.IsActive)
	}
	q.OrderBy(f.Page.OrderBy(userSorts, "u.created_at", true, "u.id"))

	var out []*User
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		u, err := scanUser(row)
		if err == nil {
			out = append(out, u)
		}
		return err
	})
	return out, total, err
}

func (r *userRepoPG) ActiveConflict(ctx context.Context, phone string, nationalCode *string, exclude uuid.UUID) (string, error) {
	var field string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT CASE WHEN phone = $1 THEN 'phone' ELSE 'national_code' END
		FROM app_user
		WHERE is_active AND id <> $3 AND (phone = $1 OR ($2::text IS NOT NULL AND national_code = $2))
		ORDER BY (phone = $1) DESC
		LIMIT 1`, phone, nationalCode, exclude).Scan(&field)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return field, err
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientFrom = `patient_profile p JOIN app_user u ON u.id = p.user_id`

const patientCols = `p.id, p.user_id, p.blood_type, p.birth_date, p.emergency_phone, p.address, p.notes,
	p.created_at, p.updated_at, ` + userCols

var patientSorts = map[string]string{
	"name":       "u.last_name",
	"last_name":  "u.last_name",
	"first_name": "u.first_name",
	"birth_date": "p.birth_date",
	"created_at": "p.created_at",
}

func scanPatient(row pgx.Row) (*Patient, error) {
	p := Patient{User: &User{}}
	dest := append([]any{&p.ID, &p.UserID, &p.BloodType, &p.BirthDate, &p.EmergencyPhone, &p.Address, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt}, userDest(p.User)...)
	err := row.Scan(dest...)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_profile (id, user_id, blood_type, birth_date, emergency_phone, address, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.BloodType, p.BirthDate, p.EmergencyPhone, p.Address, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) getOne(ctx context.Context, where string, arg any) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM `+patientFrom+` WHERE `+where, arg))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.getOne(ctx, "p.id = $1", id)
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.getOne(ctx, "p.user_id = $1", userID)
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient_profile SET blood_type=$2, birth_date=$3, emergency_phone=$4, address=$5, notes=$6, updated_at=NOW()
		WHERE id = $1 RETURNING created_at, updated_at`,
		p.ID, p.BloodType, p.BirthDate, p.EmergencyPhone, p.Address, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.NotFoundIfNoRows(err, "patient")
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter) ([]*Patient, int, error) {
	q := db.NewQuery(patientFrom, patientCols).
		Search(f.Search, "u.first_name", "u.last_name", "u.first_name || ' ' || u.last_name", "u.phone", "u.national_code")
	if f.IsActive != nil {
		q.Eq("u.is_active", *f.IsActive)
	}
	q.OrderBy(f.Page.OrderBy(patientSorts, "p.created_at", true, "p.id"))

	var out []*Patient
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		p, err := scanPatient(row)
		if err == nil {
			out = append(out, p)
		}
		return err
	})
	return out, total, err
}

func (r *patientRepoPG) AddInsurance(ctx context.Context, pi *PatientInsurance) error {
	pi.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_insurance (id, patient_id, insurance_id, policy_number)
		VALUES ($1,$2,$3,$4) RETURNING created_at`,
		pi.ID, pi.PatientID, pi.InsuranceID, pi.PolicyNumber).Scan(&pi.CreatedAt)
	return apperr.Duplicate(err, "patient already has this insurance")
}

func (r *patientRepoPG) ListInsurances(ctx context.Context, patientID uuid.UUID) ([]*PatientInsurance, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT pi.id, pi.patient_id, pi.insurance_id, i.name, i.coverage_percent, pi.policy_number, pi.created_at
		FROM patient_insurance pi JOIN insurance i ON i.id = pi.insurance_id
		WHERE pi.patient_id = $1 ORDER BY i.name`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PatientInsurance
	for rows.Next() {
		var pi PatientInsurance
		if err := rows.Scan(&pi.ID, &pi.PatientID, &pi.InsuranceID, &pi.InsuranceName, &pi.CoveragePercent,
			&pi.PolicyNumber, &pi.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &pi)
	}
	return out, rows.Err()
}

func (r *patientRepoPG) RemoveInsurance(ctx context.Context, patientID, insuranceID uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM patient_insurance WHERE patient_id = $1 AND insurance_id = $2`, patientID, insuranceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient insurance not found")
	}
	return nil
}

// =========== Provider Repository ===========

type providerRepoPG struct{ pool *pgxpool.Pool }

func NewProviderRepoPG(pool *pgxpool.Pool) ProviderRepository {
	return &providerRepoPG{pool: pool}
}

const providerFrom = `provider_profile p
	JOIN app_user u ON u.id = p.user_id
	LEFT JOIN specialty s ON s.id = p.specialty_id
	LEFT JOIN clinic c ON c.id = p.clinic_id`

const providerCols = `p.id, p.user_id, p.specialty_id, s.name, p.clinic_id, c.name, p.license_number, p.degree,
	p.experience_years, p.bio, p.created_at, p.updated_at, ` + userCols

var providerSorts = map[string]string{
	"name":             "u.last_name",
	"last_name":        "u.last_name",
	"experience_years": "p.experience_years",
	"created_at":       "p.created_at",
}

func scanProvider(row pgx.Row) (*Provider, error) {
	p := Provider{User: &User{}}
	dest := append([]any{&p.ID, &p.UserID, &p.SpecialtyID, &p.SpecialtyName, &p.ClinicID, &p.ClinicName,
		&p.LicenseNumber, &p.Degree, &p.ExperienceYears, &p.Bio, &p.CreatedAt, &p.UpdatedAt}, userDest(p.User)...)
	err := row.Scan(dest...)
	return &p, err
}

func (r *providerRepoPG) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO provider_profile (id, user_id, specialty_id, clinic_id, license_number, degree, experience_years, bio)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.SpecialtyID, p.ClinicID, p.LicenseNumber, p.Degree, p.ExperienceYears, p.Bio,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *providerRepoPG) getOne(ctx context.Context, where string, arg any) (*Provider, error) {
	p, err := scanProvider(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+providerCols+` FROM `+providerFrom+` WHERE `+where, arg))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "provider")
	}
	return p, nil
}

func (r *providerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return r.getOne(ctx, "p.id = $1", id)
}

func (r *providerRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error) {
	return r.getOne(ctx, "p.user_id = $1", userID)
}

func (r *providerRepoPG) Update(ctx context.Context, p *Provider) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE provider_profile SET specialty_id=$2, clinic_id=$3, license_number=$4, degree=$5,
			experience_years=$6, bio=$7, updated_at=NOW()
		WHERE id = $1 RETURNING created_at, updated_at`,
		p.ID, p.SpecialtyID, p.ClinicID, p.LicenseNumber, p.Degree, p.ExperienceYears, p.Bio,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.NotFoundIfNoRows(err, "provider")
}

func (r *providerRepoPG) List(ctx context.Context, f ProviderFilter) ([]*Provider, int, error) {
	q := db.NewQuery(providerFrom, providerCols).
		Search(f.Search, "u.first_name", "u.last_name", "u.first_name || ' ' || u.last_name", "p.license_number", "s.name")
	if f.IsActive != nil {
		q.Eq("u.is_active", *f.IsActive)
	}
	if f.SpecialtyID != nil {
		q.Eq("p.specialty_id", *f.SpecialtyID)
	}
	if f.ClinicID != nil {
		q.Eq("p.clinic_id", *f.ClinicID)
	}
	q.OrderBy(f.Page.OrderBy(providerSorts, "u.last_name", false, "p.id"))

	var out []*Provider
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		p, err := scanProvider(row)
		if err == nil {
			out = append(out, p)
		}
		return err
	})
	return out, total, err
}
