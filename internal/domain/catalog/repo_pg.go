package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/db"
)

var nameSorts = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository {
	return &specialtyRepoPG{pool: pool}
}

const specialtyCols = `id, name, description, created_at, updated_at`

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	s.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO specialty (id, name, description) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	s, err := scanSpecialty(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+specialtyCols+` FROM specialty WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "specialty")
	}
	return s, nil
}

func (r *specialtyRepoPG) Update(ctx context.Context, s *Specialty) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE specialty SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1 RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description).Scan(&s.CreatedAt, &s.UpdatedAt)
	return apperr.NotFoundIfNoRows(err, "specialty")
}

func (r *specialtyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, db.Conn(ctx, r.pool), "specialty", id)
}

func (r *specialtyRepoPG) List(ctx context.Context, f ListFilter) ([]*Specialty, int, error) {
	q := db.NewQuery("specialty", specialtyCols).
		Search(f.Search, "name", "description").
		OrderBy(f.Page.OrderBy(nameSorts, "name", false, "id"))

	var out []*Specialty
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		s, err := scanSpecialty(row)
		if err == nil {
			out = append(out, s)
		}
		return err
	})
	return out, total, err
}

// =========== Service Category Repository ===========

type categoryRepoPG struct{ pool *pgxpool.Pool }

func NewCategoryRepoPG(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepoPG{pool: pool}
}

const categoryCols = `id, name, description, created_at, updated_at`

func scanCategory(row pgx.Row) (*ServiceCategory, error) {
	var c ServiceCategory
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *categoryRepoPG) Create(ctx context.Context, c *ServiceCategory) error {
	c.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO service_category (id, name, description) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *categoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceCategory, error) {
	c, err := scanCategory(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+categoryCols+` FROM service_category WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "service category")
	}
	return c, nil
}

func (r *categoryRepoPG) Update(ctx context.Context, c *ServiceCategory) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE service_category SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description).Scan(&c.CreatedAt, &c.UpdatedAt)
	return apperr.NotFoundIfNoRows(err, "service category")
}

func (r *categoryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, db.Conn(ctx, r.pool), "service_category", id)
}

func (r *categoryRepoPG) List(ctx context.Context, f ListFilter) ([]*ServiceCategory, int, error) {
	q := db.NewQuery("service_category", categoryCols).
		Search(f.Search, "name", "description").
		OrderBy(f.Page.OrderBy(nameSorts, "name", false, "id"))

	var out []*ServiceCategory
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		c, err := scanCategory(row)
		if err == nil {
			out = append(out, c)
		}
		return err
	})
	return out, total, err
}

// =========== Service Repository ===========

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository {
	return &serviceRepoPG{pool: pool}
}

const serviceFrom = `service s
	LEFT JOIN service_category c ON c.id = s.category_id
	LEFT JOIN service p ON p.id = s.parent_service_id`

const serviceCols = `s.id, s.name, s.code, s.description, s.category_id, c.name, s.parent_service_id, p.name,
	s.base_price, s.duration_minutes, s.is_active, s.created_at, s.updated_at`

var serviceSorts = map[string]string{
	"name":       "s.name",
	"code":       "s.code",
	"base_price": "s.base_price",
	"created_at": "s.created_at",
}

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	err := row.Scan(&s.ID, &s.Name, &s.Code, &s.Description, &s.CategoryID, &s.CategoryName,
		&s.ParentServiceID, &s.ParentName, &s.BasePrice, &s.DurationMinutes, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *MedicalService) error {
	s.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO service (id, name, code, description, category_id, parent_service_id,
			base_price, duration_minutes, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Code, s.Description, s.CategoryID, s.ParentServiceID,
		s.BasePrice, s.DurationMinutes, s.IsActive).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	s, err := scanService(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+serviceCols+` FROM `+serviceFrom+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "service")
	}
	return s, nil
}

func (r *serviceRepoPG) Update(ctx context.Context, s *MedicalService) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE service SET name=$2, code=$3, description=$4, category_id=$5, parent_service_id=$6,
			base_price=$7, duration_minutes=$8, is_active=$9, updated_at=NOW()
		WHERE id = $1 RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Code, s.Description, s.CategoryID, s.ParentServiceID,
		s.BasePrice, s.DurationMinutes, s.IsActive).Scan(&s.CreatedAt, &s.UpdatedAt)
	return apperr.NotFoundIfNoRows(err, "service")
}

func (r *serviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, db.Conn(ctx, r.pool), "service", id)
}

func (r *serviceRepoPG) List(ctx context.Context, f ListFilter) ([]*MedicalService, int, error) {
	q := db.NewQuery(serviceFrom, serviceCols).Search(f.Search, "s.name", "s.code", "s.description")
	if f.IsActive != nil {
		q.Eq("s.is_active", *f.IsActive)
	}
	if f.CategoryID != nil {
		q.Eq("s.category_id", *f.CategoryID)
	}
	if f.ParentID != nil {
		q.Eq("s.parent_service_id", *f.ParentID)
	}
	q.OrderBy(f.Page.OrderBy(serviceSorts, "s.name", false, "s.id"))

	var out []*MedicalService
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		s, err := scanService(row)
		if err == nil {
			out = append(out, s)
		}
		return err
	})
	return out, total, err
}

func (r *serviceRepoPG) ParentOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var parent *uuid.UUID
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT parent_service_id FROM service WHERE id = $1`, id).Scan(&parent)
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "service")
	}
	return parent, nil
}

// =========== Insurance Repository ===========

type insuranceRepoPG struct{ pool *pgxpool.Pool }

func NewInsuranceRepoPG(pool *pgxpool.Pool) InsuranceRepository {
	return &insuranceRepoPG{pool: pool}
}

const insuranceCols = `id, name, coverage_percent, description, is_active, created_at, updated_at`

var insuranceSorts = map[string]string{
	"name":             "name",
	"coverage_percent": "coverage_percent",
	"created_at":       "created_at",
}

func scanInsurance(row pgx.Row) (*Insurance, error) {
	var i Insurance
	err := row.Scan(&i.ID, &i.Name, &i.CoveragePercent, &i.Description, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return &i, err
}

func (r *insuranceRepoPG) Create(ctx context.Context, i *Insurance) error {
	i.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO insurance (id, name, coverage_percent, description, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		i.ID, i.Name, i.CoveragePercent, i.Description, i.IsActive).Scan(&i.CreatedAt, &i.UpdatedAt)
}

func (r *insuranceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Insurance, error) {
	i, err := scanInsurance(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+insuranceCols+` FROM insurance WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "insurance")
	}
	return i, nil
}

func (r *insuranceRepoPG) Update(ctx context.Context, i *Insurance) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE insurance SET name=$2, coverage_percent=$3, description=$4, is_active=$5, updated_at=NOW()
		WHERE id = $1 RETURNING created_at, updated_at`,
		i.ID, i.Name, i.CoveragePercent, i.Description, i.IsActive).Scan(&i.CreatedAt, &i.UpdatedAt)
	return apperr.NotFoundIfNoRows(err, "insurance")
}

func (r *insuranceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, db.Conn(ctx, r.pool), "insurance", id)
}

func (r *insuranceRepoPG) List(ctx context.Context, f ListFilter) ([]*Insurance, int, error) {
	q := db.NewQuery("insurance", insuranceCols).Search(f.Search, "name", "description")
	if f.IsActive != nil {
		q.Eq("is_active", *f.IsActive)
	}
	q.OrderBy(f.Page.OrderBy(insuranceSorts, "name", false, "id"))

	var out []*Insurance
	total, err := q.Page(ctx, db.Conn(ctx, r.pool), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		i, err := scanInsurance(row)
		if err == nil {
			out = append(out, i)
		}
		return err
	})
	return out, total, err
}

// =========== helpers ===========

func deleteByID(ctx context.Context, q db.Querier, table string, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return apperr.InUse(err, entityName(table))
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("%s not found", entityName(table))
	}
	return nil
}

func entityName(table string) string {
	if table == "service_category" {
		return "service category"
	}
	return table
}
