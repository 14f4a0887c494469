package clinic

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/db"
)

type clinicRepoPG struct{ pool *pgxpool.Pool }

func NewClinicRepoPG(pool *pgxpool.Pool) ClinicRepository {
	return &clinicRepoPG{pool: pool}
}

func (r *clinicRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const clinicCols = `c.id, c.name, c.phone, c.description, c.is_active, c.created_at, c.updated_at`

var clinicSorts = map[string]string{
	"name":       "c.name",
	"created_at": "c.created_at",
	"updated_at": "c.updated_at",
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinic (id, name, phone, description, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Phone, c.Description, c.IsActive).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	c, err := scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinic c WHERE c.id = $1`, id))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "clinic")
	}
	return c, nil
}

func (r *clinicRepoPG) Update(ctx context.Context, c *Clinic) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE clinic SET name=$2, phone=$3, description=$4, is_active=$5, updated_at=NOW()
		WHERE id = $1 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Phone, c.Description, c.IsActive).Scan(&c.CreatedAt, &c.UpdatedAt)
	return apperr.NotFoundIfNoRows(err, "clinic")
}

func (r *clinicRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinic WHERE id = $1`, id)
	if err != nil {
		return apperr.InUse(err, "clinic")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("clinic not found")
	}
	return nil
}

func (r *clinicRepoPG) List(ctx context.Context, f ListFilter) ([]*Clinic, int, error) {
	q := db.NewQuery("clinic c", clinicCols).Search(f.Search, "c.name", "c.description", "c.phone")
	if f.IsActive != nil {
		q.Eq("c.is_active", *f.IsActive)
	}
	if f.ServiceID != nil {
		q.Where("EXISTS (SELECT 1 FROM clinic_service cs WHERE cs.clinic_id = c.id AND cs.service_id = ?)", *f.ServiceID)
	}
	if f.InsuranceID != nil {
		q.Where("EXISTS (SELECT 1 FROM clinic_insurance ci WHERE ci.clinic_id = c.id AND ci.insurance_id = ?)", *f.InsuranceID)
	}
	q.OrderBy(f.Page.OrderBy(clinicSorts, "c.name", false, "c.id"))

	var items []*Clinic
	total, err := q.Page(ctx, r.conn(ctx), f.Page.Limit, f.Page.Offset, func(rows pgx.Rows) error {
		c, err := scanClinic(rows)
		if err == nil {
			items = append(items, c)
		}
		return err
	})
	return items, total, err
}

// Work hours

func (r *clinicRepoPG) DeleteWorkHours(ctx context.Context, clinicID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinic_work_hour WHERE clinic_id = $1`, clinicID)
	return err
}

func (r *clinicRepoPG) AddWorkHour(ctx context.Context, wh *WorkHour) error {
	wh.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic_work_hour (id, clinic_id, weekday, open_time, close_time)
		VALUES ($1,$2,$3,$4,$5)`,
		wh.ID, wh.ClinicID, wh.Weekday, wh.OpenTime, wh.CloseTime)
	return err
}

func (r *clinicRepoPG) ListWorkHours(ctx context.Context, clinicID uuid.UUID) ([]*WorkHour, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, clinic_id, weekday, open_time, close_time FROM clinic_work_hour
		WHERE clinic_id = $1 ORDER BY weekday, open_time`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*WorkHour
	for rows.Next() {
		var wh WorkHour
		if err := rows.Scan(&wh.ID, &wh.ClinicID, &wh.Weekday, &wh.OpenTime, &wh.CloseTime); err != nil {
			return nil, err
		}
		items = append(items, &wh)
	}
	return items, rows.Err()
}

// Addresses

func (r *clinicRepoPG) AddAddress(ctx context.Context, a *Address) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinic_address (id, clinic_id, street, city, province, postal_code, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		a.ID, a.ClinicID, a.Street, a.City, a.Province, a.PostalCode, a.Latitude, a.Longitude).Scan(&a.CreatedAt)
}

func (r *clinicRepoPG) RemoveAddress(ctx context.Context, clinicID, addressID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinic_address WHERE id = $1 AND clinic_id = $2`, addressID, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("address not found")
	}
	return nil
}

func (r *clinicRepoPG) ListAddresses(ctx context.Context, clinicID uuid.UUID) ([]*Address, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, clinic_id, street, city, province, postal_code, latitude, longitude, created_at
		FROM clinic_address WHERE clinic_id = $1 ORDER BY created_at, id`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.ClinicID, &a.Street, &a.City, &a.Province, &a.PostalCode,
			&a.Latitude, &a.Longitude, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

// Services

const offeredCols = `cs.clinic_id, cs.service_id, s.name, s.base_price, cs.price`

func scanOffered(row pgx.Row) (*OfferedService, error) {
	var o OfferedService
	if err := row.Scan(&o.ClinicID, &o.ServiceID, &o.ServiceName, &o.BasePrice, &o.Price); err != nil {
		return nil, err
	}
	o.EffectivePrice = o.BasePrice
	if o.Price != nil {
		o.EffectivePrice = *o.Price
	}
	return &o, nil
}

func (r *clinicRepoPG) UpsertService(ctx context.Context, clinicID, serviceID uuid.UUID, price *int64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic_service (clinic_id, service_id, price) VALUES ($1,$2,$3)
		ON CONFLICT (clinic_id, service_id) DO UPDATE SET price = EXCLUDED.price`,
		clinicID, serviceID, price)
	return err
}

func (r *clinicRepoPG) RemoveService(ctx context.Context, clinicID, serviceID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinic_service WHERE clinic_id = $1 AND service_id = $2`, clinicID, serviceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("clinic does not offer this service")
	}
	return nil
}

func (r *clinicRepoPG) ListServices(ctx context.Context, clinicID uuid.UUID) ([]*OfferedService, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+offeredCols+` FROM clinic_service cs JOIN service s ON s.id = cs.service_id
		WHERE cs.clinic_id = $1 ORDER BY s.name, s.id`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*OfferedService
	for rows.Next() {
		o, err := scanOffered(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *clinicRepoPG) GetService(ctx context.Context, clinicID, serviceID uuid.UUID) (*OfferedService, error) {
	o, err := scanOffered(r.conn(ctx).QueryRow(ctx, `
		SELECT `+offeredCols+` FROM clinic_service cs JOIN service s ON s.id = cs.service_id
		WHERE cs.clinic_id = $1 AND cs.service_id = $2`, clinicID, serviceID))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "clinic service")
	}
	return o, nil
}

// Insurances

func (r *clinicRepoPG) AddInsurance(ctx context.Context, clinicID, insuranceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic_insurance (clinic_id, insurance_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, clinicID, insuranceID)
	return err
}

func (r *clinicRepoPG) RemoveInsurance(ctx context.Context, clinicID, insuranceID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinic_insurance WHERE clinic_id = $1 AND insurance_id = $2`, clinicID, insuranceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("clinic does not accept this insurance")
	}
	return nil
}

func (r *clinicRepoPG) ListInsurances(ctx context.Context, clinicID uuid.UUID) ([]*AcceptedInsurer, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ci.clinic_id, ci.insurance_id, i.name, i.coverage_percent
		FROM clinic_insurance ci JOIN insurance i ON i.id = ci.insurance_id
		WHERE ci.clinic_id = $1 ORDER BY i.name, i.id`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*AcceptedInsurer
	for rows.Next() {
		var a AcceptedInsurer
		if err := rows.Scan(&a.ClinicID, &a.InsuranceID, &a.InsuranceName, &a.CoveragePercent); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
