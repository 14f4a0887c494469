package servicerequest

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const requestFrom = `service_request r
	JOIN patient_profile pp ON pp.id = r.patient_id
	JOIN app_user pu ON pu.id = pp.user_id
	LEFT JOIN clinic c ON c.id = r.clinic_id
	LEFT JOIN service s ON s.id = r.service_id
	LEFT JOIN insurance i ON i.id = r.insurance_id
	LEFT JOIN provider_profile pr ON pr.id = r.assigned_provider_id
	LEFT JOIN app_user pru ON pru.id = pr.user_id`

const requestCols = `r.id, r.patient_id, pp.user_id, pu.first_name || ' ' || pu.last_name, pu.phone,
	r.clinic_id, c.name, r.service_id, s.name, r.insurance_id, i.name,
	r.assigned_provider_id, pru.first_name || ' ' || pru.last_name,
	r.status, r.preferred_time, r.total_price, r.insurance_covered, r.patient_payable,
	r.notes, r.created_by, r.created_at, r.updated_at`

var requestSorts = map[string]string{
	"created_at":     "r.created_at",
	"preferred_time": "r.preferred_time",
	"status":         "r.status",
}

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var r ServiceRequest
	err := row.Scan(&r.ID, &r.PatientID, &r.PatientUserID, &r.PatientName, &r.PatientPhone,
		&r.ClinicID, &r.ClinicName, &r.ServiceID, &r.ServiceName, &r.InsuranceID, &r.InsuranceName,
		&r.AssignedProviderID, &r.ProviderName,
		&r.Status, &r.PreferredTime, &r.TotalPrice, &r.InsuranceCovered, &r.PatientPayable,
		&r.Notes, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

func (p *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, p.pool)
}

func (p *repoPG) Create(ctx context.Context, r *ServiceRequest) error {
	r.ID = uuid.New()
	return p.conn(ctx).QueryRow(ctx, `
		INSERT INTO service_request (id, patient_id, clinic_id, service_id, insurance_id, assigned_provider_id,
			status, preferred_time, total_price, insurance_covered, patient_payable, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		r.ID, r.PatientID, r.ClinicID, r.ServiceID, r.InsuranceID, r.AssignedProviderID,
		r.Status, r.PreferredTime, r.TotalPrice, r.InsuranceCovered, r.PatientPayable, r.Notes, r.CreatedBy,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (p *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	r, err := scanRequest(p.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM `+requestFrom+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "service request")
	}
	return r, nil
}

func (p *repoPG) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := p.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service request not found")
	}
	return nil
}

func (p *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return p.exec(ctx, `UPDATE service_request SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (p *repoPG) SetProvider(ctx context.Context, id uuid.UUID, providerID *uuid.UUID) error {
	return p.exec(ctx, `UPDATE service_request SET assigned_provider_id = $2, updated_at = NOW() WHERE id = $1`, id, providerID)
}

func filterQuery(f ListFilter) *db.Query {
	q := db.NewQuery(requestFrom, requestCols).
		Search(f.Search, "r.notes", "pu.first_name || ' ' || pu.last_name", "s.name")
	if f.Status != "" {
		q.Eq("r.status", f.Status)
	}
	if f.ClinicID != nil {
		q.Eq("r.clinic_id", *f.ClinicID)
	}
	if f.PatientID != nil {
		q.Eq("r.patient_id", *f.PatientID)
	}
	if f.ProviderID != nil {
		q.Eq("r.assigned_provider_id", *f.ProviderID)
	}
	col := "r." + DateFieldCreated
	if f.DateField == DateFieldPreferred {
		col = "r." + DateFieldPreferred
	}
	if f.DateFrom != nil {
		q.Where(col+" >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q.Where(col+" < ?", *f.DateTo)
	}
	return q.OrderBy(f.Page.OrderBy(requestSorts, "r.created_at", true, "r.id"))
}

func (p *repoPG) List(ctx context.Context, f ListFilter) ([]*ServiceRequest, int, error) {
	var out []*ServiceRequest
	total, err := filterQuery(f).Page(ctx, p.conn(ctx), f.Page.Limit, f.Page.Offset, func(row pgx.Rows) error {
		r, err := scanRequest(row)
		if err == nil {
			out = append(out, r)
		}
		return err
	})
	return out, total, err
}

func (p *repoPG) ListAll(ctx context.Context, f ListFilter, limit int) ([]*ServiceRequest, error) {
	q := filterQuery(f)
	args := append(append([]any{}, q.Args()...), limit)
	rows, err := p.conn(ctx).Query(ctx, q.SelectSQL()+" LIMIT $"+strconv.Itoa(q.Next()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *repoPG) CountByStatus(ctx context.Context, f ListFilter) (map[string]int, error) {
	q := filterQuery(f)
	rows, err := p.conn(ctx).Query(ctx, q.GroupSQL("r.status, COUNT(*)", "r.status"), q.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// -- History --

func (p *repoPG) AddHistory(ctx context.Context, h *History) error {
	h.ID = uuid.New()
	return p.conn(ctx).QueryRow(ctx, `
		INSERT INTO service_request_history (id, service_request_id, from_status, to_status, note, changed_by)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING changed_at`,
		h.ID, h.ServiceRequestID, h.FromStatus, h.ToStatus, h.Note, h.ChangedBy).Scan(&h.ChangedAt)
}

func (p *repoPG) ListHistory(ctx context.Context, requestID uuid.UUID) ([]*History, error) {
	rows, err := p.conn(ctx).Query(ctx, `
		SELECT id, service_request_id, from_status, to_status, note, changed_by, changed_at
		FROM service_request_history WHERE service_request_id = $1 ORDER BY changed_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.ServiceRequestID, &h.FromStatus, &h.ToStatus, &h.Note, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// -- Result --

func (p *repoPG) UpsertResult(ctx context.Context, r *Result) error {
	return p.conn(ctx).QueryRow(ctx, `
		INSERT INTO service_result (id, service_request_id, result_text, attachment_url, submitted_by)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (service_request_id) DO UPDATE
			SET result_text = EXCLUDED.result_text, attachment_url = EXCLUDED.attachment_url,
				submitted_by = EXCLUDED.submitted_by, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		uuid.New(), r.ServiceRequestID, r.ResultText, r.AttachmentURL, r.SubmittedBy,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (p *repoPG) GetResult(ctx context.Context, requestID uuid.UUID) (*Result, error) {
	var r Result
	err := p.conn(ctx).QueryRow(ctx, `
		SELECT id, service_request_id, result_text, attachment_url, submitted_by, created_at, updated_at
		FROM service_result WHERE service_request_id = $1`, requestID).
		Scan(&r.ID, &r.ServiceRequestID, &r.ResultText, &r.AttachmentURL, &r.SubmittedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "result")
	}
	return &r, nil
}

// -- Payment --

const paymentCols = `id, service_request_id, amount, method, status, reference, recorded_by, paid_at, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.ServiceRequestID, &p.Amount, &p.Method, &p.Status, &p.Reference, &p.RecordedBy, &p.PaidAt, &p.CreatedAt)
	return &p, err
}

func (p *repoPG) AddPayment(ctx context.Context, pay *Payment) error {
	pay.ID = uuid.New()
	return p.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment (id, service_request_id, amount, method, status, reference, recorded_by, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`,
		pay.ID, pay.ServiceRequestID, pay.Amount, pay.Method, pay.Status, pay.Reference, pay.RecordedBy, pay.PaidAt,
	).Scan(&pay.CreatedAt)
}

func (p *repoPG) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	pay, err := scanPayment(p.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "payment")
	}
	return pay, nil
}

func (p *repoPG) ListPayments(ctx context.Context, requestID uuid.UUID) ([]*Payment, error) {
	rows, err := p.conn(ctx).Query(ctx, `SELECT `+paymentCols+` FROM payment WHERE service_request_id = $1 ORDER BY paid_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Payment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}
