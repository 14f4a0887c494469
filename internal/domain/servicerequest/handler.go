package servicerequest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/auth"
	"github.com/clinichub/clinichub/pkg/pagination"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePDF  = "application/pdf"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProvider, auth.RolePatient))
	read.GET("/service-requests", h.List)
	read.POST("/service-requests", h.Create)
	read.GET("/service-requests/:id", h.Get)
	read.GET("/service-requests/:id/history", h.History)
	read.GET("/service-requests/:id/result", h.GetResult)
	read.GET("/service-requests/:id/payments", h.ListPayments)
	read.GET("/payments/:id/receipt", h.Receipt)

	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProvider))
	staff.GET("/service-requests/stats", h.Stats)
	staff.GET("/service-requests/export", h.Export)
	staff.PUT("/service-requests/:id/status", h.ChangeStatus)
	staff.PUT("/service-requests/:id/assign", h.Assign)
	staff.PUT("/service-requests/:id/result", h.SubmitResult)
	staff.POST("/service-requests/:id/payments", h.RecordPayment)
}

type createRequest struct {
	PatientID          uuid.UUID  `json:"patient_id"`
	ClinicID           *uuid.UUID `json:"clinic_id"`
	ServiceID          *uuid.UUID `json:"service_id"`
	InsuranceID        *uuid.UUID `json:"insurance_id"`
	AssignedProviderID *uuid.UUID `json:"assigned_provider_id"`
	PreferredTime      *time.Time `json:"preferred_time"`
	Notes              *string    `json:"notes"`
}

type statusRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

type assignRequest struct {
	ProviderID *uuid.UUID `json:"provider_id"`
}

type resultRequest struct {
	ResultText    string  `json:"result_text"`
	AttachmentURL *string `json:"attachment_url"`
}

type paymentRequest struct {
	Amount    int64      `json:"amount"`
	Method    string     `json:"method"`
	Status    string     `json:"status"`
	Reference *string    `json:"reference"`
	PaidAt    *time.Time `json:"paid_at"`
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. A plain date used as an upper
// bound covers the whole day.
func parseDate(name, v string, upper bool) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD or RFC 3339", name)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func listFilter(c echo.Context) (ListFilter, error) {
	f := ListFilter{
		Search:    c.QueryParam("search"),
		Status:    c.QueryParam("status"),
		DateField: c.QueryParam("date_field"),
		View:      c.QueryParam("view"),
		Page:      pagination.FromContext(c),
	}
	if f.Search == "" {
		f.Search = c.QueryParam("q")
	}
	for name, dst := range map[string]**uuid.UUID{
		"clinic_id":   &f.ClinicID,
		"patient_id":  &f.PatientID,
		"provider_id": &f.ProviderID,
	} {
		if v := c.QueryParam(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, apperr.Validation("invalid %s", name)
			}
			*dst = &id
		}
	}
	var err error
	if v := c.QueryParam("date_from"); v != "" {
		if f.DateFrom, err = parseDate("date_from", v, false); err != nil {
			return f, err
		}
	}
	if v := c.QueryParam("date_to"); v != "" {
		if f.DateTo, err = parseDate("date_to", v, true); err != nil {
			return f, err
		}
	}
	return f, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	r := ServiceRequest{
		PatientID:          req.PatientID,
		ClinicID:           req.ClinicID,
		ServiceID:          req.ServiceID,
		InsuranceID:        req.InsuranceID,
		AssignedProviderID: req.AssignedProviderID,
		PreferredTime:      req.PreferredTime,
		Notes:              req.Notes,
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*ServiceRequest{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) Stats(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Export(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	data, err := h.svc.Export(c.Request().Context(), f)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("service-requests-%s.xlsx", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, mimeXLSX, data)
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.svc.ChangeStatus(c.Request().Context(), id, req.Status, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Assign(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req assignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.svc.Assign(c.Request().Context(), id, req.ProviderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) History(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*History{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SubmitResult(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req resultRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res := Result{ServiceRequestID: id, ResultText: req.ResultText, AttachmentURL: req.AttachmentURL}
	if err := h.svc.SubmitResult(c.Request().Context(), &res); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetResult(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	res, err := h.svc.GetResult(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := Payment{ServiceRequestID: id, Amount: req.Amount, Method: req.Method, Status: req.Status, Reference: req.Reference}
	if req.PaidAt != nil {
		p.PaidAt = *req.PaidAt
	}
	if err := h.svc.RecordPayment(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Payment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Receipt(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	data, p, err := h.svc.Receipt(c.Request().Context(), id)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="receipt-`+p.ID.String()+`.pdf"`)
	return c.Blob(http.StatusOK, mimePDF, data)
}
