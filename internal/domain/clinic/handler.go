package clinic

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/labstack/echo/v4"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/auth"
	"github.com/clinichub/clinichub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public reads for the booking site.
	api.GET("/clinics", h.ListClinics)
	api.GET("/clinics/:id", h.GetClinic)
	api.GET("/clinics/:id/services", h.ListServices)
	api.GET("/clinics/:id/insurances", h.ListInsurances)

	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProvider, auth.RolePatient))
	read.GET("/clinics/:id/work-hours", h.ListWorkHours)
	read.GET("/clinics/:id/addresses", h.ListAddresses)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/clinics", h.CreateClinic)
	admin.PUT("/clinics/:id", h.UpdateClinic)
	admin.DELETE("/clinics/:id", h.DeleteClinic)
	admin.PUT("/clinics/:id/work-hours", h.ReplaceWorkHours)
	admin.POST("/clinics/:id/addresses", h.AddAddress)
	admin.DELETE("/clinics/:id/addresses/:addressID", h.RemoveAddress)
	admin.POST("/clinics/:id/services", h.AddService)
	admin.DELETE("/clinics/:id/services/:serviceID", h.RemoveService)
	admin.POST("/clinics/:id/insurances", h.AddInsurance)
	admin.DELETE("/clinics/:id/insurances/:insuranceID", h.RemoveInsurance)
}

type clinicRequest struct {
	Name        string  `json:"name"`
	Phone       *string `json:"phone"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type workHourRequest struct {
	Weekday   int    `json:"weekday"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

type addressRequest struct {
	Street     string   `json:"street"`
	City       string   `json:"city"`
	Province   *string  `json:"province"`
	PostalCode *string  `json:"postal_code"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

type clinicServiceRequest struct {
	ServiceID uuid.UUID `json:"service_id"`
	Price     *int64    `json:"price"`
}

type clinicInsuranceRequest struct {
	InsuranceID uuid.UUID `json:"insurance_id"`
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

func listFilter(c echo.Context) (ListFilter, error) {
	f := ListFilter{Search: c.QueryParam("search"), Page: pagination.FromContext(c)}
	if f.Search == "" {
		f.Search = c.QueryParam("q")
	}
	if v := c.QueryParam("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperr.Validation("is_active must be true or false")
		}
		f.IsActive = &b
	}
	for name, dst := range map[string]**uuid.UUID{"service_id": &f.ServiceID, "insurance_id": &f.InsuranceID} {
		if v := c.QueryParam(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, apperr.Validation("invalid %s", name)
			}
			*dst = &id
		}
	}
	return f, nil
}

func (h *Handler) CreateClinic(c echo.Context) error {
	var req clinicRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var cl Clinic
	if err := copier.CopyWithOption(&cl, &req, copier.Option{IgnoreEmpty: true}); err != nil {
		return err
	}
	if err := h.svc.CreateClinic(c.Request().Context(), &cl); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	cl, err := h.svc.GetClinicDetail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClinics(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListClinics(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req clinicRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	cl, err := h.svc.GetClinic(ctx, id)
	if err != nil {
		return err
	}
	if err := copier.CopyWithOption(cl, &req, copier.Option{IgnoreEmpty: true}); err != nil {
		return err
	}
	if err := h.svc.UpdateClinic(ctx, cl); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) DeleteClinic(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteClinic(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReplaceWorkHours(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req []workHourRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	hours := make([]*WorkHour, len(req))
	for i, r := range req {
		hours[i] = &WorkHour{Weekday: r.Weekday, OpenTime: r.OpenTime, CloseTime: r.CloseTime}
	}
	saved, err := h.svc.ReplaceWorkHours(c.Request().Context(), id, hours)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) ListWorkHours(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	hours, err := h.svc.ListWorkHours(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hours)
}

func (h *Handler) AddAddress(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req addressRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var a Address
	if err := copier.Copy(&a, &req); err != nil {
		return err
	}
	a.ClinicID = id
	if err := h.svc.AddAddress(c.Request().Context(), &a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) RemoveAddress(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	addressID, err := parseUUIDParam(c, "addressID")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveAddress(c.Request().Context(), id, addressID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListAddresses(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListAddresses(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddService(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req clinicServiceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.ServiceID == uuid.Nil {
		return apperr.Validation("service_id is required")
	}
	o, err := h.svc.AddService(c.Request().Context(), id, req.ServiceID, req.Price)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) RemoveService(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	serviceID, err := parseUUIDParam(c, "serviceID")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveService(c.Request().Context(), id, serviceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListServices(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListServices(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddInsurance(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req clinicInsuranceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.InsuranceID == uuid.Nil {
		return apperr.Validation("insurance_id is required")
	}
	if err := h.svc.AddInsurance(c.Request().Context(), id, req.InsuranceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveInsurance(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	insuranceID, err := parseUUIDParam(c, "insuranceID")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveInsurance(c.Request().Context(), id, insuranceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListInsurances(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListInsurances(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
