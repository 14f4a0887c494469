package catalog

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
	// Reads are public.
	api.GET("/specialties", h.ListSpecialties)
	api.GET("/specialties/:id", h.GetSpecialty)
	api.GET("/service-categories", h.ListCategories)
	api.GET("/service-categories/:id", h.GetCategory)
	api.GET("/services", h.ListServices)
	api.GET("/services/:id", h.GetService)
	api.GET("/services/:id/children", h.ListChildren)
	api.GET("/insurances", h.ListInsurances)
	api.GET("/insurances/:id", h.GetInsurance)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/specialties", h.CreateSpecialty)
	admin.PUT("/specialties/:id", h.UpdateSpecialty)
	admin.DELETE("/specialties/:id", h.DeleteSpecialty)
	admin.POST("/service-categories", h.CreateCategory)
	admin.PUT("/service-categories/:id", h.UpdateCategory)
	admin.DELETE("/service-categories/:id", h.DeleteCategory)
	admin.POST("/services", h.CreateService)
	admin.PUT("/services/:id", h.UpdateService)
	admin.DELETE("/services/:id", h.DeleteService)
	admin.POST("/insurances", h.CreateInsurance)
	admin.PUT("/insurances/:id", h.UpdateInsurance)
	admin.DELETE("/insurances/:id", h.DeleteInsurance)
}

// Request bodies. Pointer fields left out of an update keep their stored value.

type namedRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type serviceRequest struct {
	Name            string     `json:"name"`
	Code            *string    `json:"code"`
	Description     *string    `json:"description"`
	CategoryID      *uuid.UUID `json:"category_id"`
	ParentServiceID *uuid.UUID `json:"parent_service_id"`
	BasePrice       *int64     `json:"base_price"`
	DurationMinutes *int       `json:"duration_minutes"`
	IsActive        *bool      `json:"is_active"`
}

type insuranceRequest struct {
	Name            string   `json:"name"`
	CoveragePercent *float64 `json:"coverage_percent"`
	Description     *string  `json:"description"`
	IsActive        *bool    `json:"is_active"`
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// merge copies the fields set in req onto dst.
func merge(dst, req any) error {
	return copier.CopyWithOption(dst, req, copier.Option{IgnoreEmpty: true})
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
	if v := c.QueryParam("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("invalid category_id")
		}
		f.CategoryID = &id
	}
	if v := c.QueryParam("parent_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("invalid parent_id")
		}
		f.ParentID = &id
	}
	return f, nil
}

// -- Specialty Handlers --

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var req namedRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var sp Specialty
	if err := copier.Copy(&sp, &req); err != nil {
		return err
	}
	if err := h.svc.CreateSpecialty(c.Request().Context(), &sp); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sp)
}

func (h *Handler) GetSpecialty(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sp, err := h.svc.GetSpecialty(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sp)
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListSpecialties(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) UpdateSpecialty(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req namedRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	sp, err := h.svc.GetSpecialty(ctx, id)
	if err != nil {
		return err
	}
	if err := merge(sp, &req); err != nil {
		return err
	}
	if err := h.svc.UpdateSpecialty(ctx, sp); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sp)
}

func (h *Handler) DeleteSpecialty(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSpecialty(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Service Category Handlers --

func (h *Handler) CreateCategory(c echo.Context) error {
	var req namedRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var cat ServiceCategory
	if err := copier.Copy(&cat, &req); err != nil {
		return err
	}
	if err := h.svc.CreateCategory(c.Request().Context(), &cat); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *Handler) GetCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cat, err := h.svc.GetCategory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) ListCategories(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListCategories(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) UpdateCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req namedRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	cat, err := h.svc.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if err := merge(cat, &req); err != nil {
		return err
	}
	if err := h.svc.UpdateCategory(ctx, cat); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCategory(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Service Handlers --

func (h *Handler) CreateService(c echo.Context) error {
	var req serviceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var svc MedicalService
	if err := merge(&svc, &req); err != nil {
		return err
	}
	if err := h.svc.CreateService(c.Request().Context(), &svc); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, svc)
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	svc, err := h.svc.GetService(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) ListServices(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListServices(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) ListChildren(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListChildren(c.Request().Context(), id, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req serviceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	svc, err := h.svc.GetService(ctx, id)
	if err != nil {
		return err
	}
	if err := merge(svc, &req); err != nil {
		return err
	}
	if err := h.svc.UpdateService(ctx, svc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) DeleteService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteService(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Insurance Handlers --

func (h *Handler) CreateInsurance(c echo.Context) error {
	var req insuranceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.CoveragePercent == nil {
		return apperr.Validation("coverage_percent is required")
	}
	var ins Insurance
	if err := merge(&ins, &req); err != nil {
		return err
	}
	if err := h.svc.CreateInsurance(c.Request().Context(), &ins); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ins)
}

func (h *Handler) GetInsurance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ins, err := h.svc.GetInsurance(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ins)
}

func (h *Handler) ListInsurances(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListInsurances(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) UpdateInsurance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req insuranceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	ins, err := h.svc.GetInsurance(ctx, id)
	if err != nil {
		return err
	}
	if err := merge(ins, &req); err != nil {
		return err
	}
	if err := h.svc.UpdateInsurance(ctx, ins); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ins)
}

func (h *Handler) DeleteInsurance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteInsurance(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
