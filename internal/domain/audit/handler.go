package audit

import (
	"net/http"
	"time"

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
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/audit-logs", h.List)
}

func parseTime(name, v string, upper bool) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD or RFC 3339", name)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func (h *Handler) List(c echo.Context) error {
	f := ListFilter{
		UserID:   c.QueryParam("user_id"),
		Resource: c.QueryParam("resource"),
		Action:   c.QueryParam("action"),
		Page:     pagination.FromContext(c),
	}
	var err error
	if v := c.QueryParam("date_from"); v != "" {
		if f.DateFrom, err = parseTime("date_from", v, false); err != nil {
			return err
		}
	}
	if v := c.QueryParam("date_to"); v != "" {
		if f.DateTo, err = parseTime("date_to", v, true); err != nil {
			return err
		}
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Log{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}
