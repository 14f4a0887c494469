package lookup

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public enumeration endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/lookups", h.List)
	api.GET("/lookups/:category", h.Get)
}

func (h *Handler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Catalog())
}

func (h *Handler) Get(c echo.Context) error {
	values, err := h.svc.Category(c.Param("category"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, values)
}
