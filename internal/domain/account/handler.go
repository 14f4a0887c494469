package account

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

// RegisterRoutes mounts the auth endpoints. Everything except /auth/me is on
// the JWT skip list.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/send-otp", h.SendOTP)
	g.POST("/verify-otp", h.VerifyOTP)
	g.POST("/login-otp", h.LoginOTP)
	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.GET("/me", h.Me)
}

type phoneRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Phone        string  `json:"phone"`
	Password     string  `json:"password"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	NationalCode *string `json:"national_code"`
	Email        *string `json:"email"`
	Code         string  `json:"code"`
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func (h *Handler) SendOTP(c echo.Context) error {
	var req phoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.SendOTP(c.Request().Context(), req.Phone); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var req phoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ok, err := h.svc.VerifyOTP(c.Request().Context(), req.Phone, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": ok})
}

func (h *Handler) LoginOTP(c echo.Context) error {
	var req phoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, err := h.svc.LoginOTP(c.Request().Context(), req.Phone, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, err := h.svc.Register(c.Request().Context(), Registration(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tok)
}

func (h *Handler) Me(c echo.Context) error {
	prof, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, prof)
}
