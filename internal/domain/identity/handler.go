package identity

import (
	"context"
	"net/http"
	"strconv"
	"time"

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
	// Staff manage patients; a patient may read and edit their own record.
	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProvider))
	staff.GET("/patients", h.ListPatients)
	staff.POST("/patients", h.CreatePatient)

	self := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProvider, auth.RolePatient))
	self.GET("/patients/:id", h.GetPatient)
	self.PUT("/patients/:id", h.UpdatePatient)
	self.GET("/patients/:id/insurances", h.ListPatientInsurances)
	self.POST("/patients/:id/insurances", h.AddPatientInsurance)
	self.DELETE("/patients/:id/insurances/:insuranceID", h.RemovePatientInsurance)
	self.GET("/providers", h.ListProviders)
	self.GET("/providers/:id", h.GetProvider)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id", h.DeactivatePatient)
	admin.POST("/providers", h.CreateProvider)
	admin.PUT("/providers/:id", h.UpdateProvider)
	admin.DELETE("/providers/:id", h.DeactivateProvider)
	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/:id/activate", h.ActivateUser)
	admin.PUT("/users/:id/deactivate", h.DeactivateUser)
}

// userRequest holds the user fields shared by patient and provider payloads.
// Pointer fields keep absent keys apart from empty values on update.
type userRequest struct {
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	NationalCode *string `json:"national_code"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Gender       *string `json:"gender"`
	Password     string  `json:"password"`
}

type patientRequest struct {
	userRequest
	BloodType      *string `json:"blood_type"`
	BirthDate      *string `json:"birth_date" copier:"-"`
	EmergencyPhone *string `json:"emergency_phone"`
	Address        *string `json:"address"`
	Notes          *string `json:"notes"`
}

type providerRequest struct {
	userRequest
	SpecialtyID     *uuid.UUID `json:"specialty_id"`
	ClinicID        *uuid.UUID `json:"clinic_id"`
	LicenseNumber   *string    `json:"license_number"`
	Degree          *string    `json:"degree"`
	ExperienceYears *int       `json:"experience_years"`
	Bio             *string    `json:"bio"`
}

type patientInsuranceRequest struct {
	InsuranceID  uuid.UUID `json:"insurance_id"`
	PolicyNumber *string   `json:"policy_number"`
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
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

func merge(dst, src any) error {
	return copier.CopyWithOption(dst, src, copier.Option{IgnoreEmpty: true})
}

func parseBool(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation("%s must be true or false", name)
	}
	return &b, nil
}

func parseUUIDQuery(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperr.Validation("invalid %s", name)
	}
	return &id, nil
}

func searchTerm(c echo.Context) string {
	if v := c.QueryParam("search"); v != "" {
		return v
	}
	return c.QueryParam("q")
}

func applyPatientRequest(p *Patient, req *patientRequest) error {
	if err := merge(p.User, &req.userRequest); err != nil {
		return err
	}
	if err := merge(p, req); err != nil {
		return err
	}
	if req.BirthDate != nil {
		if *req.BirthDate == "" {
			p.BirthDate = nil
			return nil
		}
		d, err := time.Parse(time.DateOnly, *req.BirthDate)
		if err != nil {
			return apperr.Validation("birth_date must be YYYY-MM-DD")
		}
		if d.After(time.Now()) {
			return apperr.Validation("birth_date must not be in the future")
		}
		p.BirthDate = &d
	}
	return nil
}

// authorizePatient lets staff through and restricts a patient to their own
// profile.
func (h *Handler) authorizePatient(ctx context.Context, patientID uuid.UUID) error {
	if !auth.IsPatientOnly(ctx) {
		return nil
	}
	userID, ok := auth.UserUUIDFromContext(ctx)
	if !ok {
		return apperr.Forbidden("access denied")
	}
	own, err := h.svc.PatientByUser(ctx, userID)
	if err != nil || own.ID != patientID {
		return apperr.Forbidden("patients may only access their own record")
	}
	return nil
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	var req patientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := &Patient{User: &User{}}
	if err := applyPatientRequest(p, &req); err != nil {
		return err
	}
	if err := h.svc.CreatePatient(c.Request().Context(), p, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.authorizePatient(ctx, id); err != nil {
		return err
	}
	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.authorizePatient(ctx, id); err != nil {
		return err
	}
	var req patientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return err
	}
	if err := applyPatientRequest(p, &req); err != nil {
		return err
	}
	if req.Password != "" {
		if err := setPassword(p.User, req.Password); err != nil {
			return err
		}
	}
	if err := h.svc.UpdatePatient(ctx, p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeactivatePatient(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatients(c echo.Context) error {
	f := PatientFilter{Search: searchTerm(c), Page: pagination.FromContext(c)}
	var err error
	if f.IsActive, err = parseBool(c, "is_active"); err != nil {
		return err
	}
	items, total, err := h.svc.ListPatients(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) AddPatientInsurance(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.authorizePatient(ctx, id); err != nil {
		return err
	}
	var req patientInsuranceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.InsuranceID == uuid.Nil {
		return apperr.Validation("insurance_id is required")
	}
	pi := &PatientInsurance{PatientID: id, InsuranceID: req.InsuranceID, PolicyNumber: req.PolicyNumber}
	if err := h.svc.AddPatientInsurance(ctx, pi); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pi)
}

func (h *Handler) ListPatientInsurances(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.authorizePatient(ctx, id); err != nil {
		return err
	}
	items, err := h.svc.ListPatientInsurances(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) RemovePatientInsurance(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	insuranceID, err := parseID(c, "insuranceID")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.authorizePatient(ctx, id); err != nil {
		return err
	}
	if err := h.svc.RemovePatientInsurance(ctx, id, insuranceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Provider Handlers --

func (h *Handler) CreateProvider(c echo.Context) error {
	var req providerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := &Provider{User: &User{}}
	if err := merge(p.User, &req.userRequest); err != nil {
		return err
	}
	if err := merge(p, &req); err != nil {
		return err
	}
	if err := h.svc.CreateProvider(c.Request().Context(), p, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetProvider(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProvider(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req providerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetProvider(ctx, id)
	if err != nil {
		return err
	}
	if err := merge(p.User, &req.userRequest); err != nil {
		return err
	}
	if err := merge(p, &req); err != nil {
		return err
	}
	if req.Password != "" {
		if err := setPassword(p.User, req.Password); err != nil {
			return err
		}
	}
	if err := h.svc.UpdateProvider(ctx, p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivateProvider(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateProvider(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListProviders(c echo.Context) error {
	f := ProviderFilter{Search: searchTerm(c), Page: pagination.FromContext(c)}
	var err error
	if f.IsActive, err = parseBool(c, "is_active"); err != nil {
		return err
	}
	if f.SpecialtyID, err = parseUUIDQuery(c, "specialty_id"); err != nil {
		return err
	}
	if f.ClinicID, err = parseUUIDQuery(c, "clinic_id"); err != nil {
		return err
	}
	items, total, err := h.svc.ListProviders(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

// -- User Handlers --

func (h *Handler) ListUsers(c echo.Context) error {
	f := UserFilter{Search: searchTerm(c), Role: c.QueryParam("role"), Page: pagination.FromContext(c)}
	var err error
	if f.IsActive, err = parseBool(c, "is_active"); err != nil {
		return err
	}
	items, total, err := h.svc.ListUsers(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Page))
}

func (h *Handler) ActivateUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.ActivateUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.DeactivateUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
