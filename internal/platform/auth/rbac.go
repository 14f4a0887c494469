package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin    = "admin"
	RoleProvider = "provider"
	RolePatient  = "patient"
)

var validRoles = map[string]bool{
	RoleAdmin:    true,
	RoleProvider: true,
	RolePatient:  true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// HasRole reports whether the caller holds role. Admin holds every role.
func HasRole(ctx context.Context, role string) bool {
	roles := RolesFromContext(ctx)
	return slices.Contains(roles, role) || slices.Contains(roles, RoleAdmin)
}

// IsPatientOnly reports whether the caller acts purely as a patient, which
// limits them to their own records.
func IsPatientOnly(ctx context.Context) bool {
	roles := RolesFromContext(ctx)
	return slices.Contains(roles, RolePatient) &&
		!slices.Contains(roles, RoleAdmin) &&
		!slices.Contains(roles, RoleProvider)
}

// RequireRole rejects callers holding none of roles with 403. Admin always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			if len(userRoles) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, has := range userRoles {
				if has == RoleAdmin || slices.Contains(roles, has) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
