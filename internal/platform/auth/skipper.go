package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication for every method. Paths are echo route
// patterns, as returned by c.Path().
var publicPaths = map[string]bool{
	"/health":                true,
	"/health/db":             true,
	"/api/auth/send-otp":     true,
	"/api/auth/verify-otp":   true,
	"/api/auth/login-otp":    true,
	"/api/auth/login":        true,
	"/api/auth/register":     true,
	"/api/lookups":           true,
	"/api/lookups/:category": true,
}

// publicReads are catalog routes the public booking site reads anonymously.
var publicReads = map[string]bool{
	"/api/specialties":            true,
	"/api/specialties/:id":        true,
	"/api/service-categories":     true,
	"/api/service-categories/:id": true,
	"/api/services":               true,
	"/api/services/:id":           true,
	"/api/services/:id/children":  true,
	"/api/insurances":             true,
	"/api/insurances/:id":         true,
	"/api/clinics":                true,
	"/api/clinics/:id":            true,
	"/api/clinics/:id/services":   true,
	"/api/clinics/:id/insurances": true,
}

// AuthSkipper reports whether a request may proceed without a bearer token.
func AuthSkipper(c echo.Context) bool {
	if publicPaths[c.Path()] {
		return true
	}
	return c.Request().Method == http.MethodGet && publicReads[c.Path()]
}
