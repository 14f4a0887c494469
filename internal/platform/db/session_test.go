package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestResolveTenant(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"header", "/", "clinic_a", "clinic_a"},
		{"query", "/?tenant_id=clinic_b", "", "clinic_b"},
		{"header wins over query", "/?tenant_id=clinic_b", "clinic_a", "clinic_a"},
		{"default", "/", "", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			if got := resolveTenant(c, "default"); got != tt.want {
				t.Errorf("resolveTenant() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionMiddleware_RejectsInvalidTenant(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TenantHeader, "'; DROP SCHEMA public; --")
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	h := SessionMiddleware(nil, "default")(func(c echo.Context) error {
		called = true
		return nil
	})

	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
	if called {
		t.Error("handler must not run for an invalid tenant")
	}
}

func TestTenantIDPattern(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"abc", true},
		{"Clinic_1", true},
		{"a-b", false},
		{"a.b", false},
		{"a b", false},
		{"", false},
		{"tenant@1", false},
	}
	for _, tt := range tests {
		if got := tenantIDPattern.MatchString(tt.input); got != tt.valid {
			t.Errorf("tenantIDPattern.MatchString(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}

func TestSchemaName(t *testing.T) {
	if got := SchemaName("north"); got != "tenant_north" {
		t.Errorf("SchemaName() = %q", got)
	}
}

func TestContextAccessors_Empty(t *testing.T) {
	ctx := context.Background()
	if ConnFromContext(ctx) != nil {
		t.Error("expected nil conn")
	}
	if TenantFromContext(ctx) != "" {
		t.Error("expected empty tenant")
	}

	ctx = context.WithValue(ctx, DBConnKey, "not-a-conn")
	if ConnFromContext(ctx) != nil {
		t.Error("expected nil for wrong type")
	}
}

func TestCreateTenantSchema_InvalidIDs(t *testing.T) {
	for _, id := range []string{"tenant-with-dash", "ten ant", "drop;table"} {
		if err := CreateTenantSchema(context.Background(), nil, id, ""); err == nil {
			t.Errorf("expected error for invalid tenant ID %q", id)
		}
	}
}
