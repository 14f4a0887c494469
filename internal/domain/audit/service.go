package audit

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/middleware"
)

var actions = []string{"create", "update", "delete"}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var _ middleware.AuditRecorder = (*Service)(nil)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordAccess stores one entry produced by the audit middleware.
func (s *Service) RecordAccess(ctx context.Context, e middleware.AuditEntry) error {
	l := &Log{
		UserID:     optional(e.UserID),
		Action:     e.Action,
		Resource:   e.Resource,
		Path:       e.Path,
		Method:     e.Method,
		StatusCode: e.StatusCode,
		IPAddress:  optional(e.IPAddress),
		RequestID:  optional(e.RequestID),
		CreatedAt:  e.Timestamp,
	}
	if id, err := uuid.Parse(e.ResourceID); err == nil {
		l.ResourceID = &id
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return s.repo.Create(ctx, l)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Log, int, error) {
	f.UserID = strings.TrimSpace(f.UserID)
	f.Resource = strings.TrimSpace(f.Resource)
	if f.Action != "" && !slices.Contains(actions, f.Action) {
		return nil, 0, apperr.Validation("action must be one of %s", strings.Join(actions, ", "))
	}
	if f.DateFrom != nil && f.DateTo != nil && !f.DateFrom.Before(*f.DateTo) {
		return nil, 0, apperr.Validation("date_from must be before date_to")
	}
	return s.repo.List(ctx, f)
}
