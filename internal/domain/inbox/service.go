package inbox

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/notification"
)

type Service struct {
	repo      Repository
	templates *notification.TemplateEngine
}

// NewService uses templates to render notifications created with Notify.
func NewService(repo Repository, templates *notification.TemplateEngine) *Service {
	return &Service{repo: repo, templates: templates}
}

func (s *Service) Create(ctx context.Context, n *Notification) error {
	n.Title = strings.TrimSpace(n.Title)
	n.Body = strings.TrimSpace(n.Body)
	if n.UserID == uuid.Nil {
		return apperr.Validation("user_id is required")
	}
	if !slices.Contains(Types, n.Type) {
		return apperr.Validation("invalid notification type %q", n.Type)
	}
	if n.Title == "" {
		return apperr.Validation("title is required")
	}
	if len([]rune(n.Title)) > 200 {
		return apperr.Validation("title must be at most 200 characters")
	}
	if n.Body == "" {
		return apperr.Validation("body is required")
	}
	n.IsRead = false
	n.ReadAt = nil
	return s.repo.Create(ctx, n)
}

// Notify renders templateID with data and stores the result for userID. The
// template subject becomes the title.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, kind, templateID string, data map[string]string, ref *uuid.UUID) error {
	title, body, err := s.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	return s.Create(ctx, &Notification{UserID: userID, Type: kind, Title: title, Body: body, ReferenceID: ref})
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Notification, int, error) {
	if f.Type != "" && !slices.Contains(Types, f.Type) {
		return nil, 0, apperr.Validation("invalid notification type %q", f.Type)
	}
	return s.repo.ListByUser(ctx, userID, f)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}
