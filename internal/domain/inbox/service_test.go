package inbox

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/notification"
)

type mockRepo struct {
	items []*Notification
}

func (m *mockRepo) Create(_ context.Context, n *Notification) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now().Add(time.Duration(len(m.items)) * time.Millisecond)
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID, f ListFilter) ([]*Notification, int, error) {
	var out []*Notification
	for _, n := range m.items {
		if n.UserID != userID || (f.UnreadOnly && n.IsRead) || (f.Type != "" && n.Type != f.Type) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *mockRepo) MarkRead(_ context.Context, userID, id uuid.UUID) (*Notification, error) {
	for _, n := range m.items {
		if n.ID == id && n.UserID == userID {
			if !n.IsRead {
				now := time.Now()
				n.IsRead, n.ReadAt = true, &now
			}
			cp := *n
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("notification not found")
}

func (m *mockRepo) MarkAllRead(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			now := time.Now()
			n.IsRead, n.ReadAt = true, &now
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := &mockRepo{}
	return NewService(repo, notification.NewTemplateEngine()), repo
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	user := uuid.New()
	tests := []struct {
		name string
		n    Notification
	}{
		{"no user", Notification{Type: TypeSystem, Title: "t", Body: "b"}},
		{"bad type", Notification{UserID: user, Type: "sms", Title: "t", Body: "b"}},
		{"no title", Notification{UserID: user, Type: TypeSystem, Title: " ", Body: "b"}},
		{"long title", Notification{UserID: user, Type: TypeSystem, Title: strings.Repeat("x", 201), Body: "b"}},
		{"no body", Notification{UserID: user, Type: TypeSystem, Title: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(context.Background(), &tt.n); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNotify_RendersTemplate(t *testing.T) {
	svc, repo := newTestService()
	user, ref := uuid.New(), uuid.New()
	err := svc.Notify(context.Background(), user, TypeServiceRequest, notification.TemplateServiceRequestStatus,
		map[string]string{"patient_name": "Sara", "service_name": "MRI", "status": "approved"}, &ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.items))
	}
	n := repo.items[0]
	if n.Title != "Request status updated" || !strings.Contains(n.Body, "MRI") || !strings.Contains(n.Body, "approved") {
		t.Errorf("unexpected rendering %q / %q", n.Title, n.Body)
	}
	if n.ReferenceID == nil || *n.ReferenceID != ref || n.IsRead {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestNotify_UnknownTemplate(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Notify(context.Background(), uuid.New(), TypeSystem, "missing", nil, nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestReadFlow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	me, other := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		if err := svc.Create(ctx, &Notification{UserID: me, Type: TypeSystem, Title: "t", Body: "b"}); err != nil {
			t.Fatal(err)
		}
	}
	theirs := &Notification{UserID: other, Type: TypeSystem, Title: "t", Body: "b"}
	svc.Create(ctx, theirs)

	mine, total, _ := svc.ListMine(ctx, me, ListFilter{})
	if total != 3 {
		t.Fatalf("expected 3 notifications, got %d", total)
	}
	if _, err := svc.MarkRead(ctx, me, mine[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.MarkRead(ctx, me, theirs.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for another user's notification, got %v", err)
	}
	if n, _ := svc.UnreadCount(ctx, me); n != 2 {
		t.Errorf("expected 2 unread, got %d", n)
	}
	if _, total, _ := svc.ListMine(ctx, me, ListFilter{UnreadOnly: true}); total != 2 {
		t.Errorf("expected 2 unread in list, got %d", total)
	}
	if n, _ := svc.MarkAllRead(ctx, me); n != 2 {
		t.Errorf("expected 2 marked, got %d", n)
	}
	if n, _ := svc.UnreadCount(ctx, other); n != 1 {
		t.Errorf("other user's notifications must stay unread, got %d", n)
	}
}

func TestListMine_InvalidType(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.ListMine(context.Background(), uuid.New(), ListFilter{Type: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
