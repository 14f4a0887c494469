package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinichub/clinichub/internal/platform/apperr"
)

type mockRepo struct {
	values []Value
	err    error
}

func (m *mockRepo) Upsert(_ context.Context, values []Value) error {
	if m.err != nil {
		return m.err
	}
	m.values = append(m.values[:0], values...)
	return nil
}

func TestSeed_WritesEveryCategory(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())

	n, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(repo.values) {
		t.Errorf("reported %d values, wrote %d", n, len(repo.values))
	}

	seen := map[string]bool{}
	for _, v := range repo.values {
		seen[v.Category] = true
		if v.Code == "" || v.Label == "" {
			t.Errorf("incomplete value %+v", v)
		}
	}
	for _, c := range Categories() {
		if !seen[c] {
			t.Errorf("category %s not seeded", c)
		}
	}
}

func TestSeed_Idempotent(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())
	first, _ := svc.Seed(context.Background())
	second, _ := svc.Seed(context.Background())
	if first != second || len(repo.values) != first {
		t.Errorf("expected repeatable seed, got %d then %d (%d stored)", first, second, len(repo.values))
	}
}

func TestSeed_RepoError(t *testing.T) {
	svc := NewService(&mockRepo{err: errors.New("db down")}, zerolog.Nop())
	if _, err := svc.Seed(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCategory(t *testing.T) {
	svc := NewService(&mockRepo{}, zerolog.Nop())

	values, err := svc.Category(CategoryServiceRequestStatus)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"pending", "approved", "in_progress", "done", "rejected"}
	if len(values) != len(want) {
		t.Fatalf("expected %d statuses, got %d", len(want), len(values))
	}
	for i, v := range values {
		if v.Code != want[i] {
			t.Errorf("value %d = %s, want %s", i, v.Code, want[i])
		}
		if v.SortOrder != i+1 {
			t.Errorf("sort order %d = %d", i, v.SortOrder)
		}
	}

	if _, err := svc.Category("planets"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestWeekdaysCoverWholeWeek(t *testing.T) {
	if got := Codes(CategoryWeekday); len(got) != 7 || got[0] != "0" || got[6] != "6" {
		t.Errorf("unexpected weekdays %v", got)
	}
}
