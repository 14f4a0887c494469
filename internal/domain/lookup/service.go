package lookup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinichub/clinichub/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Seed writes every enumeration into lookup_value, updating labels that
// changed. It is safe to run repeatedly.
func (s *Service) Seed(ctx context.Context) (int, error) {
	values := All()
	if err := s.repo.Upsert(ctx, values); err != nil {
		return 0, fmt.Errorf("seed lookups: %w", err)
	}
	s.logger.Info().Int("values", len(values)).Msg("lookup values seeded")
	return len(values), nil
}

// Catalog returns every category with its values.
func (s *Service) Catalog() map[string][]Value {
	out := make(map[string][]Value, len(categoryOrder))
	for _, c := range categoryOrder {
		out[c] = Values(c)
	}
	return out
}

func (s *Service) Category(category string) ([]Value, error) {
	values := Values(category)
	if values == nil {
		return nil, apperr.NotFound("lookup category %q not found", category)
	}
	return values, nil
}
