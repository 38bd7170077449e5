package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends an entry to the trail. Missing risk levels default to low
// and the timestamp is stamped here so callers cannot backdate entries.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.Action == "" {
		return apperr.Validation("action is required")
	}
	if e.ResourceType == "" {
		return apperr.Validation("resource_type is required")
	}
	if e.RiskLevel == "" {
		e.RiskLevel = RiskLow
	}
	if !validRiskLevels[e.RiskLevel] {
		return apperr.Validation("invalid risk_level: %s", e.RiskLevel)
	}
	e.Timestamp = time.Now().UTC()
	return s.repo.Create(ctx, e)
}

// RecordAsync logs the entry without failing the caller's request. Audit
// writes must never take down the operation they describe.
func (s *Service) RecordAsync(ctx context.Context, e *Entry) {
	if err := s.Record(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("action", e.Action).
			Str("resource_type", e.ResourceType).
			Msg("failed to record audit entry")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
