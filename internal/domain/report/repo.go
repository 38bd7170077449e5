package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *DiagnosticReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*DiagnosticReport, error)
	Update(ctx context.Context, r *DiagnosticReport) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*DiagnosticReport, int, error)
}
