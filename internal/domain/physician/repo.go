package physician

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists physicians. There is no Delete: deactivation is the
// retirement path.
type Repository interface {
	Create(ctx context.Context, p *Physician) error
	GetByID(ctx context.Context, id uuid.UUID) (*Physician, error)
	GetByPhysicianID(ctx context.Context, physicianID string) (*Physician, error)
	GetByUsername(ctx context.Context, username string) (*Physician, error)
	Update(ctx context.Context, p *Physician) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Physician, int, error)
}

// ReviewRepository persists physician reviews. Reviews are write-once.
type ReviewRepository interface {
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)
	ListByPrediction(ctx context.Context, predictionID uuid.UUID) ([]*Review, error)
	ListByPhysician(ctx context.Context, physicianID uuid.UUID, limit, offset int) ([]*Review, int, error)
}
