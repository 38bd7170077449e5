package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patients. There is no Delete: patient records are
// retained for the life of the system.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByPatientID(ctx context.Context, patientID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
}
