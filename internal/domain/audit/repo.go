package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository is deliberately append-only. There is no update or delete:
// an audit trail that can be rewritten is not an audit trail.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error)
}
