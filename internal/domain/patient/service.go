package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.PatientID == "" {
		return apperr.Validation("patient_id is required")
	}
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return apperr.Validation("invalid gender: %s", *p.Gender)
	}

	// Pre-check the business key so the common case gets a clean conflict
	// before hitting the unique index.
	if existing, err := s.repo.GetByPatientID(ctx, p.PatientID); err == nil && existing != nil {
		return apperr.Conflict("patient %s already exists", p.PatientID)
	} else if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}

	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByPatientID(ctx context.Context, patientID string) (*Patient, error) {
	return s.repo.GetByPatientID(ctx, patientID)
}

// Update applies demographic changes. The business identifier is immutable.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.PatientID != "" && p.PatientID != existing.PatientID {
		return apperr.Validation("patient_id cannot be changed")
	}
	if p.Name == "" {
		p.Name = existing.Name
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return apperr.Validation("invalid gender: %s", *p.Gender)
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// PatientExists reports whether a patient row exists, for services holding
// foreign references to patients.
func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetByID(ctx, id)
	return err
}
