package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// PatientResolver checks that a report's patient exists.
type PatientResolver interface {
	PatientExists(ctx context.Context, id uuid.UUID) error
}

// PhysicianResolver checks that the authoring physician exists and is active.
type PhysicianResolver interface {
	PhysicianActive(ctx context.Context, id uuid.UUID) error
}

// ImageResolver checks that an optionally referenced image exists.
type ImageResolver interface {
	ImageExists(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo       Repository
	patients   PatientResolver
	physicians PhysicianResolver
	images     ImageResolver
}

func NewService(repo Repository, patients PatientResolver, physicians PhysicianResolver, images ImageResolver) *Service {
	return &Service{repo: repo, patients: patients, physicians: physicians, images: images}
}

// Create files a new report in draft status.
func (s *Service) Create(ctx context.Context, r *DiagnosticReport) error {
	if r.Title == "" {
		return apperr.Validation("title is required")
	}
	if r.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if r.PhysicianID == uuid.Nil {
		return apperr.Validation("physician_id is required")
	}
	if r.UrgencyLevel == "" {
		r.UrgencyLevel = "routine"
	}
	if !validUrgencies[r.UrgencyLevel] {
		return apperr.Validation("invalid urgency_level: %s", r.UrgencyLevel)
	}
	if err := s.patients.PatientExists(ctx, r.PatientID); err != nil {
		return err
	}
	if err := s.physicians.PhysicianActive(ctx, r.PhysicianID); err != nil {
		return err
	}
	if r.ImageID != nil {
		if err := s.images.ImageExists(ctx, *r.ImageID); err != nil {
			return err
		}
	}
	r.ReportStatus = StatusDraft
	r.CreatedAt = time.Now().UTC()
	r.PreliminaryAt, r.FinalizedAt, r.AmendedAt = nil, nil, nil
	return s.repo.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DiagnosticReport, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes the clinical content of a report. Content is editable in
// draft only; once a report is preliminary or beyond, changes must go
// through the amendment path.
func (s *Service) Update(ctx context.Context, r *DiagnosticReport) error {
	existing, err := s.repo.GetByID(ctx, r.ID)
	if err != nil {
		return err
	}
	if existing.ReportStatus != StatusDraft {
		return apperr.Validation("report content can only be edited in %s status, current status is %s", StatusDraft, existing.ReportStatus)
	}
	if r.Title == "" {
		r.Title = existing.Title
	}
	if r.UrgencyLevel == "" {
		r.UrgencyLevel = existing.UrgencyLevel
	}
	if !validUrgencies[r.UrgencyLevel] {
		return apperr.Validation("invalid urgency_level: %s", r.UrgencyLevel)
	}
	r.ReportStatus = existing.ReportStatus
	r.PreliminaryAt = existing.PreliminaryAt
	r.FinalizedAt = existing.FinalizedAt
	r.AmendedAt = existing.AmendedAt
	return s.repo.Update(ctx, r)
}

// UpdateStatus advances a report through its lifecycle, stamping the
// timestamp of the stage it enters.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*DiagnosticReport, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(r.ReportStatus, status); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r.ReportStatus = status
	switch status {
	case StatusPreliminary:
		r.PreliminaryAt = &now
	case StatusFinal:
		r.FinalizedAt = &now
	case StatusAmended:
		r.AmendedAt = &now
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*DiagnosticReport, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
