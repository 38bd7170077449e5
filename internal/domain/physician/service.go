package physician

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/auth"
)

// PredictionReviewer settles the prediction a review refers to. The
// prediction service implements it.
type PredictionReviewer interface {
	ApplyReview(ctx context.Context, id uuid.UUID, approved bool) error
}

// TxRunner runs fn atomically. The db-backed runner wraps a transaction;
// the default runs fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func directRunner(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	repo        Repository
	reviews     ReviewRepository
	predictions PredictionReviewer
	inTx        TxRunner
}

func NewService(repo Repository, reviews ReviewRepository, predictions PredictionReviewer, inTx TxRunner) *Service {
	if inTx == nil {
		inTx = directRunner
	}
	return &Service{repo: repo, reviews: reviews, predictions: predictions, inTx: inTx}
}

func (s *Service) Create(ctx context.Context, p *Physician) error {
	if p.PhysicianID == "" {
		return apperr.Validation("physician_id is required")
	}
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if p.Username == "" || p.Email == "" {
		return apperr.Validation("username and email are required")
	}
	if !strings.Contains(p.Email, "@") {
		return apperr.Validation("invalid email: %s", p.Email)
	}
	if len(p.Password) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}

	if existing, err := s.repo.GetByUsername(ctx, p.Username); err == nil && existing != nil {
		return apperr.Conflict("username %s is taken", p.Username)
	} else if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}

	hashed, err := auth.HashPassword(p.Password)
	if err != nil {
		return apperr.Internal(err, "hash password")
	}
	p.HashedPassword = hashed
	p.Password = ""
	p.IsActive = true
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Physician, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByPhysicianID(ctx context.Context, physicianID string) (*Physician, error) {
	return s.repo.GetByPhysicianID(ctx, physicianID)
}

// Update applies profile changes. Identity fields (physician_id, username)
// and the password are not updatable through this path.
func (s *Service) Update(ctx context.Context, p *Physician) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.PhysicianID != "" && p.PhysicianID != existing.PhysicianID {
		return apperr.Validation("physician_id cannot be changed")
	}
	if p.Username != "" && p.Username != existing.Username {
		return apperr.Validation("username cannot be changed")
	}
	if p.Name == "" {
		p.Name = existing.Name
	}
	if p.Email == "" {
		p.Email = existing.Email
	} else if !strings.Contains(p.Email, "@") {
		return apperr.Validation("invalid email: %s", p.Email)
	}
	return s.repo.Update(ctx, p)
}

// Deactivate retires a physician without deleting the record.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

// PhysicianActive returns an error unless the physician exists and is
// active, for services attributing work to physicians.
func (s *Service) PhysicianActive(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return apperr.Validation("physician %s is deactivated", p.PhysicianID)
	}
	return nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Physician, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// CredentialsByUsername satisfies auth.PhysicianCredentialStore so
// physicians can log in with their stored password hashes.
func (s *Service) CredentialsByUsername(ctx context.Context, username string) (*auth.Credential, error) {
	p, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return &auth.Credential{
		Username:       p.Username,
		HashedPassword: p.HashedPassword,
		Active:         p.IsActive,
	}, nil
}

// CreateReview files a physician's verdict on a prediction and settles the
// prediction's review status in the same transaction. is_correct maps to
// approved, anything else to rejected.
func (s *Service) CreateReview(ctx context.Context, r *Review) error {
	if r.PredictionID == uuid.Nil {
		return apperr.Validation("prediction_id is required")
	}
	if r.PhysicianID == uuid.Nil {
		return apperr.Validation("physician_id is required")
	}
	if r.ConfidenceInAI != nil && (*r.ConfidenceInAI < 0 || *r.ConfidenceInAI > 1) {
		return apperr.Validation("confidence_in_ai must be in [0,1], got %g", *r.ConfidenceInAI)
	}

	reviewer, err := s.repo.GetByID(ctx, r.PhysicianID)
	if err != nil {
		return err
	}
	if !reviewer.IsActive {
		return apperr.Validation("physician %s is deactivated", reviewer.PhysicianID)
	}

	r.ReviewTime = time.Now().UTC()
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.predictions.ApplyReview(ctx, r.PredictionID, r.IsCorrect); err != nil {
			return err
		}
		return s.reviews.Create(ctx, r)
	})
}

func (s *Service) ReviewsByPrediction(ctx context.Context, predictionID uuid.UUID) ([]*Review, error) {
	return s.reviews.ListByPrediction(ctx, predictionID)
}

func (s *Service) ReviewsByPhysician(ctx context.Context, physicianID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	return s.reviews.ListByPhysician(ctx, physicianID, limit, offset)
}
