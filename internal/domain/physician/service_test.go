package physician

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medivision/medivision/internal/platform/apperr"
)

type mockRepo struct {
	mu         sync.Mutex
	physicians map[uuid.UUID]*Physician
}

func newMockRepo() *mockRepo {
	return &mockRepo{physicians: make(map[uuid.UUID]*Physician)}
}

func (m *mockRepo) Create(ctx context.Context, p *Physician) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.physicians {
		if existing.Username == p.Username || existing.Email == p.Email || existing.PhysicianID == p.PhysicianID {
			return apperr.Conflict("physician already exists")
		}
	}
	p.ID = uuid.New()
	cp := *p
	m.physicians[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Physician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.physicians[id]
	if !ok {
		return nil, apperr.NotFound("physician not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByPhysicianID(ctx context.Context, physicianID string) (*Physician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.physicians {
		if p.PhysicianID == physicianID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("physician not found")
}

func (m *mockRepo) GetByUsername(ctx context.Context, username string) (*Physician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.physicians {
		if p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("physician not found")
}

func (m *mockRepo) Update(ctx context.Context, p *Physician) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.physicians[p.ID]
	if !ok {
		return apperr.NotFound("physician not found")
	}
	existing.Name = p.Name
	existing.Email = p.Email
	existing.Specialty = p.Specialty
	existing.SubSpecialty = p.SubSpecialty
	existing.LicenseNumber = p.LicenseNumber
	existing.Department = p.Department
	return nil
}

func (m *mockRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.physicians[id]
	if !ok {
		return apperr.NotFound("physician not found")
	}
	p.IsActive = active
	return nil
}

func (m *mockRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Physician, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Physician
	for _, p := range m.physicians {
		if v, ok := params["is_active"]; ok && p.IsActive != (v == "true") {
			continue
		}
		cp := *p
		items = append(items, &cp)
	}
	return items, len(items), nil
}

type mockReviewRepo struct {
	mu      sync.Mutex
	reviews map[uuid.UUID]*Review
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{reviews: make(map[uuid.UUID]*Review)}
}

func (m *mockReviewRepo) Create(ctx context.Context, r *Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *mockReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, apperr.NotFound("physician review not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockReviewRepo) ListByPrediction(ctx context.Context, predictionID uuid.UUID) ([]*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Review
	for _, r := range m.reviews {
		if r.PredictionID == predictionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockReviewRepo) ListByPhysician(ctx context.Context, physicianID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Review
	for _, r := range m.reviews {
		if r.PhysicianID == physicianID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

// mockReviewer mimics the prediction side: a prediction can be settled once.
type mockReviewer struct {
	mu      sync.Mutex
	settled map[uuid.UUID]bool
	known   map[uuid.UUID]bool
}

func (m *mockReviewer) ApplyReview(ctx context.Context, id uuid.UUID, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[id] {
		return apperr.NotFound("prediction not found")
	}
	if m.settled[id] {
		return apperr.Validation("invalid review status transition")
	}
	m.settled[id] = true
	return nil
}

func newTestService() (*Service, *mockReviewer) {
	reviewer := &mockReviewer{settled: make(map[uuid.UUID]bool), known: make(map[uuid.UUID]bool)}
	return NewService(newMockRepo(), newMockReviewRepo(), reviewer, nil), reviewer
}

func validPhysician() *Physician {
	return &Physician{
		PhysicianID: "DR-1001",
		Name:        "Dr. Jones",
		Email:       "jones@example.org",
		Username:    "drjones",
		Password:    "correct-horse",
	}
}

func TestService_Create_HashesPassword(t *testing.T) {
	svc, _ := newTestService()

	p := validPhysician()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Password != "" {
		t.Error("expected plaintext password to be cleared")
	}
	if p.HashedPassword == "" || p.HashedPassword == "correct-horse" {
		t.Error("expected password to be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.HashedPassword), []byte("correct-horse")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if !p.IsActive {
		t.Error("expected new physician to be active")
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name   string
		mutate func(*Physician)
	}{
		{"missing physician_id", func(p *Physician) { p.PhysicianID = "" }},
		{"missing name", func(p *Physician) { p.Name = "" }},
		{"missing username", func(p *Physician) { p.Username = "" }},
		{"bad email", func(p *Physician) { p.Email = "not-an-email" }},
		{"short password", func(p *Physician) { p.Password = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPhysician()
			tt.mutate(p)
			err := svc.Create(context.Background(), p)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_Create_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService()

	if err := svc.Create(context.Background(), validPhysician()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := validPhysician()
	dup.PhysicianID = "DR-2002"
	dup.Email = "other@example.org"
	err := svc.Create(context.Background(), dup)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestService_CredentialsByUsername(t *testing.T) {
	svc, _ := newTestService()

	p := validPhysician()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cred, err := svc.CredentialsByUsername(context.Background(), "drjones")
	if err != nil {
		t.Fatalf("CredentialsByUsername: %v", err)
	}
	if !cred.Active {
		t.Error("expected active credential")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.HashedPassword), []byte("correct-horse")); err != nil {
		t.Errorf("credential hash does not verify: %v", err)
	}

	if _, err := svc.CredentialsByUsername(context.Background(), "nobody"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestService_Deactivate(t *testing.T) {
	svc, _ := newTestService()

	p := validPhysician()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Deactivate(context.Background(), p.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	got, _ := svc.Get(context.Background(), p.ID)
	if got.IsActive {
		t.Error("expected physician to be inactive")
	}
	cred, _ := svc.CredentialsByUsername(context.Background(), p.Username)
	if cred.Active {
		t.Error("expected credential to be inactive after deactivation")
	}
}

func TestService_CreateReview_SettlesPrediction(t *testing.T) {
	svc, reviewer := newTestService()

	p := validPhysician()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	predictionID := uuid.New()
	reviewer.known[predictionID] = true

	r := &Review{PredictionID: predictionID, PhysicianID: p.ID, IsCorrect: true}
	if err := svc.CreateReview(context.Background(), r); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if r.ReviewTime.IsZero() {
		t.Error("expected review_time to be stamped")
	}
	if !reviewer.settled[predictionID] {
		t.Error("expected prediction to be settled")
	}

	// Second review of the same prediction is rejected.
	again := &Review{PredictionID: predictionID, PhysicianID: p.ID, IsCorrect: false}
	if err := svc.CreateReview(context.Background(), again); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error on second review, got %v", err)
	}

	reviews, err := svc.ReviewsByPrediction(context.Background(), predictionID)
	if err != nil {
		t.Fatalf("ReviewsByPrediction: %v", err)
	}
	if len(reviews) != 1 {
		t.Errorf("expected 1 stored review, got %d", len(reviews))
	}
}

func TestService_CreateReview_DeactivatedPhysician(t *testing.T) {
	svc, reviewer := newTestService()

	p := validPhysician()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Deactivate(context.Background(), p.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	predictionID := uuid.New()
	reviewer.known[predictionID] = true

	r := &Review{PredictionID: predictionID, PhysicianID: p.ID, IsCorrect: true}
	err := svc.CreateReview(context.Background(), r)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error for deactivated physician, got %v", err)
	}
}

func TestService_CreateReview_UnknownPrediction(t *testing.T) {
	svc, _ := newTestService()

	p := validPhysician()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := &Review{PredictionID: uuid.New(), PhysicianID: p.ID, IsCorrect: true}
	err := svc.CreateReview(context.Background(), r)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}
