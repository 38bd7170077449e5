package patient

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

type mockRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(ctx context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.patients {
		if existing.PatientID == p.PatientID {
			return apperr.Conflict("patient already exists")
		}
	}
	p.ID = uuid.New()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByPatientID(ctx context.Context, patientID string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.PatientID == patientID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (m *mockRepo) Update(ctx context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.patients[p.ID]
	if !ok {
		return apperr.NotFound("patient not found")
	}
	cp := *p
	cp.PatientID = existing.PatientID
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Patient
	for _, p := range m.patients {
		if v, ok := params["name"]; ok && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(v)) {
			continue
		}
		if v, ok := params["patient_id"]; ok && p.PatientID != v {
			continue
		}
		cp := *p
		items = append(items, &cp)
	}
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func strPtr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{PatientID: "P-1001", Name: "Ada Example", Gender: strPtr("female")}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected surrogate id to be assigned")
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	tests := []struct {
		name string
		p    *Patient
	}{
		{"missing patient_id", &Patient{Name: "No MRN"}},
		{"missing name", &Patient{PatientID: "P-1"}},
		{"invalid gender", &Patient{PatientID: "P-1", Name: "X", Gender: strPtr("robot")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.p)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_Create_DuplicatePatientID(t *testing.T) {
	svc := NewService(newMockRepo())

	first := &Patient{PatientID: "P-1001", Name: "Ada Example"}
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := &Patient{PatientID: "P-1001", Name: "Someone Else"}
	err := svc.Create(context.Background(), dup)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected conflict for duplicate patient_id, got %v", err)
	}
}

func TestService_Update_ImmutableBusinessKey(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{PatientID: "P-1001", Name: "Ada Example"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	changed := &Patient{ID: p.ID, PatientID: "P-9999", Name: "Ada Example"}
	err := svc.Update(context.Background(), changed)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error for changed patient_id, got %v", err)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())

	err := svc.Update(context.Background(), &Patient{ID: uuid.New(), Name: "Ghost"})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestService_Search(t *testing.T) {
	svc := NewService(newMockRepo())

	for _, p := range []*Patient{
		{PatientID: "P-1", Name: "Ada Example"},
		{PatientID: "P-2", Name: "Grace Sample"},
	} {
		if err := svc.Create(context.Background(), p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, total, err := svc.Search(context.Background(), map[string]string{"name": "ada"}, 20, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 match, got total=%d len=%d", total, len(items))
	}
	if items[0].PatientID != "P-1" {
		t.Errorf("unexpected match: %+v", items[0])
	}
}
