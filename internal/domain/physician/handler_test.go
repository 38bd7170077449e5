package physician

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/platform/apperr"
)

func newTestServer() (*echo.Echo, *mockReviewer) {
	e := echo.New()
	e.HTTPErrorHandler = apperr.NewHTTPErrorHandler(zerolog.Nop())
	svc, reviewer := newTestService()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, reviewer
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"physician_id":"DR-1001","name":"Dr. Jones","email":"jones@example.org","username":"drjones","password":"correct-horse"}`

func TestHandler_Create_HidesPassword(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(e, http.MethodPost, "/api/v1/physicians", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") || strings.Contains(rec.Body.String(), "correct-horse") {
		t.Errorf("response leaks credentials: %s", rec.Body.String())
	}
}

func TestHandler_Deactivate(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(e, http.MethodPost, "/api/v1/physicians", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created Physician
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created physician: %v", err)
	}

	rec = doJSON(e, http.MethodDelete, "/api/v1/physicians/"+created.ID.String(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/physicians/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Physician
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal physician: %v", err)
	}
	if got.IsActive {
		t.Error("expected physician to be inactive after delete")
	}
}

func TestHandler_CreateReview(t *testing.T) {
	e, reviewer := newTestServer()

	rec := doJSON(e, http.MethodPost, "/api/v1/physicians", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created Physician
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created physician: %v", err)
	}

	predictionID := uuid.New()
	reviewer.known[predictionID] = true

	body := `{"physician_id":"` + created.ID.String() + `","is_correct":true,"feedback":"Agree with the finding."}`
	rec = doJSON(e, http.MethodPost, "/api/v1/predictions/"+predictionID.String()+"/reviews", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Second review of the same prediction is rejected.
	rec = doJSON(e, http.MethodPost, "/api/v1/predictions/"+predictionID.String()+"/reviews", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on second review, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/predictions/"+predictionID.String()+"/reviews", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var reviews []*Review
	if err := json.Unmarshal(rec.Body.Bytes(), &reviews); err != nil {
		t.Fatalf("unmarshal reviews: %v", err)
	}
	if len(reviews) != 1 {
		t.Errorf("expected 1 review, got %d", len(reviews))
	}
}
