package imaging

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/platform/apperr"
)

func newHandlerTestServer(t *testing.T) (*echo.Echo, uuid.UUID) {
	t.Helper()
	repo := newMockRepo()
	patientID := uuid.New()
	patients := &mockPatients{known: map[uuid.UUID]bool{patientID: true}}
	svc := NewService(repo, newMockMetadataRepo(), patients, &mockDispatcher{}, testLimits())

	e := echo.New()
	e.HTTPErrorHandler = apperr.NewHTTPErrorHandler(zerolog.Nop())
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, patientID
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createImageHTTP(t *testing.T, e *echo.Echo, patientID uuid.UUID) *MedicalImage {
	t.Helper()
	body := fmt.Sprintf(`{"image_id":"IMG-1","patient_id":%q,"file_path":"/data/scan.dcm","file_name":"scan.dcm"}`, patientID)
	rec := doJSON(e, http.MethodPost, "/api/v1/images", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var img MedicalImage
	if err := json.Unmarshal(rec.Body.Bytes(), &img); err != nil {
		t.Fatalf("unmarshal image: %v", err)
	}
	return &img
}

func TestHandler_CreateAndProcess(t *testing.T) {
	e, patientID := newHandlerTestServer(t)
	img := createImageHTTP(t, e, patientID)

	rec := doJSON(e, http.MethodPost, "/api/v1/images/"+img.ID.String()+"/process", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["task_id"] == "" || resp["task_id"] == nil {
		t.Error("expected task_id in response")
	}
	if resp["processing_status"] != StatusProcessing {
		t.Errorf("expected processing, got %v", resp["processing_status"])
	}
}

func TestHandler_UpdateStatus_Invalid(t *testing.T) {
	e, patientID := newHandlerTestServer(t)
	img := createImageHTTP(t, e, patientID)

	rec := doJSON(e, http.MethodPut, "/api/v1/images/"+img.ID.String()+"/status", `{"status":"completed"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for uploaded -> completed, got %d", rec.Code)
	}
}

func TestHandler_GetStatus(t *testing.T) {
	e, patientID := newHandlerTestServer(t)
	img := createImageHTTP(t, e, patientID)

	rec := doJSON(e, http.MethodGet, "/api/v1/images/"+img.ID.String()+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["processing_status"] != StatusUploaded {
		t.Errorf("expected uploaded, got %v", resp["processing_status"])
	}
}

func TestHandler_Metadata_RoundTrip(t *testing.T) {
	e, patientID := newHandlerTestServer(t)
	img := createImageHTTP(t, e, patientID)

	rec := doJSON(e, http.MethodPut, "/api/v1/images/"+img.ID.String()+"/metadata", `{"modality":"CR","body_part":"CHEST"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/images/"+img.ID.String()+"/metadata", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var meta ImageMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta.Modality == nil || *meta.Modality != "CR" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	e, _ := newHandlerTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/images/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
