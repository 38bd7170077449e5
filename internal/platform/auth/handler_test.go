package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/platform/apperr"
)

func newTestServer(t *testing.T) (*echo.Echo, *TokenIssuer) {
	t.Helper()
	issuer := newTestIssuer(t, 30*time.Minute)

	e := echo.New()
	e.HTTPErrorHandler = apperr.NewHTTPErrorHandler(zerolog.Nop())
	e.Use(Middleware(issuer, DefaultSkipper))

	api := e.Group("/api/v1")
	h := NewHandler(VerifierChain{&StaticVerifier{Username: "admin", Password: "admin123"}}, issuer)
	h.RegisterRoutes(api)
	return e, issuer
}

func postLogin(e *echo.Echo, username, password string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	e, issuer := newTestServer(t)

	rec := postLogin(e, "admin", "admin123")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("expected token_type bearer, got %s", resp.TokenType)
	}
	if resp.ExpiresIn != int((30 * time.Minute).Seconds()) {
		t.Errorf("expected expires_in 1800, got %d", resp.ExpiresIn)
	}

	claims, err := issuer.Parse(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token failed to parse: %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("expected subject admin, got %s", claims.Subject)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postLogin(e, "admin", "nope")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postLogin(e, "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestMe(t *testing.T) {
	e, issuer := newTestServer(t)

	token, err := issuer.Issue("admin", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if p.Subject != "admin" || p.Role != "admin" {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestMe_NoToken(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMe_GarbageToken(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
