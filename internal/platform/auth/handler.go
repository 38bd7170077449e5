package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/apperr"
)

type Handler struct {
	verifier CredentialVerifier
	issuer   *TokenIssuer
}

func NewHandler(verifier CredentialVerifier, issuer *TokenIssuer) *Handler {
	return &Handler{verifier: verifier, issuer: issuer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login accepts form-encoded credentials and returns a bearer token.
func (h *Handler) Login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		return apperr.Validation("username and password are required")
	}

	principal, err := h.verifier.Verify(c.Request().Context(), username, password)
	if err != nil {
		return err
	}

	token, err := h.issuer.Issue(principal.Subject, principal.Role)
	if err != nil {
		return apperr.Internal(err, "issue token")
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.issuer.TTL().Seconds()),
	})
}

// Me returns the subject resolved from the presented token.
func (h *Handler) Me(c echo.Context) error {
	p := PrincipalFromContext(c.Request().Context())
	if p == nil {
		return apperr.Unauthorized("not authenticated")
	}
	return c.JSON(http.StatusOK, p)
}
