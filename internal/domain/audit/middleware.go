package audit

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/auth"
)

var actionByMethod = map[string]string{
	"POST":   "create",
	"PUT":    "update",
	"DELETE": "delete",
}

var riskByMethod = map[string]string{
	"POST":   RiskLow,
	"PUT":    RiskMedium,
	"DELETE": RiskHigh,
}

// Middleware records every mutating API request in the audit trail. Reads
// are not logged. Recording failures never fail the request.
func Middleware(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			action, ok := actionByMethod[c.Request().Method]
			if !ok {
				return next(c)
			}

			err := next(c)

			e := &Entry{
				Action:       action,
				ResourceType: resourceFromPath(c.Path()),
				Success:      err == nil,
				RiskLevel:    riskByMethod[c.Request().Method],
			}
			if id := c.Param("id"); id != "" {
				e.ResourceID = &id
			}
			if p := auth.PrincipalFromContext(c.Request().Context()); p != nil {
				e.UserID = &p.Subject
				e.UserType = &p.Role
			}
			if ip := c.RealIP(); ip != "" {
				e.IPAddress = &ip
			}
			if err != nil && apperr.KindOf(err) == apperr.KindUnauthorized {
				e.RiskLevel = RiskHigh
			}

			svc.RecordAsync(c.Request().Context(), e)
			return err
		}
	}
}

// resourceFromPath extracts the collection segment from a versioned API
// path, e.g. /api/v1/images/:id/process -> images.
func resourceFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "v") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}
