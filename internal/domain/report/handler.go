package report

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reports", h.Create)
	api.GET("/reports", h.List)
	api.GET("/reports/:id", h.Get)
	api.PUT("/reports/:id", h.Update)
	api.PUT("/reports/:id/status", h.UpdateStatus)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid report id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var r DiagnosticReport
	if err := c.Bind(&r); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var r DiagnosticReport
	if err := c.Bind(&r); err != nil {
		return apperr.Validation("invalid request body")
	}
	r.ID = id
	if err := h.svc.Update(c.Request().Context(), &r); err != nil {
		return err
	}
	updated, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	if body.Status == "" {
		return apperr.Validation("status is required")
	}
	r, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"patient_id", "physician_id", "status", "urgency_level", "is_critical"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
