package patient

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
	api.POST("/patients", h.Create)
	api.GET("/patients", h.List)
	api.GET("/patients/:id", h.Get)
	api.PUT("/patients/:id", h.Update)
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// Fall back to the business identifier for convenience.
		p, perr := h.svc.GetByPatientID(c.Request().Context(), c.Param("id"))
		if perr != nil {
			return perr
		}
		return c.JSON(http.StatusOK, p)
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return apperr.Validation("invalid request body")
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return err
	}
	updated, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"patient_id", "name", "gender"} {
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
