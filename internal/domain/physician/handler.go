package physician

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
	api.POST("/physicians", h.Create)
	api.GET("/physicians", h.List)
	api.GET("/physicians/:id", h.Get)
	api.PUT("/physicians/:id", h.Update)
	api.DELETE("/physicians/:id", h.Deactivate)
	api.GET("/physicians/:id/reviews", h.ListReviewsByPhysician)

	// Reviews hang off the prediction they settle.
	api.POST("/predictions/:id/reviews", h.CreateReview)
	api.GET("/predictions/:id/reviews", h.ListReviewsByPrediction)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var p Physician
	if err := c.Bind(&p); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		p, perr := h.svc.GetByPhysicianID(c.Request().Context(), c.Param("id"))
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
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Physician
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

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"specialty", "department", "is_active"} {
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

func (h *Handler) CreateReview(c echo.Context) error {
	predictionID, err := parseID(c)
	if err != nil {
		return err
	}
	var r Review
	if err := c.Bind(&r); err != nil {
		return apperr.Validation("invalid request body")
	}
	r.PredictionID = predictionID
	if err := h.svc.CreateReview(c.Request().Context(), &r); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListReviewsByPrediction(c echo.Context) error {
	predictionID, err := parseID(c)
	if err != nil {
		return err
	}
	reviews, err := h.svc.ReviewsByPrediction(c.Request().Context(), predictionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviews)
}

func (h *Handler) ListReviewsByPhysician(c echo.Context) error {
	physicianID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	reviews, total, err := h.svc.ReviewsByPhysician(c.Request().Context(), physicianID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reviews, total, pg.Limit, pg.Offset))
}
