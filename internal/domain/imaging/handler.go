package imaging

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
	api.POST("/images", h.Create)
	api.GET("/images", h.List)
	api.GET("/images/:id", h.Get)
	api.GET("/images/:id/status", h.GetStatus)
	api.PUT("/images/:id/status", h.UpdateStatus)
	api.POST("/images/:id/process", h.Process)
	api.GET("/images/:id/metadata", h.GetMetadata)
	api.PUT("/images/:id/metadata", h.SetMetadata)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var img MedicalImage
	if err := c.Bind(&img); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &img); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, img)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		img, ierr := h.svc.GetByImageID(c.Request().Context(), c.Param("id"))
		if ierr != nil {
			return ierr
		}
		return c.JSON(http.StatusOK, img)
	}
	img, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, img)
}

func (h *Handler) GetStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	img, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":                      img.ID,
		"image_id":                img.ImageID,
		"processing_status":       img.ProcessingStatus,
		"processing_started_at":   img.ProcessingStartedAt,
		"processing_completed_at": img.ProcessingCompletedAt,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.Status == "" {
		return apperr.Validation("status is required")
	}
	img, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, img)
}

func (h *Handler) Process(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	jobID, img, err := h.svc.Process(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"task_id":           jobID,
		"image_id":          img.ImageID,
		"processing_status": img.ProcessingStatus,
	})
}

func (h *Handler) GetMetadata(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	meta, err := h.svc.GetMetadata(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) SetMetadata(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var meta ImageMetadata
	if err := c.Bind(&meta); err != nil {
		return apperr.Validation("invalid request body")
	}
	meta.ImageID = id
	if err := h.svc.SetMetadata(c.Request().Context(), &meta); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"patient_id", "status", "study_id"} {
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
