package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/domain/imaging"
	"github.com/medivision/medivision/internal/platform/queue"
)

// ImageCompleter flips the image's processing status when a job finishes.
// The imaging service implements it.
type ImageCompleter interface {
	CompleteProcessing(ctx context.Context, id uuid.UUID, succeeded bool) error
}

// ImageProcessor handles process_image jobs. The analysis itself is a
// placeholder pending the inference backend; the lifecycle bookkeeping
// around it is real.
type ImageProcessor struct {
	images ImageCompleter
	logger zerolog.Logger
	delay  time.Duration
}

func NewImageProcessor(images ImageCompleter, logger zerolog.Logger) *ImageProcessor {
	return &ImageProcessor{images: images, logger: logger, delay: 2 * time.Second}
}

// Register wires the processor's handlers onto the worker.
func (p *ImageProcessor) Register(w *queue.Worker) {
	w.Register(imaging.TaskProcessImage, p.ProcessImage)
	w.RegisterFailure(imaging.TaskProcessImage, p.ProcessImageFailed)
}

func (p *ImageProcessor) ProcessImage(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req imaging.ProcessPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("image_id", req.ImageID.String()).
		Str("file_path", req.FilePath).
		Msg("processing image")

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := p.images.CompleteProcessing(ctx, req.ImageID, true); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":     "completed",
		"image_path": req.FilePath,
		"message":    "Image processed successfully",
	}, nil
}

// ProcessImageFailed runs when a process_image job exhausts its retries.
// It settles the image on the failed status so it does not sit in
// processing forever after the job is dead-lettered.
func (p *ImageProcessor) ProcessImageFailed(ctx context.Context, payload json.RawMessage, jobErr error) error {
	var req imaging.ProcessPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	p.logger.Error().
		Err(jobErr).
		Str("image_id", req.ImageID.String()).
		Msg("image processing exhausted retries, marking image failed")

	return p.images.CompleteProcessing(ctx, req.ImageID, false)
}
