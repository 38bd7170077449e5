package imaging

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// TaskProcessImage is the job name dispatched when an image is submitted
// for processing.
const TaskProcessImage = "process_image"

// ProcessPayload is the JSON body of a process_image job.
type ProcessPayload struct {
	ImageID  uuid.UUID `json:"image_id"`
	FilePath string    `json:"file_path"`
}

// PatientResolver confirms the referenced patient exists before an image is
// accepted. The patient service implements it.
type PatientResolver interface {
	PatientExists(ctx context.Context, id uuid.UUID) error
}

// Dispatcher hands jobs to the queue. The queue client implements it.
type Dispatcher interface {
	Enqueue(ctx context.Context, name string, payload interface{}) (string, error)
}

// Limits bound what uploads are accepted.
type Limits struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

type Service struct {
	repo       Repository
	metadata   MetadataRepository
	patients   PatientResolver
	dispatcher Dispatcher
	limits     Limits
}

func NewService(repo Repository, metadata MetadataRepository, patients PatientResolver, dispatcher Dispatcher, limits Limits) *Service {
	return &Service{repo: repo, metadata: metadata, patients: patients, dispatcher: dispatcher, limits: limits}
}

func (s *Service) extensionAllowed(fileName string) bool {
	if len(s.limits.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	for _, allowed := range s.limits.AllowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

func (s *Service) Create(ctx context.Context, img *MedicalImage) error {
	if img.ImageID == "" {
		return apperr.Validation("image_id is required")
	}
	if img.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if img.FilePath == "" || img.FileName == "" {
		return apperr.Validation("file_path and file_name are required")
	}
	if !s.extensionAllowed(img.FileName) {
		return apperr.Validation("file extension not allowed: %s", filepath.Ext(img.FileName))
	}
	if s.limits.MaxFileSize > 0 && img.FileSize != nil && *img.FileSize > s.limits.MaxFileSize {
		return apperr.Validation("file size %d exceeds limit of %d bytes", *img.FileSize, s.limits.MaxFileSize)
	}

	if err := s.patients.PatientExists(ctx, img.PatientID); err != nil {
		return err
	}

	if existing, err := s.repo.GetByImageID(ctx, img.ImageID); err == nil && existing != nil {
		return apperr.Conflict("image %s already exists", img.ImageID)
	} else if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}

	img.ProcessingStatus = StatusUploaded
	img.UploadTime = time.Now().UTC()
	img.ProcessingStartedAt = nil
	img.ProcessingCompletedAt = nil
	return s.repo.Create(ctx, img)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MedicalImage, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByImageID(ctx context.Context, imageID string) (*MedicalImage, error) {
	return s.repo.GetByImageID(ctx, imageID)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*MedicalImage, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// UpdateStatus applies a lifecycle transition, stamping the processing
// timestamps as the image enters and leaves the processing state.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string) (*MedicalImage, error) {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(img.ProcessingStatus, newStatus); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	img.ProcessingStatus = newStatus
	switch newStatus {
	case StatusProcessing:
		img.ProcessingStartedAt = &now
		img.ProcessingCompletedAt = nil
	case StatusCompleted, StatusFailed:
		img.ProcessingCompletedAt = &now
	case StatusUploaded:
		// Correction path: clear the previous attempt's timestamps.
		img.ProcessingStartedAt = nil
		img.ProcessingCompletedAt = nil
	}

	if err := s.repo.Update(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// Process transitions the image to processing and enqueues the analysis
// job. Returns the job ID for result polling.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (string, *MedicalImage, error) {
	img, err := s.UpdateStatus(ctx, id, StatusProcessing)
	if err != nil {
		return "", nil, err
	}

	jobID, err := s.dispatcher.Enqueue(ctx, TaskProcessImage, ProcessPayload{
		ImageID:  img.ID,
		FilePath: img.FilePath,
	})
	if err != nil {
		// Enqueue failed, put the image back so it can be resubmitted.
		img.ProcessingStatus = StatusUploaded
		img.ProcessingStartedAt = nil
		_ = s.repo.Update(ctx, img)
		return "", nil, apperr.Internal(err, "dispatch processing job")
	}
	return jobID, img, nil
}

// CompleteProcessing is called by the worker when a job finishes. It is
// idempotent under redelivery: an image already in the target state is left
// untouched.
func (s *Service) CompleteProcessing(ctx context.Context, id uuid.UUID, succeeded bool) error {
	target := StatusCompleted
	if !succeeded {
		target = StatusFailed
	}

	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if img.ProcessingStatus == target {
		return nil
	}
	_, err = s.UpdateStatus(ctx, id, target)
	return err
}

// SetMetadata stores or replaces the acquisition metadata for an image.
func (s *Service) SetMetadata(ctx context.Context, meta *ImageMetadata) error {
	if meta.ImageID == uuid.Nil {
		return apperr.Validation("image_id is required")
	}
	if _, err := s.repo.GetByID(ctx, meta.ImageID); err != nil {
		return err
	}
	return s.metadata.Upsert(ctx, meta)
}

func (s *Service) GetMetadata(ctx context.Context, imageID uuid.UUID) (*ImageMetadata, error) {
	return s.metadata.GetByImageID(ctx, imageID)
}

// ImageExists reports whether an image row exists, for services holding
// foreign references to images.
func (s *Service) ImageExists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetByID(ctx, id)
	return err
}
