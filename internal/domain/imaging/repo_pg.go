package imaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medivision/medivision/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== MedicalImage Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const imageCols = `id, image_id, patient_id, study_id, series_id, file_path, file_name,
	file_size, file_hash, mime_type, processing_status, upload_time,
	processing_started_at, processing_completed_at`

func scanImage(row pgx.Row) (*MedicalImage, error) {
	var img MedicalImage
	err := row.Scan(&img.ID, &img.ImageID, &img.PatientID, &img.StudyID, &img.SeriesID, &img.FilePath, &img.FileName,
		&img.FileSize, &img.FileHash, &img.MimeType, &img.ProcessingStatus, &img.UploadTime,
		&img.ProcessingStartedAt, &img.ProcessingCompletedAt)
	return &img, err
}

func (r *repoPG) Create(ctx context.Context, img *MedicalImage) error {
	img.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_images (id, image_id, patient_id, study_id, series_id, file_path, file_name,
			file_size, file_hash, mime_type, processing_status, upload_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		img.ID, img.ImageID, img.PatientID, img.StudyID, img.SeriesID, img.FilePath, img.FileName,
		img.FileSize, img.FileHash, img.MimeType, img.ProcessingStatus, img.UploadTime)
	return db.MapError(err, "medical image")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalImage, error) {
	img, err := scanImage(r.conn(ctx).QueryRow(ctx, `SELECT `+imageCols+` FROM medical_images WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "medical image")
	}
	return img, nil
}

func (r *repoPG) GetByImageID(ctx context.Context, imageID string) (*MedicalImage, error) {
	img, err := scanImage(r.conn(ctx).QueryRow(ctx, `SELECT `+imageCols+` FROM medical_images WHERE image_id = $1`, imageID))
	if err != nil {
		return nil, db.MapError(err, "medical image")
	}
	return img, nil
}

func (r *repoPG) Update(ctx context.Context, img *MedicalImage) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_images SET study_id=$2, series_id=$3, file_path=$4, file_name=$5,
			file_size=$6, file_hash=$7, mime_type=$8, processing_status=$9,
			processing_started_at=$10, processing_completed_at=$11
		WHERE id = $1`,
		img.ID, img.StudyID, img.SeriesID, img.FilePath, img.FileName,
		img.FileSize, img.FileHash, img.MimeType, img.ProcessingStatus,
		img.ProcessingStartedAt, img.ProcessingCompletedAt)
	if err != nil {
		return db.MapError(err, "medical image")
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "medical image")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*MedicalImage, int, error) {
	query := `SELECT ` + imageCols + ` FROM medical_images WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM medical_images WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient_id"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND processing_status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND processing_status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["study_id"]; ok {
		query += fmt.Sprintf(` AND study_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND study_id = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err, "medical image")
	}

	query += fmt.Sprintf(` ORDER BY upload_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError(err, "medical image")
	}
	defer rows.Close()
	var items []*MedicalImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, 0, db.MapError(err, "medical image")
		}
		items = append(items, img)
	}
	return items, total, nil
}

// =========== ImageMetadata Repository ===========

type metadataRepoPG struct{ pool *pgxpool.Pool }

func NewMetadataRepoPG(pool *pgxpool.Pool) MetadataRepository {
	return &metadataRepoPG{pool: pool}
}

func (r *metadataRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const metadataCols = `id, image_id, modality, body_part, view_position, study_description,
	series_description, pixel_spacing, image_rows, image_columns, manufacturer, model_name,
	software_version, acquisition_date, acquisition_time, kvp, exposure_time, institution_name`

func scanMetadata(row pgx.Row) (*ImageMetadata, error) {
	var m ImageMetadata
	err := row.Scan(&m.ID, &m.ImageID, &m.Modality, &m.BodyPart, &m.ViewPosition, &m.StudyDescription,
		&m.SeriesDescription, &m.PixelSpacing, &m.ImageRows, &m.ImageColumns, &m.Manufacturer, &m.ModelName,
		&m.SoftwareVersion, &m.AcquisitionDate, &m.AcquisitionTime, &m.KVP, &m.ExposureTime, &m.InstitutionName)
	return &m, err
}

func (r *metadataRepoPG) Upsert(ctx context.Context, meta *ImageMetadata) error {
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO image_metadata (id, image_id, modality, body_part, view_position, study_description,
			series_description, pixel_spacing, image_rows, image_columns, manufacturer, model_name,
			software_version, acquisition_date, acquisition_time, kvp, exposure_time, institution_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (image_id) DO UPDATE SET
			modality=EXCLUDED.modality, body_part=EXCLUDED.body_part, view_position=EXCLUDED.view_position,
			study_description=EXCLUDED.study_description, series_description=EXCLUDED.series_description,
			pixel_spacing=EXCLUDED.pixel_spacing, image_rows=EXCLUDED.image_rows, image_columns=EXCLUDED.image_columns,
			manufacturer=EXCLUDED.manufacturer, model_name=EXCLUDED.model_name,
			software_version=EXCLUDED.software_version, acquisition_date=EXCLUDED.acquisition_date,
			acquisition_time=EXCLUDED.acquisition_time, kvp=EXCLUDED.kvp,
			exposure_time=EXCLUDED.exposure_time, institution_name=EXCLUDED.institution_name`,
		meta.ID, meta.ImageID, meta.Modality, meta.BodyPart, meta.ViewPosition, meta.StudyDescription,
		meta.SeriesDescription, meta.PixelSpacing, meta.ImageRows, meta.ImageColumns, meta.Manufacturer, meta.ModelName,
		meta.SoftwareVersion, meta.AcquisitionDate, meta.AcquisitionTime, meta.KVP, meta.ExposureTime, meta.InstitutionName)
	return db.MapError(err, "image metadata")
}

func (r *metadataRepoPG) GetByImageID(ctx context.Context, imageID uuid.UUID) (*ImageMetadata, error) {
	m, err := scanMetadata(r.conn(ctx).QueryRow(ctx, `SELECT `+metadataCols+` FROM image_metadata WHERE image_id = $1`, imageID))
	if err != nil {
		return nil, db.MapError(err, "image metadata")
	}
	return m, nil
}
