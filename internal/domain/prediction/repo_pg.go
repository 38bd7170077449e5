package prediction

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

// =========== AIPrediction Repository ===========

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

const predictionCols = `id, image_id, model_name, model_version, model_type, prediction_class,
	confidence_score, probability, processing_time, review_status, created_at`

func scanPrediction(row pgx.Row) (*AIPrediction, error) {
	var p AIPrediction
	err := row.Scan(&p.ID, &p.ImageID, &p.ModelName, &p.ModelVersion, &p.ModelType, &p.PredictionClass,
		&p.ConfidenceScore, &p.Probability, &p.ProcessingTime, &p.ReviewStatus, &p.CreatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *AIPrediction) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ai_predictions (id, image_id, model_name, model_version, model_type, prediction_class,
			confidence_score, probability, processing_time, review_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.ImageID, p.ModelName, p.ModelVersion, p.ModelType, p.PredictionClass,
		p.ConfidenceScore, p.Probability, p.ProcessingTime, p.ReviewStatus)
	return db.MapError(err, "prediction")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AIPrediction, error) {
	p, err := scanPrediction(r.conn(ctx).QueryRow(ctx, `SELECT `+predictionCols+` FROM ai_predictions WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "prediction")
	}
	return p, nil
}

func (r *repoPG) UpdateReviewStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE ai_predictions SET review_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return db.MapError(err, "prediction")
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "prediction")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*AIPrediction, int, error) {
	query := `SELECT ` + predictionCols + ` FROM ai_predictions WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM ai_predictions WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["image_id"]; ok {
		query += fmt.Sprintf(` AND image_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND image_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["review_status"]; ok {
		query += fmt.Sprintf(` AND review_status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND review_status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["model_name"]; ok {
		query += fmt.Sprintf(` AND model_name = $%d`, idx)
		countQuery += fmt.Sprintf(` AND model_name = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err, "prediction")
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError(err, "prediction")
	}
	defer rows.Close()
	var items []*AIPrediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, 0, db.MapError(err, "prediction")
		}
		items = append(items, p)
	}
	return items, total, nil
}

// =========== BoundingBox Repository ===========

type boxRepoPG struct{ pool *pgxpool.Pool }

func NewBoundingBoxRepoPG(pool *pgxpool.Pool) BoundingBoxRepository {
	return &boxRepoPG{pool: pool}
}

func (r *boxRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const boxCols = `id, prediction_id, x, y, width, height, label, confidence, class_id, is_abnormal, severity_score`

func (r *boxRepoPG) CreateBatch(ctx context.Context, boxes []*BoundingBox) error {
	for _, b := range boxes {
		b.ID = uuid.New()
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO bounding_boxes (id, prediction_id, x, y, width, height, label, confidence, class_id, is_abnormal, severity_score)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			b.ID, b.PredictionID, b.X, b.Y, b.Width, b.Height, b.Label, b.Confidence, b.ClassID, b.IsAbnormal, b.SeverityScore)
		if err != nil {
			return db.MapError(err, "bounding box")
		}
	}
	return nil
}

func (r *boxRepoPG) ListByPrediction(ctx context.Context, predictionID uuid.UUID) ([]*BoundingBox, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+boxCols+` FROM bounding_boxes WHERE prediction_id = $1 ORDER BY id`, predictionID)
	if err != nil {
		return nil, db.MapError(err, "bounding box")
	}
	defer rows.Close()

	var boxes []*BoundingBox
	for rows.Next() {
		var b BoundingBox
		if err := rows.Scan(&b.ID, &b.PredictionID, &b.X, &b.Y, &b.Width, &b.Height,
			&b.Label, &b.Confidence, &b.ClassID, &b.IsAbnormal, &b.SeverityScore); err != nil {
			return nil, db.MapError(err, "bounding box")
		}
		boxes = append(boxes, &b)
	}
	return boxes, nil
}
