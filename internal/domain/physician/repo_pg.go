package physician

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

// =========== Physician Repository ===========

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

const physicianCols = `id, physician_id, name, email, username, hashed_password, specialty,
	sub_specialty, license_number, department, is_active, created_at, updated_at`

func scanPhysician(row pgx.Row) (*Physician, error) {
	var p Physician
	err := row.Scan(&p.ID, &p.PhysicianID, &p.Name, &p.Email, &p.Username, &p.HashedPassword, &p.Specialty,
		&p.SubSpecialty, &p.LicenseNumber, &p.Department, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Physician) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO physicians (id, physician_id, name, email, username, hashed_password, specialty,
			sub_specialty, license_number, department, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.PhysicianID, p.Name, p.Email, p.Username, p.HashedPassword, p.Specialty,
		p.SubSpecialty, p.LicenseNumber, p.Department, p.IsActive)
	return db.MapError(err, "physician")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Physician, error) {
	p, err := scanPhysician(r.conn(ctx).QueryRow(ctx, `SELECT `+physicianCols+` FROM physicians WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "physician")
	}
	return p, nil
}

func (r *repoPG) GetByPhysicianID(ctx context.Context, physicianID string) (*Physician, error) {
	p, err := scanPhysician(r.conn(ctx).QueryRow(ctx, `SELECT `+physicianCols+` FROM physicians WHERE physician_id = $1`, physicianID))
	if err != nil {
		return nil, db.MapError(err, "physician")
	}
	return p, nil
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*Physician, error) {
	p, err := scanPhysician(r.conn(ctx).QueryRow(ctx, `SELECT `+physicianCols+` FROM physicians WHERE username = $1`, username))
	if err != nil {
		return nil, db.MapError(err, "physician")
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Physician) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE physicians SET name=$2, email=$3, specialty=$4, sub_specialty=$5,
			license_number=$6, department=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Email, p.Specialty, p.SubSpecialty, p.LicenseNumber, p.Department)
	if err != nil {
		return db.MapError(err, "physician")
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "physician")
	}
	return nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE physicians SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return db.MapError(err, "physician")
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "physician")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Physician, int, error) {
	query := `SELECT ` + physicianCols + ` FROM physicians WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM physicians WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["specialty"]; ok {
		query += fmt.Sprintf(` AND specialty = $%d`, idx)
		countQuery += fmt.Sprintf(` AND specialty = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["department"]; ok {
		query += fmt.Sprintf(` AND department = $%d`, idx)
		countQuery += fmt.Sprintf(` AND department = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["is_active"]; ok {
		query += fmt.Sprintf(` AND is_active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, p == "true")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err, "physician")
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError(err, "physician")
	}
	defer rows.Close()
	var items []*Physician
	for rows.Next() {
		p, err := scanPhysician(rows)
		if err != nil {
			return nil, 0, db.MapError(err, "physician")
		}
		items = append(items, p)
	}
	return items, total, nil
}

// =========== Review Repository ===========

type reviewRepoPG struct{ pool *pgxpool.Pool }

func NewReviewRepoPG(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepoPG{pool: pool}
}

func (r *reviewRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const reviewCols = `id, prediction_id, physician_id, is_correct, confidence_in_ai,
	corrected_diagnosis, feedback, time_spent_minutes, review_time`

func scanReview(row pgx.Row) (*Review, error) {
	var rv Review
	err := row.Scan(&rv.ID, &rv.PredictionID, &rv.PhysicianID, &rv.IsCorrect, &rv.ConfidenceInAI,
		&rv.CorrectedDiagnosis, &rv.Feedback, &rv.TimeSpentMinutes, &rv.ReviewTime)
	return &rv, err
}

func (r *reviewRepoPG) Create(ctx context.Context, rv *Review) error {
	rv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO physician_reviews (id, prediction_id, physician_id, is_correct, confidence_in_ai,
			corrected_diagnosis, feedback, time_spent_minutes, review_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rv.ID, rv.PredictionID, rv.PhysicianID, rv.IsCorrect, rv.ConfidenceInAI,
		rv.CorrectedDiagnosis, rv.Feedback, rv.TimeSpentMinutes, rv.ReviewTime)
	return db.MapError(err, "physician review")
}

func (r *reviewRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	rv, err := scanReview(r.conn(ctx).QueryRow(ctx, `SELECT `+reviewCols+` FROM physician_reviews WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "physician review")
	}
	return rv, nil
}

func (r *reviewRepoPG) ListByPrediction(ctx context.Context, predictionID uuid.UUID) ([]*Review, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reviewCols+` FROM physician_reviews WHERE prediction_id = $1 ORDER BY review_time DESC`, predictionID)
	if err != nil {
		return nil, db.MapError(err, "physician review")
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, db.MapError(err, "physician review")
		}
		reviews = append(reviews, rv)
	}
	return reviews, nil
}

func (r *reviewRepoPG) ListByPhysician(ctx context.Context, physicianID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM physician_reviews WHERE physician_id = $1`, physicianID).Scan(&total); err != nil {
		return nil, 0, db.MapError(err, "physician review")
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reviewCols+` FROM physician_reviews WHERE physician_id = $1 ORDER BY review_time DESC LIMIT $2 OFFSET $3`,
		physicianID, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err, "physician review")
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, db.MapError(err, "physician review")
		}
		reviews = append(reviews, rv)
	}
	return reviews, total, nil
}
