package report

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

const reportCols = `id, patient_id, physician_id, image_id, title, findings, impression,
	recommendations, primary_diagnosis, icd_codes, urgency_level, report_status,
	is_critical, created_at, preliminary_at, finalized_at, amended_at`

func scanReport(row pgx.Row) (*DiagnosticReport, error) {
	var rep DiagnosticReport
	err := row.Scan(&rep.ID, &rep.PatientID, &rep.PhysicianID, &rep.ImageID, &rep.Title, &rep.Findings, &rep.Impression,
		&rep.Recommendations, &rep.PrimaryDiagnosis, &rep.ICDCodes, &rep.UrgencyLevel, &rep.ReportStatus,
		&rep.IsCritical, &rep.CreatedAt, &rep.PreliminaryAt, &rep.FinalizedAt, &rep.AmendedAt)
	return &rep, err
}

func (r *repoPG) Create(ctx context.Context, rep *DiagnosticReport) error {
	rep.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO diagnostic_reports (id, patient_id, physician_id, image_id, title, findings, impression,
			recommendations, primary_diagnosis, icd_codes, urgency_level, report_status, is_critical, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rep.ID, rep.PatientID, rep.PhysicianID, rep.ImageID, rep.Title, rep.Findings, rep.Impression,
		rep.Recommendations, rep.PrimaryDiagnosis, rep.ICDCodes, rep.UrgencyLevel, rep.ReportStatus, rep.IsCritical, rep.CreatedAt)
	return db.MapError(err, "diagnostic report")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*DiagnosticReport, error) {
	rep, err := scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM diagnostic_reports WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "diagnostic report")
	}
	return rep, nil
}

func (r *repoPG) Update(ctx context.Context, rep *DiagnosticReport) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE diagnostic_reports SET title=$2, findings=$3, impression=$4, recommendations=$5,
			primary_diagnosis=$6, icd_codes=$7, urgency_level=$8, report_status=$9, is_critical=$10,
			preliminary_at=$11, finalized_at=$12, amended_at=$13
		WHERE id = $1`,
		rep.ID, rep.Title, rep.Findings, rep.Impression, rep.Recommendations,
		rep.PrimaryDiagnosis, rep.ICDCodes, rep.UrgencyLevel, rep.ReportStatus, rep.IsCritical,
		rep.PreliminaryAt, rep.FinalizedAt, rep.AmendedAt)
	if err != nil {
		return db.MapError(err, "diagnostic report")
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "diagnostic report")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*DiagnosticReport, int, error) {
	query := `SELECT ` + reportCols + ` FROM diagnostic_reports WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM diagnostic_reports WHERE 1=1`
	var args []interface{}
	idx := 1

	for _, f := range []struct{ param, col string }{
		{"patient_id", "patient_id"},
		{"physician_id", "physician_id"},
		{"status", "report_status"},
		{"urgency_level", "urgency_level"},
		{"is_critical", "is_critical"},
	} {
		if p, ok := params[f.param]; ok {
			query += fmt.Sprintf(` AND %s = $%d`, f.col, idx)
			countQuery += fmt.Sprintf(` AND %s = $%d`, f.col, idx)
			args = append(args, p)
			idx++
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err, "diagnostic report")
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError(err, "diagnostic report")
	}
	defer rows.Close()
	var items []*DiagnosticReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, db.MapError(err, "diagnostic report")
		}
		items = append(items, rep)
	}
	return items, total, nil
}
