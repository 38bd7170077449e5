package patient

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

const patientCols = `id, patient_id, name, birth_date, gender, phone, email, address,
	emergency_contact, medical_history, allergies, current_medications, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientID, &p.Name, &p.BirthDate, &p.Gender, &p.Phone, &p.Email, &p.Address,
		&p.EmergencyContact, &p.MedicalHistory, &p.Allergies, &p.CurrentMedications, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, patient_id, name, birth_date, gender, phone, email, address,
			emergency_contact, medical_history, allergies, current_medications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.PatientID, p.Name, p.BirthDate, p.Gender, p.Phone, p.Email, p.Address,
		p.EmergencyContact, p.MedicalHistory, p.Allergies, p.CurrentMedications)
	return db.MapError(err, "patient")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "patient")
	}
	return p, nil
}

func (r *repoPG) GetByPatientID(ctx context.Context, patientID string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, patientID))
	if err != nil {
		return nil, db.MapError(err, "patient")
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, birth_date=$3, gender=$4, phone=$5, email=$6, address=$7,
			emergency_contact=$8, medical_history=$9, allergies=$10, current_medications=$11, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.BirthDate, p.Gender, p.Phone, p.Email, p.Address,
		p.EmergencyContact, p.MedicalHistory, p.Allergies, p.CurrentMedications)
	if err != nil {
		return db.MapError(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "patient")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patients WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patients WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient_id"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["name"]; ok {
		query += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		countQuery += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["gender"]; ok {
		query += fmt.Sprintf(` AND gender = $%d`, idx)
		countQuery += fmt.Sprintf(` AND gender = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err, "patient")
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError(err, "patient")
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, db.MapError(err, "patient")
		}
		items = append(items, p)
	}
	return items, total, nil
}
