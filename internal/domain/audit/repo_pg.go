package audit

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

const auditCols = `id, user_id, user_type, user_name, action, resource_type, resource_id,
	old_values, new_values, ip_address, success, risk_level, timestamp`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.UserID, &e.UserType, &e.UserName, &e.Action, &e.ResourceType, &e.ResourceID,
		&e.OldValues, &e.NewValues, &e.IPAddress, &e.Success, &e.RiskLevel, &e.Timestamp)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, user_type, user_name, action, resource_type, resource_id,
			old_values, new_values, ip_address, success, risk_level, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.UserID, e.UserType, e.UserName, e.Action, e.ResourceType, e.ResourceID,
		e.OldValues, e.NewValues, e.IPAddress, e.Success, e.RiskLevel, e.Timestamp)
	return db.MapError(err, "audit log")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+auditCols+` FROM audit_logs WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "audit log")
	}
	return e, nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error) {
	query := `SELECT ` + auditCols + ` FROM audit_logs WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE 1=1`
	var args []interface{}
	idx := 1

	for _, f := range []struct{ param, col string }{
		{"user_id", "user_id"},
		{"action", "action"},
		{"resource_type", "resource_type"},
		{"resource_id", "resource_id"},
		{"risk_level", "risk_level"},
		{"success", "success"},
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
		return nil, 0, db.MapError(err, "audit log")
	}

	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError(err, "audit log")
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, db.MapError(err, "audit log")
		}
		items = append(items, e)
	}
	return items, total, nil
}
