package emergency

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medqueue/medqueue/internal/platform/db"
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
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cols = `id, patient_nic, patient_name, doctor_slmc, doctor_name, notified, granted_at`

func (r *repoPG) Insert(ctx context.Context, g *AccessGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO access_grants (id, patient_nic, patient_name, doctor_slmc, doctor_name, notified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING granted_at`,
		g.ID, g.PatientNIC, g.PatientName, g.DoctorSLMC, g.DoctorName, g.Notified).Scan(&g.GrantedAt)
}

func (r *repoPG) ListByPatient(ctx context.Context, nic string, limit, offset int) ([]*AccessGrant, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_grants WHERE patient_nic = $1`, nic).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+cols+` FROM access_grants
		WHERE patient_nic = $1
		ORDER BY granted_at DESC, id DESC
		LIMIT $2 OFFSET $3`, nic, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var grants []*AccessGrant
	for rows.Next() {
		var g AccessGrant
		if err := rows.Scan(&g.ID, &g.PatientNIC, &g.PatientName, &g.DoctorSLMC,
			&g.DoctorName, &g.Notified, &g.GrantedAt); err != nil {
			return nil, 0, err
		}
		grants = append(grants, &g)
	}
	return grants, total, rows.Err()
}
