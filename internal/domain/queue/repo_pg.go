package queue

import (
	"context"
	"errors"

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

const cols = `id, kind, requester_nic, target_key, prescription_id, display_name, status, created_at, updated_at`

func scanItem(row pgx.Row) (*WorkItem, error) {
	var w WorkItem
	err := row.Scan(&w.ID, &w.Kind, &w.RequesterNIC, &w.TargetKey, &w.PrescriptionID,
		&w.DisplayName, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &w, err
}

// Insert relies on the partial unique index work_items_pending_dedup as the
// authoritative admission guard; ON CONFLICT DO NOTHING turns a concurrent
// duplicate into a clean no-row result instead of an error.
func (r *repoPG) Insert(ctx context.Context, item *WorkItem) (Outcome, error) {
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO work_items (kind, requester_nic, target_key, prescription_id, display_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, requester_nic, target_key, COALESCE(prescription_id, 0))
			WHERE status = 'pending'
		DO NOTHING
		RETURNING id, status, created_at, updated_at`,
		item.Kind, item.RequesterNIC, item.TargetKey, item.PrescriptionID, item.DisplayName).
		Scan(&item.ID, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err == nil {
		return OutcomeCreated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	existing, err := scanItem(q.QueryRow(ctx, `
		SELECT `+cols+` FROM work_items
		WHERE kind = $1 AND requester_nic = $2 AND target_key = $3
		  AND COALESCE(prescription_id, 0) = COALESCE($4::bigint, 0)
		  AND status = 'pending'`,
		item.Kind, item.RequesterNIC, item.TargetKey, item.PrescriptionID))
	if err != nil {
		return "", err
	}
	*item = *existing
	return OutcomeAlreadyQueued, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*WorkItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM work_items WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id int64, from, to Status) (*WorkItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `
		UPDATE work_items SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+cols, id, from, to))
}

func (r *repoPG) ListPending(ctx context.Context, kind Kind, targetKey string) ([]*WorkItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+cols+` FROM work_items
		WHERE kind = $1 AND target_key = $2 AND status = 'pending'
		ORDER BY created_at ASC, id ASC`, kind, targetKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*WorkItem
	for rows.Next() {
		w, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (r *repoPG) Latest(ctx context.Context, kind Kind, requesterNIC, targetKey string, prescriptionID *int64) (*WorkItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `
		SELECT `+cols+` FROM work_items
		WHERE kind = $1 AND requester_nic = $2 AND target_key = $3
		  AND ($4::bigint IS NULL OR prescription_id = $4)
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, kind, requesterNIC, targetKey, prescriptionID))
}

func (r *repoPG) ListCompleted(ctx context.Context, kind Kind, targetKey string, limit, offset int) ([]*HistoryItem, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM work_items
		WHERE kind = $1 AND target_key = $2 AND status = 'completed'`,
		kind, targetKey).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx, `
		SELECT w.id, w.kind, w.requester_nic, w.target_key, w.prescription_id,
		       w.display_name, w.status, w.created_at, w.updated_at,
		       p.doctor_name, p.medicines, p.dispensed_at
		FROM work_items w
		LEFT JOIN prescriptions p ON p.id = w.prescription_id
		WHERE w.kind = $1 AND w.target_key = $2 AND w.status = 'completed'
		ORDER BY w.updated_at DESC, w.id DESC
		LIMIT $3 OFFSET $4`, kind, targetKey, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*HistoryItem
	for rows.Next() {
		var h HistoryItem
		if err := rows.Scan(&h.ID, &h.Kind, &h.RequesterNIC, &h.TargetKey, &h.PrescriptionID,
			&h.DisplayName, &h.Status, &h.CreatedAt, &h.UpdatedAt,
			&h.DoctorName, &h.Medicines, &h.DispensedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &h)
	}
	return items, total, rows.Err()
}
