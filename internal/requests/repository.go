package requests

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/payables/internal/masterdata"
	"github.com/odyssey-erp/payables/internal/platform/db"
	"github.com/odyssey-erp/payables/internal/shared"
)

// Repository defines request data access outside a transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id uuid.UUID) (Request, error)
	List(ctx context.Context, filter Filter) ([]Request, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	Lock(ctx context.Context, id uuid.UUID) (Request, error)
	HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error)
	Insert(ctx context.Context, req Request) error
	Update(ctx context.Context, req Request) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Entities writes materialised master data in the same transaction.
	Entities() masterdata.Writer
}

// successorIndex is the unique index on previous_attempt_id.
const successorIndex = "master_data_requests_previous_attempt_key"

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{q: tx})
	})
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return getRequest(ctx, r.pool, id, false)
}

func (r *pgRepository) List(ctx context.Context, filter Filter) ([]Request, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.EntityKind != "" {
		args = append(args, string(filter.EntityKind))
		where = append(where, fmt.Sprintf("entity_kind = $%d", len(args)))
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		where = append(where, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	sql := `SELECT ` + requestColumns + ` FROM master_data_requests`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	page := shared.NewPage(filter.Limit, filter.Offset)
	args = append(args, page.Limit, page.Offset)
	sql += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("requests: list: %w", db.Classify(err, nil))
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("requests: list: %w", db.Classify(err, nil))
	}
	return out, nil
}

type pgTxRepository struct {
	q pgx.Tx
}

func (t *pgTxRepository) Lock(ctx context.Context, id uuid.UUID) (Request, error) {
	return getRequest(ctx, t.q, id, true)
}

func (t *pgTxRepository) HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM master_data_requests WHERE previous_attempt_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("requests: successor lookup: %w", db.Classify(err, nil))
	}
	return exists, nil
}

func (t *pgTxRepository) Insert(ctx context.Context, req Request) error {
	payload, err := EncodePayload(req.Payload)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `INSERT INTO master_data_requests
(id, entity_kind, status, requester_id, payload, resubmission_count, previous_attempt_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, string(req.EntityKind), string(req.Status), req.RequesterID, payload,
		req.ResubmissionCount, req.PreviousAttemptID, req.CreatedAt, req.UpdatedAt)
	if db.IsUniqueViolation(err, successorIndex) {
		return ErrAlreadyResubmitted
	}
	if err != nil {
		return fmt.Errorf("requests: insert: %w", db.Classify(err, nil))
	}
	return nil
}

func (t *pgTxRepository) Update(ctx context.Context, req Request) error {
	payload, err := EncodePayload(req.Payload)
	if err != nil {
		return err
	}
	var edits []byte
	if len(req.AdminEdits) > 0 {
		edits = req.AdminEdits
	}
	tag, err := t.q.Exec(ctx, `UPDATE master_data_requests
SET status = $2, reviewer_id = $3, payload = $4, rejection_reason = $5, admin_edits = $6,
    created_entity_id = $7, reviewed_at = $8, updated_at = $9
WHERE id = $1`,
		req.ID, string(req.Status), req.ReviewerID, payload, req.RejectionReason, edits,
		req.CreatedEntityID, req.ReviewedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("requests: update: %w", db.Classify(err, nil))
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (t *pgTxRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM master_data_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("requests: delete: %w", db.Classify(err, nil))
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (t *pgTxRepository) Entities() masterdata.Writer {
	return masterdata.NewWriter(t.q)
}

const requestColumns = `id, entity_kind, status, requester_id, reviewer_id, payload, rejection_reason, admin_edits,
resubmission_count, previous_attempt_id, created_entity_id, reviewed_at, created_at, updated_at`

func getRequest(ctx context.Context, q querier, id uuid.UUID, lock bool) (Request, error) {
	sql := `SELECT ` + requestColumns + ` FROM master_data_requests WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	req, err := scanRequest(q.QueryRow(ctx, sql, id))
	if err != nil {
		return Request{}, db.Classify(err, ErrRequestNotFound)
	}
	return req, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req        Request
		kind       string
		status     string
		reviewerID pgtype.Int8
		payload    []byte
		reason     pgtype.Text
		edits      []byte
		reviewedAt pgtype.Timestamptz
	)
	if err := row.Scan(&req.ID, &kind, &status, &req.RequesterID, &reviewerID, &payload, &reason, &edits,
		&req.ResubmissionCount, &req.PreviousAttemptID, &req.CreatedEntityID, &reviewedAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	req.EntityKind = EntityKind(kind)
	req.Status = Status(status)
	if reviewerID.Valid {
		req.ReviewerID = &reviewerID.Int64
	}
	if reason.Valid {
		req.RejectionReason = &reason.String
	}
	if len(edits) > 0 {
		req.AdminEdits = edits
	}
	if reviewedAt.Valid {
		at := reviewedAt.Time
		req.ReviewedAt = &at
	}
	p, err := DecodePayload(req.EntityKind, payload)
	if err != nil {
		return Request{}, fmt.Errorf("requests: stored payload of %s: %w", req.ID, err)
	}
	req.Payload = p
	return req, nil
}
