package ap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/payables/internal/platform/db"
)

// Repository defines ledger data access outside a transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	// ListReprojectable returns ids greater than after, in id order, of
	// unarchived invoices whose status the projector may rewrite. Overdue
	// invoices are included only once they carry an approved payment.
	ListReprojectable(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

// TxRepository defines operations within a transaction. Lock* methods take a
// row lock held until the transaction ends.
type TxRepository interface {
	LockInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	LockPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)

	InsertPayment(ctx context.Context, payment Payment) error
	UpdatePayment(ctx context.Context, payment Payment) error
	UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error
}

// pendingPaymentIndex is the partial unique index allowing one pending payment per invoice.
const pendingPaymentIndex = "payments_one_pending_per_invoice"

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

func (r *pgRepository) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return getInvoice(ctx, r.pool, id, false)
}

func (r *pgRepository) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return getPayment(ctx, r.pool, id, false)
}

func (r *pgRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	return listPayments(ctx, r.pool, invoiceID)
}

func (r *pgRepository) ListReprojectable(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id FROM invoices i
WHERE NOT i.is_archived AND i.id > $1
  AND (i.status IN ('unpaid', 'partial', 'paid')
       OR (i.status = 'overdue' AND EXISTS (
           SELECT 1 FROM payments p WHERE p.invoice_id = i.id AND p.status = 'approved')))
ORDER BY i.id
LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("ap: list reprojectable: %w", db.Classify(err, nil))
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ap: scan reprojectable: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ap: list reprojectable: %w", db.Classify(err, nil))
	}
	return ids, nil
}

type pgTxRepository struct {
	q pgx.Tx
}

func (t *pgTxRepository) LockInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return getInvoice(ctx, t.q, id, true)
}

func (t *pgTxRepository) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return getPayment(ctx, t.q, id, false)
}

func (t *pgTxRepository) LockPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return getPayment(ctx, t.q, id, true)
}

func (t *pgTxRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	return listPayments(ctx, t.q, invoiceID)
}

func (t *pgTxRepository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.q.Exec(ctx, `INSERT INTO payments
(id, invoice_id, amount_paid, payment_date, status, tds_amount_applied, tds_rounded, created_by, approved_by, approved_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		p.ID, p.InvoiceID, p.AmountPaid, p.PaymentDate, string(p.Status), p.TDSAmountApplied, p.TDSRounded,
		p.CreatedBy, p.ApprovedBy, p.ApprovedAt, p.CreatedAt)
	if db.IsUniqueViolation(err, pendingPaymentIndex) {
		return ErrPendingPaymentExists
	}
	if err != nil {
		return fmt.Errorf("ap: insert payment: %w", db.Classify(err, nil))
	}
	return nil
}

func (t *pgTxRepository) UpdatePayment(ctx context.Context, p Payment) error {
	tag, err := t.q.Exec(ctx, `UPDATE payments
SET status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5, updated_at = $6
WHERE id = $1`, p.ID, string(p.Status), p.ApprovedBy, p.ApprovedAt, p.RejectionReason, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ap: update payment: %w", db.Classify(err, nil))
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (t *pgTxRepository) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error {
	tag, err := t.q.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("ap: update invoice status: %w", db.Classify(err, nil))
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

const invoiceColumns = `id, invoice_number, amount, tds_percentage, tds_round_up, status, is_archived, updated_at`

func getInvoice(ctx context.Context, q querier, id uuid.UUID, lock bool) (Invoice, error) {
	sql := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var (
		inv    Invoice
		amount pgtype.Numeric
		pct    pgtype.Numeric
		status string
	)
	err := q.QueryRow(ctx, sql, id).Scan(&inv.ID, &inv.Number, &amount, &pct, &inv.TDSRoundUp, &status, &inv.IsArchived, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, db.Classify(err, ErrInvoiceNotFound)
	}
	inv.Amount = db.Decimal(amount)
	inv.TDSPercentage = db.NullDecimal(pct)
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

const paymentColumns = `id, invoice_id, amount_paid, payment_date, status, tds_amount_applied, tds_rounded,
rejection_reason, created_by, approved_by, approved_at, created_at, updated_at`

func getPayment(ctx context.Context, q querier, id uuid.UUID, lock bool) (Payment, error) {
	sql := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	p, err := scanPayment(q.QueryRow(ctx, sql, id))
	if err != nil {
		return Payment{}, db.Classify(err, ErrPaymentNotFound)
	}
	return p, nil
}

func listPayments(ctx context.Context, q querier, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 ORDER BY created_at, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("ap: list payments: %w", db.Classify(err, nil))
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("ap: scan payment: %w", db.Classify(err, nil))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ap: list payments: %w", db.Classify(err, nil))
	}
	return out, nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p          Payment
		amount     pgtype.Numeric
		tds        pgtype.Numeric
		status     string
		reason     pgtype.Text
		approvedBy pgtype.Int8
		approvedAt pgtype.Timestamptz
	)
	if err := row.Scan(&p.ID, &p.InvoiceID, &amount, &p.PaymentDate, &status, &tds, &p.TDSRounded,
		&reason, &p.CreatedBy, &approvedBy, &approvedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Payment{}, err
	}
	p.AmountPaid = db.Decimal(amount)
	p.TDSAmountApplied = db.NullDecimal(tds)
	p.Status = PaymentStatus(status)
	if reason.Valid {
		p.RejectionReason = &reason.String
	}
	if approvedBy.Valid {
		p.ApprovedBy = &approvedBy.Int64
	}
	if approvedAt.Valid {
		at := approvedAt.Time
		p.ApprovedAt = &at
	}
	return p, nil
}
