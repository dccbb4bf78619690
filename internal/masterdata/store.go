package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/payables/internal/platform/db"
	"github.com/odyssey-erp/payables/internal/shared"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrDuplicate reports a master-data row clashing with an existing one.
var ErrDuplicate = shared.NewError(shared.KindValidation, "MASTER_DATA_DUPLICATE", "A record with the same name or code already exists")

type pgWriter struct {
	q     Querier
	now   func() time.Time
	newID func() uuid.UUID
}

// NewWriter returns a Writer issuing inserts through q, typically a pgx.Tx.
func NewWriter(q Querier) Writer {
	return &pgWriter{q: q, now: time.Now, newID: uuid.New}
}

func (w *pgWriter) CreateVendor(ctx context.Context, v Vendor) (uuid.UUID, error) {
	id := w.newID()
	_, err := w.q.Exec(ctx, `INSERT INTO vendors
(id, name, email, phone, tax_id, pan, address, payment_terms_days, is_active, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, TRUE, $9)`,
		id, v.Name, v.Email, v.Phone, v.TaxID, v.PAN, v.Address, v.PaymentTermsDays, w.now().UTC())
	return id, insertErr("vendor", err)
}

func (w *pgWriter) CreateCategory(ctx context.Context, c Category) (uuid.UUID, error) {
	id := w.newID()
	_, err := w.q.Exec(ctx, `INSERT INTO categories (id, name, description, parent_id, is_active, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, TRUE, $5)`, id, c.Name, c.Description, c.ParentID, w.now().UTC())
	return id, insertErr("category", err)
}

func (w *pgWriter) CreateInvoiceProfile(ctx context.Context, p InvoiceProfile) (uuid.UUID, error) {
	id := w.newID()
	_, err := w.q.Exec(ctx, `INSERT INTO invoice_profiles
(id, name, description, entity_id, vendor_id, category_id, currency_id, tds_percentage, tds_round_up, is_active, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, TRUE, $10)`,
		id, p.Name, p.Description, p.EntityID, p.VendorID, p.CategoryID, p.CurrencyID, p.TDSPercentage, p.TDSRoundUp, w.now().UTC())
	return id, insertErr("invoice profile", err)
}

func (w *pgWriter) CreatePaymentType(ctx context.Context, p PaymentType) (uuid.UUID, error) {
	id := w.newID()
	_, err := w.q.Exec(ctx, `INSERT INTO payment_types (id, name, code, description, requires_reference, is_active, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, TRUE, $6)`, id, p.Name, p.Code, p.Description, p.RequiresReference, w.now().UTC())
	return id, insertErr("payment type", err)
}

func insertErr(entity string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, "") {
		return shared.WrapError(err, ErrDuplicate.Kind, ErrDuplicate.Code, fmt.Sprintf("A %s with the same name or code already exists", entity))
	}
	return fmt.Errorf("masterdata: create %s: %w", entity, db.Classify(err, nil))
}

var lookupTables = map[LookupKind]string{
	LookupEntity:   "entities",
	LookupVendor:   "vendors",
	LookupCategory: "categories",
	LookupCurrency: "currencies",
}

type pgLookup struct {
	q Querier
}

// NewLookup returns a Lookup reading through q.
func NewLookup(q Querier) Lookup {
	return &pgLookup{q: q}
}

func (l *pgLookup) FirstActive(ctx context.Context, kind LookupKind) (*uuid.UUID, error) {
	table, ok := lookupTables[kind]
	if !ok {
		return nil, fmt.Errorf("masterdata: unknown lookup kind %q", kind)
	}
	var id uuid.UUID
	err := l.q.QueryRow(ctx, `SELECT id FROM `+table+` WHERE is_active ORDER BY created_at, id LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: first active %s: %w", kind, err)
	}
	return &id, nil
}
