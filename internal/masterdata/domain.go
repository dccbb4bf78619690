// Package masterdata materialises approved master-data requests into vendor,
// category, invoice profile and payment type rows, and resolves the default
// references invoice profiles fall back to.
package masterdata

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vendor is a payee.
type Vendor struct {
	Name             string `json:"name" validate:"required,notblank,max=200"`
	Email            string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone            string `json:"phone,omitempty" validate:"omitempty,max=32"`
	TaxID            string `json:"tax_id,omitempty" validate:"omitempty,alphanum,max=32"`
	PAN              string `json:"pan,omitempty" validate:"omitempty,alphanum,len=10"`
	Address          string `json:"address,omitempty" validate:"omitempty,max=500"`
	PaymentTermsDays int    `json:"payment_terms_days,omitempty" validate:"gte=0,lte=365"`
}

// Category groups invoices for reporting.
type Category struct {
	Name        string     `json:"name" validate:"required,notblank,max=120"`
	Description string     `json:"description,omitempty" validate:"omitempty,max=500"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
}

// InvoiceProfile is a template of defaults applied to new invoices.
type InvoiceProfile struct {
	Name          string           `json:"name" validate:"required,notblank,max=120"`
	Description   string           `json:"description,omitempty" validate:"omitempty,max=500"`
	EntityID      *uuid.UUID       `json:"entity_id,omitempty"`
	VendorID      *uuid.UUID       `json:"vendor_id,omitempty"`
	CategoryID    *uuid.UUID       `json:"category_id,omitempty"`
	CurrencyID    *uuid.UUID       `json:"currency_id,omitempty"`
	TDSPercentage *decimal.Decimal `json:"tds_percentage,omitempty"`
	TDSRoundUp    bool             `json:"tds_round_up,omitempty"`
}

// PaymentType is a payment method such as NEFT or cheque.
type PaymentType struct {
	Name              string `json:"name" validate:"required,notblank,max=80"`
	Code              string `json:"code" validate:"required,alphanum,max=20"`
	Description       string `json:"description,omitempty" validate:"omitempty,max=500"`
	RequiresReference bool   `json:"requires_reference,omitempty"`
}

// LookupKind names a reference table with an "active" flag.
type LookupKind string

const (
	LookupEntity   LookupKind = "entity"
	LookupVendor   LookupKind = "vendor"
	LookupCategory LookupKind = "category"
	LookupCurrency LookupKind = "currency"
)

// Writer creates master-data rows. Implementations are bound to the caller's
// transaction.
type Writer interface {
	CreateVendor(ctx context.Context, v Vendor) (uuid.UUID, error)
	CreateCategory(ctx context.Context, c Category) (uuid.UUID, error)
	CreateInvoiceProfile(ctx context.Context, p InvoiceProfile) (uuid.UUID, error)
	CreatePaymentType(ctx context.Context, p PaymentType) (uuid.UUID, error)
}

// Lookup resolves the first active record of a kind. It returns nil when the
// table holds no active record.
type Lookup interface {
	FirstActive(ctx context.Context, kind LookupKind) (*uuid.UUID, error)
}
