package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/payables/internal/masterdata"
	"github.com/odyssey-erp/payables/internal/shared"
)

// materialize creates the concrete row for an approved payload. Only invoice
// profiles fall back to default references; the other kinds must be complete.
func materialize(ctx context.Context, w masterdata.Writer, lookup masterdata.Lookup, p Payload) (uuid.UUID, error) {
	var (
		id  uuid.UUID
		err error
	)
	switch v := p.(type) {
	case VendorPayload:
		id, err = w.CreateVendor(ctx, v.Vendor)
	case CategoryPayload:
		id, err = w.CreateCategory(ctx, v.Category)
	case InvoiceProfilePayload:
		profile, lookupErr := withDefaults(ctx, lookup, v.InvoiceProfile)
		if lookupErr != nil {
			return uuid.Nil, lookupErr
		}
		id, err = w.CreateInvoiceProfile(ctx, profile)
	case PaymentTypePayload:
		id, err = w.CreatePaymentType(ctx, v.PaymentType)
	default:
		return uuid.Nil, ErrUnknownEntityKind
	}
	if err != nil {
		var domainErr *shared.Error
		if errors.As(err, &domainErr) && domainErr.Kind == shared.KindValidation {
			return uuid.Nil, err
		}
		return uuid.Nil, shared.WrapError(err, ErrMaterialization.Kind, ErrMaterialization.Code,
			fmt.Sprintf("Could not create %s", p.Kind()))
	}
	return id, nil
}

func withDefaults(ctx context.Context, lookup masterdata.Lookup, profile masterdata.InvoiceProfile) (masterdata.InvoiceProfile, error) {
	if lookup == nil {
		return profile, nil
	}
	refs := []struct {
		kind masterdata.LookupKind
		ref  **uuid.UUID
	}{
		{masterdata.LookupEntity, &profile.EntityID},
		{masterdata.LookupVendor, &profile.VendorID},
		{masterdata.LookupCategory, &profile.CategoryID},
		{masterdata.LookupCurrency, &profile.CurrencyID},
	}
	for _, r := range refs {
		if *r.ref != nil {
			continue
		}
		id, err := lookup.FirstActive(ctx, r.kind)
		if err != nil {
			return profile, shared.WrapError(err, ErrDefaultLookup.Kind, ErrDefaultLookup.Code,
				fmt.Sprintf("Could not resolve default %s", r.kind))
		}
		*r.ref = id
	}
	return profile, nil
}
