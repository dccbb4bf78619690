package requests

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/odyssey-erp/payables/internal/masterdata"
	"github.com/odyssey-erp/payables/internal/shared"
)

// Payload is the typed body of a request. The set of implementations is
// closed; Kind drives materialisation.
type Payload interface {
	Kind() EntityKind
	Validate() error
	isPayload()
}

// VendorPayload requests a new vendor.
type VendorPayload struct {
	masterdata.Vendor
}

// CategoryPayload requests a new category.
type CategoryPayload struct {
	masterdata.Category
}

// InvoiceProfilePayload requests a new invoice profile. Missing references are
// filled with defaults on approval.
type InvoiceProfilePayload struct {
	masterdata.InvoiceProfile
}

// PaymentTypePayload requests a new payment type.
type PaymentTypePayload struct {
	masterdata.PaymentType
}

func (VendorPayload) Kind() EntityKind         { return KindVendor }
func (CategoryPayload) Kind() EntityKind       { return KindCategory }
func (InvoiceProfilePayload) Kind() EntityKind { return KindInvoiceProfile }
func (PaymentTypePayload) Kind() EntityKind    { return KindPaymentType }

func (p VendorPayload) Validate() error         { return masterdata.Validate(p.Vendor) }
func (p CategoryPayload) Validate() error       { return masterdata.Validate(p.Category) }
func (p InvoiceProfilePayload) Validate() error { return masterdata.Validate(p.InvoiceProfile) }
func (p PaymentTypePayload) Validate() error    { return masterdata.Validate(p.PaymentType) }

func (VendorPayload) isPayload()         {}
func (CategoryPayload) isPayload()       {}
func (InvoiceProfilePayload) isPayload() {}
func (PaymentTypePayload) isPayload()    {}

// DecodePayload parses raw into the payload type of kind. Unknown fields are
// rejected; schema rules are checked separately by Validate.
func DecodePayload(kind EntityKind, raw json.RawMessage) (Payload, error) {
	if !kind.Valid() {
		return nil, ErrUnknownEntityKind
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, shared.WithMessage(ErrInvalidPayload, "payload is required")
	}
	var p Payload
	switch kind {
	case KindVendor:
		var v VendorPayload
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindCategory:
		var v CategoryPayload
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindInvoiceProfile:
		var v InvoiceProfilePayload
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindPaymentType:
		var v PaymentTypePayload
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, ErrUnknownEntityKind
	}
	return p, nil
}

func decodeStrict(raw json.RawMessage, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return shared.WrapError(err, ErrInvalidPayload.Kind, ErrInvalidPayload.Code, fmt.Sprintf("invalid payload: %v", err))
	}
	return nil
}

// EncodePayload serialises p.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, shared.WithMessage(ErrInvalidPayload, "payload is required")
	}
	return json.Marshal(p)
}

// MergeEdits applies edits as a shallow override over p: every top-level key
// present in edits replaces the payload's value, including explicit nulls.
func MergeEdits(p Payload, edits json.RawMessage) (Payload, error) {
	if len(bytes.TrimSpace(edits)) == 0 || bytes.Equal(bytes.TrimSpace(edits), []byte("null")) {
		return p, nil
	}
	base, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, shared.WrapError(err, shared.KindInternal, "", "payload encoding")
	}
	var overrides map[string]json.RawMessage
	if err := json.Unmarshal(edits, &overrides); err != nil {
		return nil, shared.WrapError(err, ErrInvalidPayload.Kind, ErrInvalidPayload.Code, "admin edits must be a JSON object")
	}
	for k, v := range overrides {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, shared.WrapError(err, shared.KindInternal, "", "payload encoding")
	}
	return DecodePayload(p.Kind(), raw)
}
