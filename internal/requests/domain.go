// Package requests implements the master-data change request lifecycle:
// draft, submission, review by an approver, and bounded resubmission after
// rejection.
package requests

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/payables/internal/rbac"
)

const (
	// MaxResubmissions bounds a request chain to 1 original + 2 resubmissions.
	MaxResubmissions = 2
	// MinRejectionReasonLength is counted in runes after trimming.
	MinRejectionReasonLength = 10
)

// Status enumerates request statuses.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// EntityKind is the master-data kind a request materialises.
type EntityKind string

const (
	KindVendor         EntityKind = "vendor"
	KindCategory       EntityKind = "category"
	KindInvoiceProfile EntityKind = "invoice_profile"
	KindPaymentType    EntityKind = "payment_type"
)

// Valid reports whether k is a known kind.
func (k EntityKind) Valid() bool {
	switch k {
	case KindVendor, KindCategory, KindInvoiceProfile, KindPaymentType:
		return true
	}
	return false
}

// Request is a master-data change request.
type Request struct {
	ID                uuid.UUID
	EntityKind        EntityKind
	Status            Status
	RequesterID       int64
	ReviewerID        *int64
	Payload           Payload
	RejectionReason   *string
	AdminEdits        json.RawMessage
	ResubmissionCount int
	PreviousAttemptID *uuid.UUID
	CreatedEntityID   *uuid.UUID
	ReviewedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OwnedBy reports whether actor created the request.
func (r Request) OwnedBy(actor rbac.Actor) bool {
	return actor.Authenticated() && r.RequesterID == actor.ID
}

// VisibleTo reports whether actor may read the request.
func (r Request) VisibleTo(actor rbac.Actor) bool {
	return actor.CanApprove() || r.OwnedBy(actor)
}

// Filter narrows List results.
type Filter struct {
	Status      Status
	EntityKind  EntityKind
	RequesterID *int64
	Limit       int
	Offset      int
}

// CreateInput captures a new request.
type CreateInput struct {
	EntityKind EntityKind
	Payload    json.RawMessage
	Submit     bool
	Actor      rbac.Actor
}

// ApproveInput captures an approval, optionally with admin edits applied as a
// shallow override over the payload.
type ApproveInput struct {
	ID    uuid.UUID
	Edits json.RawMessage
	Actor rbac.Actor
}

// RejectInput captures a rejection.
type RejectInput struct {
	ID     uuid.UUID
	Reason string
	Actor  rbac.Actor
}

// BulkResult is the outcome of one item of a bulk operation.
type BulkResult struct {
	ID      uuid.UUID
	Success bool
	Request *Request
	Err     error
}
