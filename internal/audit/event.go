package audit

import (
	"context"
	"time"
)

// Event names emitted by the core after a transition commits.
const (
	EventPaymentRecorded    = "payment.recorded"
	EventPaymentApproved    = "payment.approved"
	EventPaymentRejected    = "payment.rejected"
	EventInvoiceReprojected = "invoice.reprojected"
	EventRequestCreated     = "request.created"
	EventRequestUpdated     = "request.updated"
	EventRequestSubmitted   = "request.submitted"
	EventRequestDeleted     = "request.deleted"
	EventRequestApproved    = "request.approved"
	EventRequestRejected    = "request.rejected"
	EventRequestResubmitted = "request.resubmitted"
)

// Event is a fire-and-forget record of a committed state transition.
type Event struct {
	Name     string         `json:"name"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	ActorID  int64          `json:"actor_id"`
	Payload  map[string]any `json:"payload,omitempty"`
	At       time.Time      `json:"at"`
}

// Publisher accepts events after commit. Implementations must not block the
// caller and must never report failure; delivery may be lost.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}
