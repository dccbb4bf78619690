package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/payables/internal/audit"
)

// AudienceApprovers addresses every admin and super_admin.
const AudienceApprovers = "approvers"

// Notification is a user facing message derived from an audit event.
// RecipientID is zero when the message targets an audience.
type Notification struct {
	Event       string `json:"event"`
	Entity      string `json:"entity"`
	EntityID    string `json:"entity_id"`
	RecipientID int64  `json:"recipient_id,omitempty"`
	Audience    string `json:"audience,omitempty"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// Notifier delivers notifications (mail, chat, in-app inbox).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, msg Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		slog.String("event", msg.Event),
		slog.String("entity_id", msg.EntityID),
		slog.Int64("recipient_id", msg.RecipientID),
		slog.String("audience", msg.Audience),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Composer turns audit events into notifications, formatting amounts for a
// locale.
type Composer struct {
	printer *message.Printer
}

// NewComposer builds a composer for tag; the zero tag selects English.
func NewComposer(tag language.Tag) *Composer {
	if tag == language.Und {
		tag = language.English
	}
	return &Composer{printer: message.NewPrinter(tag)}
}

// Compose reports the notification for evt, or false when the event does not
// concern anyone beyond the audit trail.
func (c *Composer) Compose(evt audit.Event) (Notification, bool) {
	n := Notification{Event: evt.Name, Entity: evt.Entity, EntityID: evt.EntityID}
	p := c.printer
	switch evt.Name {
	case audit.EventPaymentRecorded:
		if stringField(evt.Payload, "status") != "pending" {
			return Notification{}, false
		}
		n.Audience = AudienceApprovers
		n.Subject = "Payment awaiting approval"
		n.Body = p.Sprintf("A payment of %v on invoice %s is waiting for review.",
			c.amount(evt.Payload), stringField(evt.Payload, "invoice_id"))
	case audit.EventPaymentApproved:
		n.RecipientID = intField(evt.Payload, "created_by")
		n.Subject = "Payment approved"
		n.Body = p.Sprintf("Your payment of %v has been approved.", c.amount(evt.Payload))
	case audit.EventPaymentRejected:
		n.RecipientID = intField(evt.Payload, "created_by")
		n.Subject = "Payment rejected"
		n.Body = p.Sprintf("Your payment of %v was rejected.", c.amount(evt.Payload))
		if reason := stringField(evt.Payload, "reason"); reason != "" {
			n.Body += " Reason: " + reason
		}
	case audit.EventRequestSubmitted, audit.EventRequestResubmitted:
		n.Audience = AudienceApprovers
		n.Subject = "Master data request awaiting review"
		n.Body = p.Sprintf("A %s request is waiting for review.", kindLabel(evt.Payload))
	case audit.EventRequestApproved:
		n.RecipientID = intField(evt.Payload, "requester_id")
		n.Subject = "Master data request approved"
		n.Body = p.Sprintf("Your %s request has been approved.", kindLabel(evt.Payload))
	case audit.EventRequestRejected:
		n.RecipientID = intField(evt.Payload, "requester_id")
		n.Subject = "Master data request rejected"
		n.Body = p.Sprintf("Your %s request was rejected. Reason: %s", kindLabel(evt.Payload), stringField(evt.Payload, "reason"))
	default:
		return Notification{}, false
	}
	if n.RecipientID == 0 && n.Audience == "" {
		return Notification{}, false
	}
	return n, true
}

func (c *Composer) amount(payload map[string]any) any {
	raw := stringField(payload, "amount")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return number.Decimal(d.InexactFloat64(), number.Scale(2))
}

func kindLabel(payload map[string]any) string {
	kind := stringField(payload, "entity_kind")
	if kind == "" {
		return "master data"
	}
	return kind
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// intField accepts the native int64 of an in-process event and the float64 or
// string forms produced by a JSON round trip.
func intField(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		i, _ := v.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	}
	return 0
}
