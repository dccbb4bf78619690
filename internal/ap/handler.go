package ap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/payables/internal/money"
	"github.com/odyssey-erp/payables/internal/platform/httpx"
	"github.com/odyssey-erp/payables/internal/rbac"
	"github.com/odyssey-erp/payables/internal/shared"
)

// Handler exposes the ledger over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Handler{logger: logger, service: service, rbac: rbac, validator: v}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tds/calculate", h.calculateTDS)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireActor)
		r.Get("/invoices/{id}/payments", h.listPayments)
		r.Get("/invoices/{id}/payment-summary", h.summary)
		r.Post("/invoices/{id}/payments", h.recordPayment)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireApprover)
		r.Post("/invoices/{id}/reproject", h.reproject)
		r.Post("/payments/{id}/approve", h.approvePayment)
		r.Post("/payments/{id}/reject", h.rejectPayment)
	})
}

type tdsRequest struct {
	InvoiceAmount *decimal.Decimal `json:"invoice_amount" validate:"required"`
	TDSPercentage *decimal.Decimal `json:"tds_percentage" validate:"required"`
	RoundUp       bool             `json:"round_up"`
}

type tdsResponse struct {
	TDSAmount     decimal.Decimal `json:"tds_amount"`
	PayableAmount decimal.Decimal `json:"payable_amount"`
	ExactTDS      decimal.Decimal `json:"exact_tds"`
	IsRounded     bool            `json:"is_rounded"`
}

type recordPaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	PaymentDate *time.Time       `json:"payment_date"`
}

type rejectPaymentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type paymentResponse struct {
	ID               uuid.UUID        `json:"id"`
	InvoiceID        uuid.UUID        `json:"invoice_id"`
	AmountPaid       decimal.Decimal  `json:"amount_paid"`
	PaymentDate      time.Time        `json:"payment_date"`
	Status           PaymentStatus    `json:"status"`
	TDSAmountApplied *decimal.Decimal `json:"tds_amount_applied,omitempty"`
	TDSRounded       bool             `json:"tds_rounded"`
	RejectionReason  *string          `json:"rejection_reason,omitempty"`
	CreatedBy        int64            `json:"created_by"`
	ApprovedBy       *int64           `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

type summaryResponse struct {
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceAmount     decimal.Decimal `json:"invoice_amount"`
	TDSAmount         decimal.Decimal `json:"tds_amount"`
	PayableAmount     decimal.Decimal `json:"payable_amount"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	IsFullyPaid       bool            `json:"is_fully_paid"`
	IsPartiallyPaid   bool            `json:"is_partially_paid"`
	HasPendingPayment bool            `json:"has_pending_payment"`
	PaymentCount      int             `json:"payment_count"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:               p.ID,
		InvoiceID:        p.InvoiceID,
		AmountPaid:       p.AmountPaid,
		PaymentDate:      p.PaymentDate,
		Status:           p.Status,
		TDSAmountApplied: p.TDSAmountApplied,
		TDSRounded:       p.TDSRounded,
		RejectionReason:  p.RejectionReason,
		CreatedBy:        p.CreatedBy,
		ApprovedBy:       p.ApprovedBy,
		ApprovedAt:       p.ApprovedAt,
		CreatedAt:        p.CreatedAt,
	}
}

func (h *Handler) calculateTDS(w http.ResponseWriter, r *http.Request) {
	var req tdsRequest
	if !h.decode(w, r, &req) {
		return
	}
	res := money.CalculateTDS(*req.InvoiceAmount, *req.TDSPercentage, req.RoundUp)
	httpx.JSON(w, http.StatusOK, tdsResponse{
		TDSAmount:     res.TDSAmount,
		PayableAmount: res.PayableAmount,
		ExactTDS:      res.ExactTDS,
		IsRounded:     res.IsRounded,
	})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	s, err := h.service.Summary(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaryResponse(s))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := RecordPaymentInput{InvoiceID: id, Amount: *req.Amount, Actor: actor}
	if req.PaymentDate != nil {
		input.PaymentDate = *req.PaymentDate
	}
	payment, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) reproject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	status, err := h.service.ReprojectInvoice(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"invoice_id": id.String(), "status": string(status)})
}

func (h *Handler) approvePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	payment, err := h.service.ApprovePayment(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) rejectPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req rejectPaymentRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	payment, err := h.service.RejectPayment(r.Context(), RejectPaymentInput{PaymentID: id, Reason: req.Reason, Actor: actor})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

// decode reads the JSON body into dst and checks its validate tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, h.logger, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			httpx.RespondError(w, h.logger, shared.WrapError(err, shared.KindValidation, "INVALID_REQUEST", "invalid request"))
			return false
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
		httpx.RespondError(w, h.logger, shared.Validation(strings.Join(msgs, "; ")))
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, shared.WrapError(err, shared.KindValidation, "INVALID_ID", "invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	actor, err := rbac.ActorFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), err.Error())
		return rbac.Actor{}, false
	}
	return actor, true
}
