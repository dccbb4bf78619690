package requests

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/payables/internal/platform/httpx"
	"github.com/odyssey-erp/payables/internal/rbac"
	"github.com/odyssey-erp/payables/internal/shared"
)

// Handler exposes the request workflow over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireActor)
			r.Post("/", h.create)
			r.Get("/", h.list)
			r.Get("/{id}", h.get)
			r.Get("/{id}/history", h.history)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
			r.Post("/{id}/submit", h.submit)
			r.Post("/{id}/resubmit", h.resubmit)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireApprover)
			r.Post("/{id}/approve", h.approve)
			r.Post("/{id}/reject", h.reject)
			r.Post("/bulk-approve", h.bulkApprove)
			r.Post("/bulk-reject", h.bulkReject)
		})
	})
}

type createRequest struct {
	EntityKind EntityKind      `json:"entity_kind"`
	Payload    json.RawMessage `json:"payload"`
	Submit     bool            `json:"submit"`
}

type payloadRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type approveRequest struct {
	Edits json.RawMessage `json:"edits"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type bulkRequest struct {
	IDs    []uuid.UUID `json:"ids"`
	Reason string      `json:"reason,omitempty"`
}

type requestResponse struct {
	ID                uuid.UUID       `json:"id"`
	EntityKind        EntityKind      `json:"entity_kind"`
	Status            Status          `json:"status"`
	RequesterID       int64           `json:"requester_id"`
	ReviewerID        *int64          `json:"reviewer_id,omitempty"`
	Payload           json.RawMessage `json:"payload"`
	RejectionReason   *string         `json:"rejection_reason,omitempty"`
	AdminEdits        json.RawMessage `json:"admin_edits,omitempty"`
	ResubmissionCount int             `json:"resubmission_count"`
	PreviousAttemptID *uuid.UUID      `json:"previous_attempt_id,omitempty"`
	CreatedEntityID   *uuid.UUID      `json:"created_entity_id,omitempty"`
	ReviewedAt        *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Actions           []Event         `json:"actions"`
}

type bulkItemResponse struct {
	ID      uuid.UUID        `json:"id"`
	Success bool             `json:"success"`
	Request *requestResponse `json:"request,omitempty"`
	Error   string           `json:"error,omitempty"`
	Code    string           `json:"code,omitempty"`
}

func (h *Handler) toResponse(req Request) requestResponse {
	payload, err := EncodePayload(req.Payload)
	if err != nil {
		h.logger.Warn("encode request payload", "request_id", req.ID, "error", err)
	}
	actions := h.service.machine.Permitted(req.Status)
	if actions == nil {
		actions = []Event{}
	}
	return requestResponse{
		ID:                req.ID,
		EntityKind:        req.EntityKind,
		Status:            req.Status,
		RequesterID:       req.RequesterID,
		ReviewerID:        req.ReviewerID,
		Payload:           payload,
		RejectionReason:   req.RejectionReason,
		AdminEdits:        req.AdminEdits,
		ResubmissionCount: req.ResubmissionCount,
		PreviousAttemptID: req.PreviousAttemptID,
		CreatedEntityID:   req.CreatedEntityID,
		ReviewedAt:        req.ReviewedAt,
		CreatedAt:         req.CreatedAt,
		UpdatedAt:         req.UpdatedAt,
		Actions:           actions,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body createRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	req, err := h.service.Create(r.Context(), CreateInput{
		EntityKind: body.EntityKind,
		Payload:    body.Payload,
		Submit:     body.Submit,
		Actor:      actor,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(req))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := Filter{
		Status:     Status(q.Get("status")),
		EntityKind: EntityKind(q.Get("entity_kind")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	if raw := q.Get("requester_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, h.logger, shared.Validation("requester_id must be an integer"))
			return
		}
		filter.RequesterID = &id
	}
	reqs, err := h.service.List(r.Context(), filter, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, h.toResponse(req))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(req))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	chain, err := h.service.History(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out := make([]requestResponse, 0, len(chain))
	for _, req := range chain {
		out = append(out, h.toResponse(req))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body payloadRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	req, err := h.service.UpdateDraft(r.Context(), id, body.Payload, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(req))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id, actor); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	req, err := h.service.Submit(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(req))
}

func (h *Handler) resubmit(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body payloadRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	req, err := h.service.Resubmit(r.Context(), id, body.Payload, actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(req))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body approveRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	req, err := h.service.Approve(r.Context(), ApproveInput{ID: id, Edits: body.Edits, Actor: actor})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(req))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body rejectRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	req, err := h.service.Reject(r.Context(), RejectInput{ID: id, Reason: body.Reason, Actor: actor})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(req))
}

func (h *Handler) bulkApprove(w http.ResponseWriter, r *http.Request) {
	actor, body, ok := h.bulkInput(w, r)
	if !ok {
		return
	}
	results, err := h.service.BulkApprove(r.Context(), body.IDs, actor)
	h.respondBulk(w, results, err)
}

func (h *Handler) bulkReject(w http.ResponseWriter, r *http.Request) {
	actor, body, ok := h.bulkInput(w, r)
	if !ok {
		return
	}
	results, err := h.service.BulkReject(r.Context(), body.IDs, body.Reason, actor)
	h.respondBulk(w, results, err)
}

func (h *Handler) bulkInput(w http.ResponseWriter, r *http.Request) (rbac.Actor, bulkRequest, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return rbac.Actor{}, bulkRequest{}, false
	}
	var body bulkRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, err)
		return rbac.Actor{}, bulkRequest{}, false
	}
	if len(body.IDs) == 0 {
		httpx.RespondError(w, h.logger, shared.Validation("ids must not be empty"))
		return rbac.Actor{}, bulkRequest{}, false
	}
	return actor, body, true
}

func (h *Handler) respondBulk(w http.ResponseWriter, results []BulkResult, err error) {
	if err != nil && results == nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out := make([]bulkItemResponse, 0, len(results))
	for _, res := range results {
		item := bulkItemResponse{ID: res.ID, Success: res.Success}
		if res.Request != nil {
			resp := h.toResponse(*res.Request)
			item.Request = &resp
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
			var domainErr *shared.Error
			if errors.As(res.Err, &domainErr) {
				item.Error = domainErr.Message
				item.Code = domainErr.Code
			}
		}
		out = append(out, item)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, rbac.Actor, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, shared.WrapError(err, shared.KindValidation, "INVALID_ID", "invalid id"))
		return uuid.Nil, rbac.Actor{}, false
	}
	actor, ok := h.actor(w, r)
	return id, actor, ok
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	actor, err := rbac.ActorFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), err.Error())
		return rbac.Actor{}, false
	}
	return actor, true
}
