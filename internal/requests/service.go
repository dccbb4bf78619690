package requests

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/payables/internal/audit"
	"github.com/odyssey-erp/payables/internal/masterdata"
	"github.com/odyssey-erp/payables/internal/rbac"
)

const entityRequest = "master_data_request"

// MetricsRecorder observes lifecycle events.
type MetricsRecorder interface {
	RecordRequestEvent(event string)
}

// invalidator is implemented by lookups that cache defaults.
type invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service runs the request lifecycle and the approval authority.
type Service struct {
	repo      Repository
	machine   *Machine
	lookup    masterdata.Lookup
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   MetricsRecorder
	bulkLimit int
	now       func() time.Time
	newID     func() uuid.UUID
}

// NewService builds the request service. lookup resolves invoice profile
// defaults; a nil publisher discards events.
func NewService(repo Repository, lookup masterdata.Lookup, publisher audit.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = audit.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		machine:   NewMachine(),
		lookup:    lookup,
		publisher: publisher,
		logger:    logger,
		bulkLimit: 4,
		now:       time.Now,
		newID:     uuid.New,
	}
}

// SetMetrics wires a metrics recorder.
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Create stores a new request as a draft, or submits it directly when
// input.Submit is set. Submitted payloads must pass schema validation.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	if !input.Actor.Authenticated() {
		return Request{}, ErrNotAuthenticated
	}
	payload, err := DecodePayload(input.EntityKind, input.Payload)
	if err != nil {
		return Request{}, err
	}
	status := StatusDraft
	if input.Submit {
		if err := payload.Validate(); err != nil {
			return Request{}, err
		}
		status = StatusPendingApproval
	}
	now := s.now().UTC()
	req := Request{
		ID:          s.newID(),
		EntityKind:  input.EntityKind,
		Status:      status,
		RequesterID: input.Actor.ID,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, audit.EventRequestCreated, req, input.Actor, nil)
	if status == StatusPendingApproval {
		s.emit(ctx, audit.EventRequestSubmitted, req, input.Actor, nil)
	}
	return req, nil
}

// UpdateDraft replaces the payload of a draft owned by the actor.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, raw json.RawMessage, actor rbac.Actor) (Request, error) {
	var req Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.machine.Fire(req, Trigger{Event: EventUpdate, Actor: actor}); err != nil {
			return err
		}
		payload, err := DecodePayload(req.EntityKind, raw)
		if err != nil {
			return err
		}
		req.Payload = payload
		req.UpdatedAt = s.now().UTC()
		return tx.Update(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, audit.EventRequestUpdated, req, actor, nil)
	return req, nil
}

// Submit moves a draft to pending approval after re-validating its payload.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, actor rbac.Actor) (Request, error) {
	var req Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		next, err := s.machine.Fire(req, Trigger{Event: EventSubmit, Actor: actor})
		if err != nil {
			return err
		}
		if err := req.Payload.Validate(); err != nil {
			return err
		}
		req.Status = next
		req.UpdatedAt = s.now().UTC()
		return tx.Update(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, audit.EventRequestSubmitted, req, actor, nil)
	return req, nil
}

// DeleteDraft removes a draft owned by the actor.
func (s *Service) DeleteDraft(ctx context.Context, id uuid.UUID, actor rbac.Actor) error {
	var req Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.machine.Fire(req, Trigger{Event: EventDelete, Actor: actor}); err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, audit.EventRequestDeleted, req, actor, nil)
	return nil
}

// Resubmit creates a new pending request from a rejected one. The rejected
// request is left untouched and may be resubmitted only once. An empty raw
// payload reuses the rejected payload.
func (s *Service) Resubmit(ctx context.Context, id uuid.UUID, raw json.RawMessage, actor rbac.Actor) (Request, error) {
	var next Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		status, err := s.machine.Fire(old, Trigger{Event: EventResubmit, Actor: actor})
		if err != nil {
			return err
		}
		taken, err := tx.HasSuccessor(ctx, old.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrAlreadyResubmitted
		}

		payload := old.Payload
		if len(raw) > 0 {
			if payload, err = DecodePayload(old.EntityKind, raw); err != nil {
				return err
			}
		}
		if err := payload.Validate(); err != nil {
			return err
		}

		now := s.now().UTC()
		prev := old.ID
		next = Request{
			ID:                s.newID(),
			EntityKind:        old.EntityKind,
			Status:            status,
			RequesterID:       old.RequesterID,
			Payload:           payload,
			ResubmissionCount: old.ResubmissionCount + 1,
			PreviousAttemptID: &prev,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		return tx.Insert(ctx, next)
	})
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, audit.EventRequestResubmitted, next, actor, map[string]any{
		"previous_attempt_id": id.String(),
		"resubmission_count":  next.ResubmissionCount,
	})
	return next, nil
}

// Get returns a request visible to the actor. Requests of other users are
// reported as not found to standard users.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor rbac.Actor) (Request, error) {
	if !actor.Authenticated() {
		return Request{}, ErrNotAuthenticated
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !req.VisibleTo(actor) {
		return Request{}, ErrRequestNotFound
	}
	return req, nil
}

// List returns requests matching filter. Standard users only see their own.
func (s *Service) List(ctx context.Context, filter Filter, actor rbac.Actor) ([]Request, error) {
	if !actor.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidFilter
	}
	if filter.EntityKind != "" && !filter.EntityKind.Valid() {
		return nil, ErrUnknownEntityKind
	}
	if !actor.CanApprove() {
		own := actor.ID
		filter.RequesterID = &own
	}
	return s.repo.List(ctx, filter)
}

// History returns the resubmission chain ending at id, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, actor rbac.Actor) ([]Request, error) {
	req, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	chain := []Request{req}
	for req.PreviousAttemptID != nil && len(chain) <= MaxResubmissions {
		req, err = s.repo.Get(ctx, *req.PreviousAttemptID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, req)
	}
	return chain, nil
}

func (s *Service) emit(ctx context.Context, name string, req Request, actor rbac.Actor, extra map[string]any) {
	if s.metrics != nil {
		s.metrics.RecordRequestEvent(name)
	}
	payload := map[string]any{
		"entity_kind":  string(req.EntityKind),
		"status":       string(req.Status),
		"requester_id": req.RequesterID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.publisher.Publish(ctx, audit.Event{
		Name:     name,
		Entity:   entityRequest,
		EntityID: req.ID.String(),
		ActorID:  actor.ID,
		Payload:  payload,
	})
}
