package requests

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/payables/internal/audit"
	"github.com/odyssey-erp/payables/internal/rbac"
)

// Approve materialises the request payload, with any admin edits merged on
// top, and marks the request approved. Creating the entity and recording the
// approval commit together; on failure the request stays pending.
func (s *Service) Approve(ctx context.Context, input ApproveInput) (Request, error) {
	if !input.Actor.CanApprove() {
		if !input.Actor.Authenticated() {
			return Request{}, ErrNotAuthenticated
		}
		return Request{}, ErrNotApprover
	}
	var req Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.Lock(ctx, input.ID)
		if err != nil {
			return err
		}
		next, err := s.machine.Fire(req, Trigger{Event: EventApprove, Actor: input.Actor})
		if err != nil {
			return err
		}
		payload := req.Payload
		if len(input.Edits) > 0 {
			if payload, err = MergeEdits(payload, input.Edits); err != nil {
				return err
			}
			req.AdminEdits = input.Edits
		}
		if err := payload.Validate(); err != nil {
			return err
		}
		entityID, err := materialize(ctx, tx.Entities(), s.lookup, payload)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		reviewer := input.Actor.ID
		req.Status = next
		req.Payload = payload
		req.ReviewerID = &reviewer
		req.ReviewedAt = &now
		req.CreatedEntityID = &entityID
		req.UpdatedAt = now
		return tx.Update(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}
	s.invalidateDefaults(ctx)
	s.emit(ctx, audit.EventRequestApproved, req, input.Actor, map[string]any{
		"created_entity_id": req.CreatedEntityID.String(),
		"edited":            len(req.AdminEdits) > 0,
	})
	return req, nil
}

// Reject records the reviewer's reason and marks the request rejected.
func (s *Service) Reject(ctx context.Context, input RejectInput) (Request, error) {
	if !input.Actor.CanApprove() {
		if !input.Actor.Authenticated() {
			return Request{}, ErrNotAuthenticated
		}
		return Request{}, ErrNotApprover
	}
	reason := strings.TrimSpace(input.Reason)
	var req Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.Lock(ctx, input.ID)
		if err != nil {
			return err
		}
		next, err := s.machine.Fire(req, Trigger{Event: EventReject, Actor: input.Actor, Reason: reason})
		if err != nil {
			return err
		}
		now := s.now().UTC()
		reviewer := input.Actor.ID
		req.Status = next
		req.RejectionReason = &reason
		req.ReviewerID = &reviewer
		req.ReviewedAt = &now
		req.UpdatedAt = now
		return tx.Update(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, audit.EventRequestRejected, req, input.Actor, map[string]any{"reason": reason})
	return req, nil
}

// BulkApprove approves each request independently. One failure does not
// affect the others; results keep the order of ids.
func (s *Service) BulkApprove(ctx context.Context, ids []uuid.UUID, actor rbac.Actor) ([]BulkResult, error) {
	return s.bulk(ctx, ids, actor, func(ctx context.Context, id uuid.UUID) (Request, error) {
		return s.Approve(ctx, ApproveInput{ID: id, Actor: actor})
	})
}

// BulkReject rejects each request with the same reason.
func (s *Service) BulkReject(ctx context.Context, ids []uuid.UUID, reason string, actor rbac.Actor) ([]BulkResult, error) {
	if !ValidRejectionReason(reason) {
		return nil, ErrReasonTooShort
	}
	return s.bulk(ctx, ids, actor, func(ctx context.Context, id uuid.UUID) (Request, error) {
		return s.Reject(ctx, RejectInput{ID: id, Reason: reason, Actor: actor})
	})
}

func (s *Service) bulk(ctx context.Context, ids []uuid.UUID, actor rbac.Actor, fn func(context.Context, uuid.UUID) (Request, error)) ([]BulkResult, error) {
	if !actor.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if !actor.CanApprove() {
		return nil, ErrNotApprover
	}
	results := make([]BulkResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkLimit)
	for i, id := range ids {
		g.Go(func() error {
			req, err := fn(gctx, id)
			results[i] = BulkResult{ID: id, Success: err == nil, Err: err}
			if err == nil {
				results[i].Request = &req
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Service) invalidateDefaults(ctx context.Context) {
	inv, ok := s.lookup.(invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate default lookup cache", "error", err)
	}
}
