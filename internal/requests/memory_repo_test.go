package requests

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/payables/internal/audit"
	"github.com/odyssey-erp/payables/internal/masterdata"
	"github.com/odyssey-erp/payables/internal/shared"
)

// memoryRepo serialises transactions with a single mutex, standing in for the
// request row lock, and restores a snapshot when the callback fails.
type memoryRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]Request
	entities map[uuid.UUID]any

	failCreate error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		requests: make(map[uuid.UUID]Request),
		entities: make(map[uuid.UUID]any),
	}
}

func (r *memoryRepo) put(req Request) Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	r.requests[req.ID] = req
	return req
}

func (r *memoryRepo) request(id uuid.UUID) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	return req, ok
}

func (r *memoryRepo) entity(id uuid.UUID) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entities[id]
}

func (r *memoryRepo) entityCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entities)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := make(map[uuid.UUID]Request, len(r.requests))
	for k, v := range r.requests {
		requests[k] = v
	}
	entities := make(map[uuid.UUID]any, len(r.entities))
	for k, v := range r.entities {
		entities[k] = v
	}

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.requests = requests
		r.entities = entities
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	return req, nil
}

func (r *memoryRepo) List(_ context.Context, filter Filter) ([]Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Request
	for _, req := range r.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.EntityKind != "" && req.EntityKind != filter.EntityKind {
			continue
		}
		if filter.RequesterID != nil && req.RequesterID != *filter.RequesterID {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := shared.NewPage(filter.Limit, filter.Offset).Slice(len(out))
	return out[start:end], nil
}

func (t *memoryTx) Lock(_ context.Context, id uuid.UUID) (Request, error) {
	req, ok := t.repo.requests[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	return req, nil
}

func (t *memoryTx) HasSuccessor(_ context.Context, id uuid.UUID) (bool, error) {
	for _, req := range t.repo.requests {
		if req.PreviousAttemptID != nil && *req.PreviousAttemptID == id {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) Insert(ctx context.Context, req Request) error {
	if req.PreviousAttemptID != nil {
		taken, _ := t.HasSuccessor(ctx, *req.PreviousAttemptID)
		if taken {
			return ErrAlreadyResubmitted
		}
	}
	t.repo.requests[req.ID] = req
	return nil
}

func (t *memoryTx) Update(_ context.Context, req Request) error {
	if _, ok := t.repo.requests[req.ID]; !ok {
		return ErrRequestNotFound
	}
	t.repo.requests[req.ID] = req
	return nil
}

func (t *memoryTx) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := t.repo.requests[id]; !ok {
		return ErrRequestNotFound
	}
	delete(t.repo.requests, id)
	return nil
}

func (t *memoryTx) Entities() masterdata.Writer {
	return memoryWriter{repo: t.repo}
}

// memoryWriter stores entities in the repo maps so they roll back with the
// transaction.
type memoryWriter struct {
	repo *memoryRepo
}

func (w memoryWriter) create(v any) (uuid.UUID, error) {
	if w.repo.failCreate != nil {
		return uuid.Nil, w.repo.failCreate
	}
	id := uuid.New()
	w.repo.entities[id] = v
	return id, nil
}

func (w memoryWriter) CreateVendor(_ context.Context, v masterdata.Vendor) (uuid.UUID, error) {
	for _, e := range w.repo.entities {
		if existing, ok := e.(masterdata.Vendor); ok && existing.Name == v.Name {
			return uuid.Nil, masterdata.ErrDuplicate
		}
	}
	return w.create(v)
}

func (w memoryWriter) CreateCategory(_ context.Context, c masterdata.Category) (uuid.UUID, error) {
	return w.create(c)
}

func (w memoryWriter) CreateInvoiceProfile(_ context.Context, p masterdata.InvoiceProfile) (uuid.UUID, error) {
	return w.create(p)
}

func (w memoryWriter) CreatePaymentType(_ context.Context, p masterdata.PaymentType) (uuid.UUID, error) {
	return w.create(p)
}

type staticLookup struct {
	mu          sync.Mutex
	ids         map[masterdata.LookupKind]uuid.UUID
	err         error
	invalidated int
}

func (l *staticLookup) FirstActive(_ context.Context, kind masterdata.LookupKind) (*uuid.UUID, error) {
	if l.err != nil {
		return nil, l.err
	}
	id, ok := l.ids[kind]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (l *staticLookup) Invalidate(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invalidated++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

var (
	_ Repository   = (*memoryRepo)(nil)
	_ TxRepository = (*memoryTx)(nil)

	errStorage = errors.New("connection reset by peer")
)
