package ap

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/payables/internal/audit"
)

// memoryRepo serialises transactions with a single mutex, standing in for the
// invoice row lock, and restores a snapshot when the callback fails.
type memoryRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]Invoice
	payments map[uuid.UUID]Payment
	order    []uuid.UUID

	failInvoiceUpdate error
	failList          error
	statusWrites      int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[uuid.UUID]Invoice),
		payments: make(map[uuid.UUID]Payment),
	}
}

func (r *memoryRepo) addInvoice(inv Invoice) Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	r.invoices[inv.ID] = inv
	return inv
}

func (r *memoryRepo) invoice(id uuid.UUID) Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[id]
}

func (r *memoryRepo) setInvoiceStatus(id uuid.UUID, status InvoiceStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv := r.invoices[id]
	inv.Status = status
	r.invoices[id] = inv
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	invoices := make(map[uuid.UUID]Invoice, len(r.invoices))
	for k, v := range r.invoices {
		invoices[k] = v
	}
	payments := make(map[uuid.UUID]Payment, len(r.payments))
	for k, v := range r.payments {
		payments[k] = v
	}
	order := append([]uuid.UUID(nil), r.order...)

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.invoices = invoices
		r.payments = payments
		r.order = order
		return err
	}
	return nil
}

func (r *memoryRepo) GetInvoice(_ context.Context, id uuid.UUID) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getInvoice(id)
}

func (r *memoryRepo) GetPayment(_ context.Context, id uuid.UUID) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getPayment(id)
}

func (r *memoryRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listPayments(invoiceID), nil
}

func (r *memoryRepo) ListReprojectable(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList != nil {
		return nil, r.failList
	}
	var ids []uuid.UUID
	for id, inv := range r.invoices {
		if inv.IsArchived || bytes.Compare(id[:], after[:]) <= 0 {
			continue
		}
		switch inv.Status {
		case InvoiceStatusUnpaid, InvoiceStatusPartial, InvoiceStatusPaid:
		case InvoiceStatusOverdue:
			if Summarize(inv, r.listPayments(id)).PaymentCount == 0 {
				continue
			}
		default:
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memoryRepo) getInvoice(id uuid.UUID) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryRepo) getPayment(id uuid.UUID) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (r *memoryRepo) listPayments(invoiceID uuid.UUID) []Payment {
	var out []Payment
	for _, id := range r.order {
		if p := r.payments[id]; p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out
}

func (t *memoryTx) LockInvoice(_ context.Context, id uuid.UUID) (Invoice, error) {
	return t.repo.getInvoice(id)
}

func (t *memoryTx) GetPayment(_ context.Context, id uuid.UUID) (Payment, error) {
	return t.repo.getPayment(id)
}

func (t *memoryTx) LockPayment(_ context.Context, id uuid.UUID) (Payment, error) {
	return t.repo.getPayment(id)
}

func (t *memoryTx) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	return t.repo.listPayments(invoiceID), nil
}

func (t *memoryTx) InsertPayment(_ context.Context, p Payment) error {
	if p.Status == PaymentStatusPending {
		for _, existing := range t.repo.listPayments(p.InvoiceID) {
			if existing.Status == PaymentStatusPending {
				return ErrPendingPaymentExists
			}
		}
	}
	t.repo.payments[p.ID] = p
	t.repo.order = append(t.repo.order, p.ID)
	return nil
}

func (t *memoryTx) UpdatePayment(_ context.Context, p Payment) error {
	if _, ok := t.repo.payments[p.ID]; !ok {
		return ErrPaymentNotFound
	}
	t.repo.payments[p.ID] = p
	return nil
}

func (t *memoryTx) UpdateInvoiceStatus(_ context.Context, id uuid.UUID, status InvoiceStatus) error {
	if t.repo.failInvoiceUpdate != nil {
		return t.repo.failInvoiceUpdate
	}
	inv, ok := t.repo.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	t.repo.invoices[id] = inv
	t.repo.statusWrites++
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

var _ Repository = (*memoryRepo)(nil)
