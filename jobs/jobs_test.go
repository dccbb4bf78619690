package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/payables/internal/ap"
	"github.com/odyssey-erp/payables/internal/audit"
	jobmetrics "github.com/odyssey-erp/payables/internal/jobs"
	"github.com/odyssey-erp/payables/internal/shared"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type fakeStore struct {
	logs []shared.AuditLog
	err  error
}

func (s *fakeStore) Record(_ context.Context, log shared.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, log)
	return nil
}

type fakeLedger struct {
	batches []int
	report  ap.ReprojectReport
	err     error
}

func (l *fakeLedger) ReprojectAll(_ context.Context, batch int) (ap.ReprojectReport, error) {
	l.batches = append(l.batches, batch)
	return l.report, l.err
}

type fakeNotifier struct {
	sent []Notification
}

func (n *fakeNotifier) Notify(_ context.Context, msg Notification) error {
	n.sent = append(n.sent, msg)
	return nil
}

func TestComposeFormatsAmountsAndRecipients(t *testing.T) {
	c := NewComposer(language.English)

	n, ok := c.Compose(audit.Event{
		Name:     audit.EventPaymentRecorded,
		EntityID: "p-1",
		Payload:  map[string]any{"status": "pending", "amount": "1234.5", "invoice_id": "inv-9"},
	})
	require.True(t, ok)
	require.Equal(t, AudienceApprovers, n.Audience)
	require.Equal(t, "A payment of 1,234.50 on invoice inv-9 is waiting for review.", n.Body)

	_, ok = c.Compose(audit.Event{Name: audit.EventPaymentRecorded, Payload: map[string]any{"status": "approved"}})
	require.False(t, ok)

	n, ok = c.Compose(audit.Event{
		Name:    audit.EventRequestRejected,
		Payload: map[string]any{"requester_id": float64(21), "entity_kind": "vendor", "reason": "Missing GST details"},
	})
	require.True(t, ok)
	require.Equal(t, int64(21), n.RecipientID)
	require.Equal(t, "Your vendor request was rejected. Reason: Missing GST details", n.Body)

	_, ok = c.Compose(audit.Event{Name: audit.EventInvoiceReprojected})
	require.False(t, ok)
	_, ok = c.Compose(audit.Event{Name: audit.EventPaymentApproved, Payload: map[string]any{"amount": "10"}})
	require.False(t, ok)
}

func TestQueueSinkEnqueuesAuditAndNotification(t *testing.T) {
	q := &fakeQueue{}
	sink := NewQueueSink(q, NewComposer(language.Und))

	require.NoError(t, sink.Record(context.Background(), audit.Event{
		Name:     audit.EventRequestApproved,
		EntityID: "r-1",
		Payload:  map[string]any{"requester_id": int64(21), "entity_kind": "category"},
	}))
	require.Len(t, q.tasks, 2)
	require.Equal(t, TaskAuditRecord, q.tasks[0].Type())
	require.Equal(t, TaskNotifyDispatch, q.tasks[1].Type())

	var evt audit.Event
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &evt))
	require.Equal(t, "r-1", evt.EntityID)

	q.tasks = nil
	require.NoError(t, sink.Record(context.Background(), audit.Event{Name: audit.EventRequestCreated}))
	require.Len(t, q.tasks, 1)

	q.err = errors.New("redis down")
	require.Error(t, sink.Record(context.Background(), audit.Event{Name: audit.EventRequestCreated}))
}

func TestAuditRecordJob(t *testing.T) {
	store := &fakeStore{}
	job := NewAuditRecordJob(store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewAuditRecordTask(audit.Event{Name: audit.EventPaymentApproved, Entity: "payment", EntityID: "p-1", ActorID: 3})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, store.logs, 1)
	require.Equal(t, audit.EventPaymentApproved, store.logs[0].Action)
	require.Equal(t, int64(3), store.logs[0].ActorID)

	err = job.Handle(context.Background(), asynq.NewTask(TaskAuditRecord, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	store.err = errors.New("audit table locked")
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestNotifyJob(t *testing.T) {
	notifier := &fakeNotifier{}
	job := NewNotifyJob(notifier, nil, nil)

	task, err := NewNotifyTask(Notification{Event: audit.EventRequestApproved, RecipientID: 21, Subject: "approved"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, notifier.sent, 1)
	require.Equal(t, int64(21), notifier.sent[0].RecipientID)

	err = job.Handle(context.Background(), asynq.NewTask(TaskNotifyDispatch, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"audit","pending":0}`, rec.Body.String())
}

func TestInvoiceReprojectJob(t *testing.T) {
	ledger := &fakeLedger{report: ap.ReprojectReport{Scanned: 3, Changed: 1}}
	job := NewInvoiceReprojectJob(ledger, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewInvoiceReprojectTask(50, time.Minute)
	require.NoError(t, err)
	require.Equal(t, TaskInvoiceReproject, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskInvoiceReproject, nil)))
	require.Equal(t, []int{50, 0}, ledger.batches)

	ledger.report = ap.ReprojectReport{Scanned: 3, Failed: 1}
	err = job.Handle(context.Background(), task)
	require.ErrorContains(t, err, "1 of 3 failed")

	ledger.err = errors.New("connection reset")
	require.Error(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskInvoiceReproject, []byte("[")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewWorkerRegistersCron(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	task, err := NewInvoiceReprojectTask(100, time.Minute)
	require.NoError(t, err)

	w, err := NewWorker(WorkerConfig{RedisOpts: opts})
	require.NoError(t, err)
	require.Nil(t, w.scheduler)
	require.NotNil(t, w.logger)

	w, err = NewWorker(WorkerConfig{
		RedisOpts: opts,
		Cron:      []CronRegistration{{Spec: "15 * * * *", Task: task}},
	})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: opts,
		Cron:      []CronRegistration{{Spec: "every now and then", Task: task}},
	})
	require.ErrorContains(t, err, TaskInvoiceReproject)
}
