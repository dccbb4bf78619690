package ap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/payables/internal/rbac"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo) {
	t.Helper()
	svc, repo, _ := newTestService(t)
	h := NewHandler(nil, svc, rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/api", h.MountRoutes)
	return r, repo
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, actorID, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set(rbac.HeaderActorID, actorID)
		req.Header.Set(rbac.HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPaymentFlow(t *testing.T) {
	router, repo := newTestRouter(t)
	inv := repo.addInvoice(Invoice{Amount: dec("1000"), Status: InvoiceStatusUnpaid})
	base := "/api/invoices/" + inv.ID.String()

	rec := doJSON(t, router, http.MethodPost, base+"/payments", `{"amount":"200"}`, "11", "standard")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, PaymentStatusPending, created.Status)

	rec = doJSON(t, router, http.MethodPost, base+"/payments", `{"amount":"50"}`, "12", "standard")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "PENDING_PAYMENT_EXISTS")

	rec = doJSON(t, router, http.MethodPost, "/api/payments/"+created.ID.String()+"/approve", ``, "11", "standard")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/payments/"+created.ID.String()+"/approve", ``, "1", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, base+"/payment-summary", ``, "11", "standard")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.True(t, summary.RemainingBalance.Equal(dec("800")))
	require.Equal(t, 1, summary.PaymentCount)

	rec = doJSON(t, router, http.MethodGet, base+"/payments", ``, "11", "standard")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	router, repo := newTestRouter(t)
	inv := repo.addInvoice(Invoice{Amount: dec("100"), Status: InvoiceStatusUnpaid})

	rec := doJSON(t, router, http.MethodPost, "/api/invoices/not-a-uuid/payments", `{"amount":"1"}`, "11", "standard")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/payments", `{"amount":"500"}`, "11", "standard")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "AMOUNT_EXCEEDS_BALANCE")

	rec = doJSON(t, router, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/payments", `{"amount":"5"}`, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/payments", `{"payment_date":"2026-01-10T00:00:00Z"}`, "11", "standard")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "amount is required")

	rec = doJSON(t, router, http.MethodPost, "/api/tds/calculate", `{"invoice_amount":"100"}`, "", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "tds_percentage is required")
}

func TestHandlerCalculateTDS(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/tds/calculate", `{"invoice_amount":"51","tds_percentage":"10","round_up":true}`, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res tdsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.TDSAmount.Equal(dec("6")))
	require.True(t, res.ExactTDS.Equal(dec("5.1")))
	require.True(t, res.PayableAmount.Equal(dec("45")))
	require.True(t, res.IsRounded)
}
