package handlers

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsenfayyazi/billder/session"
)

func TestAdminRequiresSession(t *testing.T) {
	h := setupDashboard(t)

	w := h.get("/admin", "")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestAdminSendsCustomerToOwnDashboard(t *testing.T) {
	h := setupDashboard(t)

	w := h.get("/admin/invoices", h.signIn(t, customer, validToken))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/customer", w.Header().Get("Location"))
}

func TestAdminDashboardShowsTotals(t *testing.T) {
	h := setupDashboard(t)

	w := h.get("/admin", h.signIn(t, owner, validToken))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Welcome back, Olive!")
	assert.Contains(t, body, "$1000.00 CAD")
	assert.Contains(t, body, "$700.00 CAD")
	assert.Contains(t, body, "INV-1001")
}

func TestAdminUnreadableStoredUserGetsFallbackGreeting(t *testing.T) {
	h := setupDashboard(t)
	sid := h.signIn(t, owner, validToken)
	require.NoError(t, h.store.Set(context.Background(), sid, map[string]string{session.KeyUser: "{not json"}))

	w := h.get("/admin", sid)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome back, Business Owner!")
	assert.Contains(t, w.Body.String(), "$1000.00 CAD")

	values, err := h.store.Get(context.Background(), sid, session.KeyToken, session.KeyUser, session.KeyExpiry)
	require.NoError(t, err)
	assert.Len(t, values, 3)
}

func TestCustomerUnreadableStoredUserGetsFallbackGreeting(t *testing.T) {
	h := setupDashboard(t)
	sid := h.signIn(t, customer, validToken)
	require.NoError(t, h.store.Set(context.Background(), sid, map[string]string{session.KeyUser: "{not json"}))

	w := h.get("/customer", sid)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome back, Customer!")
	assert.NotContains(t, w.Body.String(), "<strong>Email:</strong>")
}

func TestExpiredTokenClearsSessionAndRedirects(t *testing.T) {
	h := setupDashboard(t)
	sid := h.signIn(t, owner, "stale-token")

	var cleared []session.Event
	unsubscribe := h.hub.Subscribe(func(e session.Event) {
		if e.Kind == session.EventCleared {
			cleared = append(cleared, e)
		}
	})
	defer unsubscribe()

	w := h.get("/admin/invoices", sid)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	values, err := h.store.Get(context.Background(), sid, session.KeyToken, session.KeyUser, session.KeyExpiry)
	require.NoError(t, err)
	assert.Empty(t, values)
	require.Len(t, cleared, 1)
	assert.Equal(t, session.ReasonUnauthorized, cleared[0].Reason)
}

func TestCreateInvoiceValidatesForm(t *testing.T) {
	h := setupDashboard(t)
	sid := h.signIn(t, owner, validToken)

	w := h.postForm("/admin/invoices", sid, url.Values{
		"customer_email": {"cara@example.com"},
		"total_amount":   {"abc"},
		"due_date":       {"2026-05-01"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Amount must be a valid number")
	assert.Nil(t, h.backend.created)
}

func TestCreateInvoiceRedirectsToDetail(t *testing.T) {
	h := setupDashboard(t)
	sid := h.signIn(t, owner, validToken)

	w := h.postForm("/admin/invoices", sid, url.Values{
		"customer_email": {"cara@example.com"},
		"total_amount":   {"50"},
		"due_date":       {"2026-05-01"},
	})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/invoices/inv-9?created=1", w.Header().Get("Location"))
	require.NotNil(t, h.backend.created)
	assert.Equal(t, "50.00", h.backend.created["total_amount"])
	assert.Equal(t, "CAD", h.backend.created["currency"])
	assert.Equal(t, "2026-05-01", h.backend.created["due_date"])
}

func TestAdminInvoiceDetail(t *testing.T) {
	h := setupDashboard(t)

	w := h.get("/admin/invoices/inv-1", h.signIn(t, owner, validToken))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Invoice INV-1001")
	assert.Contains(t, body, "http://localhost:3000/invoice/slug-1")
	assert.Contains(t, body, "-$25.00 CAD")
	assert.NotContains(t, body, "Other Person")
}

func TestAdminInvoiceNotFound(t *testing.T) {
	h := setupDashboard(t)

	w := h.get("/admin/invoices/missing", h.signIn(t, owner, validToken))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not found.")
}

func TestRefundRejectsAmountAbovePayment(t *testing.T) {
	h := setupDashboard(t)
	sid := h.signIn(t, owner, validToken)

	w := h.postForm("/admin/invoices/inv-1/refund", sid, url.Values{
		"payment_id": {"pay-1"},
		"amount":     {"350.00"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Refund amount cannot exceed the payment amount of $300.00 CAD")
	assert.Equal(t, 0, h.backend.refunds)
}

func TestRefundRedirectsWithNotice(t *testing.T) {
	h := setupDashboard(t)
	sid := h.signIn(t, owner, validToken)

	w := h.postForm("/admin/invoices/inv-1/refund", sid, url.Values{
		"payment_id": {"pay-1"},
		"amount":     {"50.00"},
		"reason":     {"Duplicate charge"},
	})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/invoices/inv-1?refunded=1", w.Header().Get("Location"))
	assert.Equal(t, 1, h.backend.refunds)
}

func TestAdminInvoicePDF(t *testing.T) {
	h := setupDashboard(t)

	w := h.get("/admin/invoices/inv-1/pdf", h.signIn(t, owner, validToken))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="invoice_INV-1001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-", w.Body.String()[:5])
}
