package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/database"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/ratelimit"
	"github.com/mohsenfayyazi/billder/session"
)

const invoiceDetailJSON = `{
	"id": "7d1f7a4e-1111-4c7e-9f44-000000000001",
	"reference": "INV-1001",
	"total_amount": "1000.00",
	"amount_paid": 300,
	"status": "partially_paid",
	"due_date": "2026-04-30",
	"created_at": "2026-03-01T10:00:00.123456Z",
	"currency": "CAD",
	"public_slug": "abc123",
	"customer": {"first_name": "Cara", "last_name": "Lee", "email": "cara@example.com"},
	"owner": {"first_name": "Olive", "last_name": "Stone", "email": "olive@example.com"},
	"is_overdue": false
}`

type fixture struct {
	client *Client
	mgr    *session.Manager
	hub    *session.Hub
	srv    *httptest.Server
}

func setup(t *testing.T, handler http.HandlerFunc, opts ...Option) *fixture {
	t.Helper()
	db, err := database.Open(database.Options{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)

	hub := session.NewHub()
	mgr := session.NewManager(session.NewGormStore(db), hub, "cli:test")
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &fixture{client: New(srv.URL, mgr, opts...), mgr: mgr, hub: hub, srv: srv}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	err := f.mgr.Save(context.Background(), "tok-123", models.User{ID: 1, FirstName: "Cara", Role: models.RoleCustomer}, time.Hour)
	require.NoError(t, err)
}

func TestLoginStoresSession(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/login/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cara@example.com", body["email"])
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"message":"Login successful","token":"tok-xyz","user":{"id":4,"email":"cara@example.com","first_name":"Cara","last_name":"Lee","role":"customer"}}`))
	})

	user, err := f.client.Login(context.Background(), "cara@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)

	s, err := f.mgr.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", s.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), s.ExpiresAt, time.Minute)
}

func TestLoginFailureSurfacesServerError(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Login failed","message":"Invalid email or password."}`))
	})

	_, err := f.client.Login(context.Background(), "x@example.com", "wrongpass")
	require.Error(t, err)
	assert.Equal(t, "Login failed", apierror.Message(err))
}

func TestInvoiceDecodesMixedAmounts(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/invoices/7d1f7a4e-1111-4c7e-9f44-000000000001/", r.URL.Path)
		_, _ = w.Write([]byte(invoiceDetailJSON))
	})
	f.login(t)

	inv, err := f.client.Invoice(context.Background(), "7d1f7a4e-1111-4c7e-9f44-000000000001")
	require.NoError(t, err)

	assert.Equal(t, "INV-1001", inv.Reference)
	assert.False(t, inv.RemainingBalance.Valid)
	assert.Equal(t, "$700.00 CAD", models.FormatMoney(inv.Remaining(), inv.Currency))
	assert.Equal(t, "Cara Lee", inv.Customer.FullName())
	assert.Equal(t, 2026, inv.DueDate.Year())
	assert.Equal(t, time.March, inv.CreatedAt.Month())
}

func TestInvoiceListFlattenedParties(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "paid", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`[{"id":"a","reference":"INV-1","customer_name":"Cara Lee","customer_email":"cara@example.com","total_amount":"50.00","amount_paid":"50.00","remaining_balance":"0.00","status":"paid"}]`))
	})
	f.login(t)

	invoices, err := f.client.Invoices(context.Background(), models.InvoicePaid)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "Cara", invoices[0].Customer.FirstName)
	assert.Equal(t, "Lee", invoices[0].Customer.LastName)
	assert.True(t, invoices[0].RemainingBalance.Valid)
	assert.False(t, invoices[0].Payable())
}

func TestUnauthorizedClearsSessionAndNotifies(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
	})
	f.login(t)

	var events []session.Event
	f.hub.Subscribe(func(e session.Event) { events = append(events, e) })

	_, err := f.client.Payments(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindAuth))

	_, err = f.mgr.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
	require.Len(t, events, 1)
	assert.Equal(t, session.ReasonUnauthorized, events[0].Reason)
}

func TestNoSessionFailsBeforeNetwork(t *testing.T) {
	called := false
	f := setup(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := f.client.Totals(context.Background())
	assert.True(t, apierror.Is(err, apierror.KindAuth))
	assert.False(t, called)
}

func TestCreatePaymentEnvelopeFailure(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "300.00", body["amount"])
		assert.Equal(t, "card", body["payment_method"])
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"Your card was declined.","error_type":"card_error"}`))
	})
	f.login(t)

	_, err := f.client.CreatePayment(context.Background(), IntentRequest{InvoiceID: "inv", Amount: decimal.NewFromInt(300), Currency: "CAD"})
	require.Error(t, err)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindServer, apiErr.Kind)
	assert.Equal(t, "Your card was declined.", apiErr.Message)
}

func TestCreateAndConfirmPayment(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/create_payment/":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true,"payment":{"id":"p1","invoice":"inv","amount":"300.00","status":"pending","external_payment_id":"pi_123"},"client_secret":"pi_123_secret"}`))
		case "/payments/confirm_payment/":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "pi_123", body["payment_intent_id"])
			assert.Equal(t, "pm_card_visa", body["payment_method_id"])
			_, _ = w.Write([]byte(`{"success":true,"payment":{"id":"p1","amount":"300.00","status":"succeeded","processed_at":"2026-03-01T10:00:00Z"}}`))
		default:
			http.NotFound(w, r)
		}
	})
	f.login(t)
	ctx := context.Background()

	intent, err := f.client.CreatePayment(ctx, IntentRequest{InvoiceID: "inv", Amount: decimal.NewFromInt(300), Currency: "CAD"})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.Payment.ExternalPaymentID)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)

	p, err := f.client.ConfirmPayment(ctx, intent.Payment.ExternalPaymentID, "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, p.Status)
	require.NotNil(t, p.ProcessedAt)
}

func TestRefundsAndTotals(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/refunds/":
			_, _ = w.Write([]byte(`{"success":true,"refunds":[{"id":"p1","payment_reference":"INV-1001","customer_name":"Cara Lee","amount":"300.00","refund_amount":"100.00","refund_status":"succeeded","refunded_at":"2026-03-02T09:00:00Z","external_refund_id":"re_1"}]}`))
		case "/invoices/total_amount/":
			_, _ = w.Write([]byte(`{"total_amount":1000.0,"total_paid":"300.00"}`))
		case "/invoices/customer_stats/":
			_, _ = w.Write([]byte(`{"total_customers":4,"customers_with_balance":2}`))
		}
	})
	f.login(t)
	ctx := context.Background()

	refunds, err := f.client.Refunds(ctx)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, "INV-1001", refunds[0].PaymentReference)
	assert.True(t, refunds[0].RefundAmount.Equal(decimal.NewFromInt(100)))

	totals, err := f.client.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "700.00", totals.Remaining().StringFixed(2))

	stats, err := f.client.CustomerStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CustomersWithBalance)
}

func TestPublicInvoiceNeedsNoSession(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/invoice/abc123/", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"invoice":` + invoiceDetailJSON + `,"payments":[{"id":"p1","amount":"300.00","status":"succeeded","payment_method":"card"}]}`))
	})

	inv, payments, err := f.client.PublicInvoice(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "INV-1001", inv.Reference)
	require.Len(t, payments, 1)
	assert.Nil(t, payments[0].Refund)
}

func TestRateLimitedBeforeNetwork(t *testing.T) {
	calls := 0
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"success":true,"invoice":{},"payments":[]}`))
	}, WithLimiter(ratelimit.New(2, time.Minute)))

	for i := 0; i < 2; i++ {
		_, _, err := f.client.PublicInvoice(context.Background(), "s")
		require.NoError(t, err)
	}
	_, _, err := f.client.PublicInvoice(context.Background(), "s")
	assert.True(t, apierror.Is(err, apierror.KindRateLimited))
	assert.Equal(t, 2, calls)
}

func TestNetworkErrorNormalized(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {})
	f.srv.Close()

	_, _, err := f.client.PublicInvoice(context.Background(), "s")
	assert.True(t, apierror.Is(err, apierror.KindNetwork))
	assert.Equal(t, apierror.MsgNetwork, apierror.Message(err))
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Logout failed"}`))
	})
	f.login(t)

	require.NoError(t, f.client.Logout(context.Background()))
	_, err := f.mgr.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestParseNewInvoice(t *testing.T) {
	in, err := ParseNewInvoice(" cara@example.com ", "50", "", "2026-05-31", "CAD")
	require.NoError(t, err)
	assert.Equal(t, "cara@example.com", in.CustomerEmail)
	assert.True(t, decimal.NewFromInt(50).Equal(in.TotalAmount))
	assert.Equal(t, "CAD", in.Currency)
	assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), in.DueDate)

	in, err = ParseNewInvoice("cara@example.com", "50", "usd", "2026-05-31", "CAD")
	require.NoError(t, err)
	assert.Equal(t, "USD", in.Currency)

	for _, tc := range []struct {
		email, amount, currency, due, message string
	}{
		{"nope", "50", "", "2026-05-31", "Please enter a valid email address"},
		{"cara@example.com", "abc", "", "2026-05-31", "Amount must be a valid number"},
		{"cara@example.com", "50", "XYZ", "2026-05-31", "Unsupported currency"},
		{"cara@example.com", "50", "", "31/05/2026", "Due date must be a valid date"},
	} {
		_, err := ParseNewInvoice(tc.email, tc.amount, tc.currency, tc.due, "CAD")
		require.Error(t, err)
		assert.True(t, apierror.Is(err, apierror.KindValidation))
		assert.Equal(t, tc.message, apierror.Message(err))
	}
}
