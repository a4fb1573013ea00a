package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/session"
	"github.com/mohsenfayyazi/billder/validation"
)

// Login authenticates and stores the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var out authWire
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/users/login/",
		body:   map[string]string{"email": email, "password": password},
	}, &out)
	if err != nil {
		return models.User{}, err
	}
	return out.User, c.saveSession(ctx, out)
}

type Registration struct {
	Email           string      `json:"email"`
	FirstName       string      `json:"first_name"`
	LastName        string      `json:"last_name"`
	Role            models.Role `json:"role"`
	Password        string      `json:"password"`
	PasswordConfirm string      `json:"password_confirm"`
}

// Register creates an account and stores the returned session.
func (c *Client) Register(ctx context.Context, r Registration) (models.User, error) {
	var out authWire
	if err := c.do(ctx, call{method: http.MethodPost, path: "/users/register/", body: r}, &out); err != nil {
		return models.User{}, err
	}
	return out.User, c.saveSession(ctx, out)
}

func (c *Client) saveSession(ctx context.Context, out authWire) error {
	if c.session == nil || out.Token == "" {
		return nil
	}
	return c.session.Save(ctx, out.Token, out.User, c.sessionTTL)
}

// Logout tells the backend and then clears the local session whatever the
// backend answered.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, call{method: http.MethodPost, path: "/users/logout/", auth: true}, nil); err != nil {
		c.log.Warn().Err(err).Msg("backend logout failed")
	}
	if c.session == nil {
		return nil
	}
	return c.session.Clear(ctx, session.ReasonLogout)
}

func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var out models.User
	err := c.do(ctx, call{method: http.MethodGet, path: "/users/profile/", auth: true}, &out)
	return out, err
}

// Invoices lists the caller's invoices, optionally filtered by status.
func (c *Client) Invoices(ctx context.Context, status models.InvoiceStatus) ([]models.Invoice, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}
	var out []invoiceWire
	if err := c.do(ctx, call{method: http.MethodGet, path: "/invoices/", query: query, auth: true}, &out); err != nil {
		return nil, err
	}
	return convert(out, invoiceWire.toModel), nil
}

func (c *Client) Invoice(ctx context.Context, id string) (models.Invoice, error) {
	var out invoiceWire
	if err := c.do(ctx, call{method: http.MethodGet, path: "/invoices/" + url.PathEscape(id) + "/", auth: true}, &out); err != nil {
		return models.Invoice{}, err
	}
	return out.toModel(), nil
}

type NewInvoice struct {
	CustomerEmail string
	TotalAmount   decimal.Decimal
	Currency      string
	DueDate       time.Time
}

// ParseNewInvoice validates raw form input. An empty currency becomes
// defaultCurrency.
func ParseNewInvoice(email, amount, currency, dueDate, defaultCurrency string) (NewInvoice, error) {
	email = strings.TrimSpace(email)
	if err := validation.Email(email); err != nil {
		return NewInvoice{}, err
	}
	total, err := validation.Amount(amount)
	if err != nil {
		return NewInvoice{}, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if !validation.Currency(currency) {
		return NewInvoice{}, apierror.Validation("Unsupported currency")
	}
	due, err := time.Parse("2006-01-02", strings.TrimSpace(dueDate))
	if err != nil {
		return NewInvoice{}, apierror.Validation("Due date must be a valid date")
	}
	return NewInvoice{CustomerEmail: email, TotalAmount: total, Currency: currency, DueDate: due}, nil
}

func (c *Client) CreateInvoice(ctx context.Context, in NewInvoice) (models.Invoice, error) {
	body := map[string]any{
		"customer_email": in.CustomerEmail,
		"total_amount":   in.TotalAmount.StringFixed(2),
		"currency":       in.Currency,
		"due_date":       in.DueDate.Format("2006-01-02"),
	}
	var out invoiceWire
	if err := c.do(ctx, call{method: http.MethodPost, path: "/invoices/", body: body, auth: true}, &out); err != nil {
		return models.Invoice{}, err
	}
	return out.toModel(), nil
}

type Totals struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
}

// Remaining is the outstanding amount across all invoices.
func (t Totals) Remaining() decimal.Decimal {
	return t.TotalAmount.Sub(t.TotalPaid).Round(2)
}

func (c *Client) Totals(ctx context.Context) (Totals, error) {
	var out Totals
	err := c.do(ctx, call{method: http.MethodGet, path: "/invoices/total_amount/", auth: true}, &out)
	return out, err
}

type CustomerStats struct {
	TotalCustomers       int `json:"total_customers"`
	CustomersWithBalance int `json:"customers_with_balance"`
}

func (c *Client) CustomerStats(ctx context.Context) (CustomerStats, error) {
	var out CustomerStats
	err := c.do(ctx, call{method: http.MethodGet, path: "/invoices/customer_stats/", auth: true}, &out)
	return out, err
}

// Payments lists payments, all of the caller's when invoiceID is empty.
func (c *Client) Payments(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	var query url.Values
	if invoiceID != "" {
		query = url.Values{"invoice": {invoiceID}}
	}
	var out []paymentWire
	if err := c.do(ctx, call{method: http.MethodGet, path: "/payments/", query: query, auth: true}, &out); err != nil {
		return nil, err
	}
	return convert(out, paymentWire.toModel), nil
}

type IntentRequest struct {
	InvoiceID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// Intent is a created payment record and its processor handle.
type Intent struct {
	Payment      models.Payment
	ClientSecret string
}

func (c *Client) CreatePayment(ctx context.Context, in IntentRequest) (Intent, error) {
	body := map[string]any{
		"invoice_id":     in.InvoiceID,
		"amount":         in.Amount.StringFixed(2),
		"currency":       in.Currency,
		"payment_method": "card",
	}
	if in.Description != "" {
		body["description"] = in.Description
	}
	var out struct {
		Payment      paymentWire `json:"payment"`
		ClientSecret string      `json:"client_secret"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/payments/create_payment/", body: body, auth: true}, &out); err != nil {
		return Intent{}, err
	}
	return Intent{Payment: out.Payment.toModel(), ClientSecret: out.ClientSecret}, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, intentID, paymentMethodID string) (models.Payment, error) {
	body := map[string]string{"payment_intent_id": intentID}
	if paymentMethodID != "" {
		body["payment_method_id"] = paymentMethodID
	}
	var out struct {
		Payment paymentWire `json:"payment"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/payments/confirm_payment/", body: body, auth: true}, &out); err != nil {
		return models.Payment{}, err
	}
	return out.Payment.toModel(), nil
}

func (c *Client) PaymentStatus(ctx context.Context, id string) (models.Payment, error) {
	var out paymentWire
	if err := c.do(ctx, call{method: http.MethodGet, path: "/payments/" + url.PathEscape(id) + "/status/", auth: true}, &out); err != nil {
		return models.Payment{}, err
	}
	return out.toModel(), nil
}

func (c *Client) CancelPayment(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/payments/" + url.PathEscape(id) + "/cancel/", auth: true}, nil)
}

func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (models.Refund, error) {
	body := map[string]string{
		"payment_id": paymentID,
		"amount":     amount.StringFixed(2),
		"reason":     reason,
	}
	var out struct {
		Refund refundWire `json:"refund"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/payments/create_refund/", body: body, auth: true}, &out); err != nil {
		return models.Refund{}, err
	}
	return out.Refund.toModel(), nil
}

func (c *Client) Refunds(ctx context.Context) ([]models.Refund, error) {
	var out struct {
		Refunds []refundWire `json:"refunds"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/payments/refunds/", auth: true}, &out); err != nil {
		return nil, err
	}
	return convert(out.Refunds, refundWire.toModel), nil
}

// PublicInvoice loads a shared invoice without authentication.
func (c *Client) PublicInvoice(ctx context.Context, slug string) (models.Invoice, []models.Payment, error) {
	var out struct {
		Invoice  invoiceWire   `json:"invoice"`
		Payments []paymentWire `json:"payments"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/public/invoice/" + url.PathEscape(slug) + "/"}, &out); err != nil {
		return models.Invoice{}, nil, err
	}
	return out.Invoice.toModel(), convert(out.Payments, paymentWire.toModel), nil
}
