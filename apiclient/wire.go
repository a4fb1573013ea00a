package apiclient

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohsenfayyazi/billder/models"
)

// Backend response schemas. Amounts may arrive as JSON strings or numbers;
// decimal decodes both. Everything is converted to models types before it
// leaves this package.

type partyWire struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type invoiceWire struct {
	ID               string              `json:"id"`
	Reference        string              `json:"reference"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	AmountPaid       decimal.Decimal     `json:"amount_paid"`
	RemainingBalance decimal.NullDecimal `json:"remaining_balance"`
	Status           string              `json:"status"`
	Currency         string              `json:"currency"`
	DueDate          string              `json:"due_date"`
	CreatedAt        string              `json:"created_at"`
	IsOverdue        bool                `json:"is_overdue"`
	PublicSlug       string              `json:"public_slug"`
	Customer         *partyWire          `json:"customer"`
	Owner            *partyWire          `json:"owner"`

	// list rows flatten the parties
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	OwnerName     string `json:"owner_name"`
	OwnerEmail    string `json:"owner_email"`
}

func (w invoiceWire) toModel() models.Invoice {
	return models.Invoice{
		ID:               w.ID,
		Reference:        w.Reference,
		TotalAmount:      w.TotalAmount,
		AmountPaid:       w.AmountPaid,
		RemainingBalance: w.RemainingBalance,
		Status:           models.InvoiceStatus(w.Status),
		Currency:         w.Currency,
		DueDate:          parseTime(w.DueDate),
		CreatedAt:        parseTime(w.CreatedAt),
		IsOverdue:        w.IsOverdue,
		PublicSlug:       w.PublicSlug,
		Customer:         toParty(w.Customer, w.CustomerName, w.CustomerEmail),
		Owner:            toParty(w.Owner, w.OwnerName, w.OwnerEmail),
	}
}

func toParty(p *partyWire, name, email string) *models.Party {
	if p != nil {
		return &models.Party{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
	}
	if name == "" && email == "" {
		return nil
	}
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	return &models.Party{FirstName: first, LastName: last, Email: email}
}

type paymentWire struct {
	ID                string              `json:"id"`
	Invoice           string              `json:"invoice"`
	InvoiceReference  string              `json:"invoice_reference"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	Status            string              `json:"status"`
	PaymentMethod     string              `json:"payment_method"`
	ExternalPaymentID string              `json:"external_payment_id"`
	ClientSecret      string              `json:"client_secret"`
	Description       string              `json:"description"`
	CreatedAt         string              `json:"created_at"`
	ProcessedAt       string              `json:"processed_at"`
	RefundAmount      decimal.NullDecimal `json:"refund_amount"`
	RefundStatus      string              `json:"refund_status"`
	RefundedAt        string              `json:"refunded_at"`
	ExternalRefundID  string              `json:"external_refund_id"`
	RefundReason      string              `json:"refund_reason"`
}

func (w paymentWire) toModel() models.Payment {
	p := models.Payment{
		ID:                w.ID,
		InvoiceID:         w.Invoice,
		InvoiceReference:  w.InvoiceReference,
		Amount:            w.Amount,
		Currency:          w.Currency,
		Status:            models.PaymentStatus(w.Status),
		PaymentMethod:     w.PaymentMethod,
		ExternalPaymentID: w.ExternalPaymentID,
		ClientSecret:      w.ClientSecret,
		Description:       w.Description,
		CreatedAt:         parseTime(w.CreatedAt),
		ProcessedAt:       parseTimePtr(w.ProcessedAt),
	}
	if w.RefundStatus != "" {
		p.Refund = &models.RefundInfo{
			Amount:           w.RefundAmount.Decimal,
			Status:           models.PaymentStatus(w.RefundStatus),
			RefundedAt:       parseTimePtr(w.RefundedAt),
			ExternalRefundID: w.ExternalRefundID,
			Reason:           w.RefundReason,
		}
	}
	return p
}

type refundWire struct {
	ID               string              `json:"id"`
	PaymentReference string              `json:"payment_reference"`
	CustomerName     string              `json:"customer_name"`
	CustomerEmail    string              `json:"customer_email"`
	Amount           decimal.Decimal     `json:"amount"`
	RefundAmount     decimal.NullDecimal `json:"refund_amount"`
	RefundStatus     string              `json:"refund_status"`
	RefundedAt       string              `json:"refunded_at"`
	ExternalRefundID string              `json:"external_refund_id"`
}

func (w refundWire) toModel() models.Refund {
	return models.Refund{
		PaymentID:        w.ID,
		PaymentReference: w.PaymentReference,
		CustomerName:     w.CustomerName,
		CustomerEmail:    w.CustomerEmail,
		Amount:           w.Amount,
		RefundAmount:     w.RefundAmount.Decimal,
		RefundStatus:     models.PaymentStatus(w.RefundStatus),
		RefundedAt:       parseTimePtr(w.RefundedAt),
		ExternalRefundID: w.ExternalRefundID,
	}
}

type authWire struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type envelope struct {
	Success *bool `json:"success"`
}

func convert[W any, M any](in []W, fn func(W) M) []M {
	out := make([]M, 0, len(in))
	for _, w := range in {
		out = append(out, fn(w))
	}
	return out
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"}

// parseTime returns the zero time for empty or unrecognized values.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimePtr(s string) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
