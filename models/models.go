package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBusinessOwner Role = "business_owner"
	RoleCustomer      Role = "customer"
)

type InvoiceStatus string

const (
	InvoicePending       InvoiceStatus = "pending"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCanceled   PaymentStatus = "canceled"
)

// DefaultCurrency is used when the backend omits one.
const DefaultCurrency = "CAD"

type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// Party is the customer or owner summary embedded in an invoice.
type Party struct {
	FirstName string
	LastName  string
	Email     string
}

func (p Party) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Invoice struct {
	ID               string
	Reference        string
	TotalAmount      decimal.Decimal
	AmountPaid       decimal.Decimal
	RemainingBalance decimal.NullDecimal // unset means derive from total and paid
	Status           InvoiceStatus
	Currency         string
	DueDate          time.Time
	CreatedAt        time.Time
	IsOverdue        bool
	PublicSlug       string
	Customer         *Party
	Owner            *Party
}

// Remaining prefers the server's balance and otherwise derives
// total - paid rounded to cents.
func (inv Invoice) Remaining() decimal.Decimal {
	if inv.RemainingBalance.Valid {
		return inv.RemainingBalance.Decimal
	}
	return inv.TotalAmount.Sub(inv.AmountPaid).Round(2)
}

// Payable reports whether the invoice can accept another payment.
func (inv Invoice) Payable() bool {
	return inv.Remaining().IsPositive() && inv.Status != InvoicePaid
}

func (inv Invoice) CurrencyOrDefault() string {
	if inv.Currency == "" {
		return DefaultCurrency
	}
	return inv.Currency
}

// ProjectRefund previews the invoice after refunding amount. The backend
// applies the same rule and remains authoritative.
func ProjectRefund(inv Invoice, amount decimal.Decimal) Invoice {
	out := inv
	out.AmountPaid = inv.AmountPaid.Sub(amount)
	out.RemainingBalance = decimal.NullDecimal{}
	switch {
	case !out.AmountPaid.IsPositive():
		out.Status = InvoicePending
	case out.AmountPaid.LessThan(out.TotalAmount):
		out.Status = InvoicePartiallyPaid
	default:
		out.Status = InvoicePaid
	}
	return out
}

type RefundInfo struct {
	Amount           decimal.Decimal
	Status           PaymentStatus
	RefundedAt       *time.Time
	ExternalRefundID string
	Reason           string
}

type Payment struct {
	ID                string
	InvoiceID         string
	InvoiceReference  string
	Amount            decimal.Decimal
	Currency          string
	Status            PaymentStatus
	PaymentMethod     string
	ExternalPaymentID string
	ClientSecret      string
	Description       string
	CreatedAt         time.Time
	ProcessedAt       *time.Time
	Refund            *RefundInfo
}

// Refundable reports whether amount can still be refunded from p.
func (p Payment) Refundable(amount decimal.Decimal) bool {
	return p.Status == PaymentSucceeded && amount.IsPositive() && !amount.GreaterThan(p.Amount)
}

// Refund is one row of the backend's refund listing.
type Refund struct {
	PaymentID        string
	PaymentReference string
	CustomerName     string
	CustomerEmail    string
	Amount           decimal.Decimal
	RefundAmount     decimal.Decimal
	RefundStatus     PaymentStatus
	RefundedAt       *time.Time
	ExternalRefundID string
}

// FormatMoney renders d as "$700.00 CAD".
func FormatMoney(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return "$" + d.StringFixed(2) + " " + currency
}

// StatusLabel renders a status value for display, e.g. "PARTIALLY PAID".
func StatusLabel[S ~string](status S) string {
	return strings.ToUpper(strings.ReplaceAll(string(status), "_", " "))
}

// StorageEntry is one client-held key in a session namespace.
type StorageEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Namespace string `gorm:"not null;uniqueIndex:idx_namespace_key"`
	Key       string `gorm:"not null;uniqueIndex:idx_namespace_key"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}
