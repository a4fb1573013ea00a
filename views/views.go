// Package views shapes backend data for the dashboard pages and the CLI
// tables.
package views

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/models"
)

// Greeting fallbacks when the stored user cannot be read.
const (
	OwnerFallback    = "Business Owner"
	CustomerFallback = "Customer"
)

func GreetingFallback(role models.Role) string {
	if role == models.RoleBusinessOwner {
		return OwnerFallback
	}
	return CustomerFallback
}

type AdminSummary struct {
	TotalAmount          decimal.Decimal
	TotalPaid            decimal.Decimal
	Remaining            decimal.Decimal
	Currency             string
	TotalCustomers       int
	CustomersWithBalance int
}

func NewAdminSummary(t apiclient.Totals, s apiclient.CustomerStats, currency string) AdminSummary {
	return AdminSummary{
		TotalAmount:          t.TotalAmount,
		TotalPaid:            t.TotalPaid,
		Remaining:            t.Remaining(),
		Currency:             currency,
		TotalCustomers:       s.TotalCustomers,
		CustomersWithBalance: s.CustomersWithBalance,
	}
}

// InvoiceRow is one line of an invoice table.
type InvoiceRow struct {
	ID          string
	Reference   string
	Customer    string
	Email       string
	Total       string
	Paid        string
	Remaining   string
	Status      string
	StatusLabel string
	Badge       string
	DueDate     string
	Overdue     bool
	Payable     bool
}

func NewInvoiceRow(inv models.Invoice) InvoiceRow {
	cur := inv.CurrencyOrDefault()
	row := InvoiceRow{
		ID:          inv.ID,
		Reference:   inv.Reference,
		Customer:    "N/A",
		Total:       models.FormatMoney(inv.TotalAmount, cur),
		Paid:        models.FormatMoney(inv.AmountPaid, cur),
		Remaining:   models.FormatMoney(inv.Remaining(), cur),
		Status:      string(inv.Status),
		StatusLabel: models.StatusLabel(inv.Status),
		Badge:       InvoiceBadge(inv.Status),
		DueDate:     FormatDate(inv.DueDate),
		Overdue:     inv.IsOverdue,
		Payable:     inv.Payable(),
	}
	if inv.Customer != nil {
		row.Customer = inv.Customer.FullName()
		row.Email = inv.Customer.Email
	}
	return row
}

func InvoiceRows(invoices []models.Invoice) []InvoiceRow {
	rows := make([]InvoiceRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, NewInvoiceRow(inv))
	}
	return rows
}

func InvoiceBadge(status models.InvoiceStatus) string {
	switch status {
	case models.InvoicePaid:
		return "bg-success"
	case models.InvoicePartiallyPaid:
		return "bg-warning"
	case models.InvoicePending:
		return "bg-secondary"
	}
	return "bg-danger"
}

func PaymentBadge(status models.PaymentStatus) string {
	switch status {
	case models.PaymentSucceeded:
		return "bg-success"
	case models.PaymentPending:
		return "bg-warning"
	case models.PaymentProcessing:
		return "bg-info"
	case models.PaymentCanceled:
		return "bg-secondary"
	}
	return "bg-danger"
}

// MethodIcon maps a payment method to a bootstrap icon class.
func MethodIcon(method string) string {
	switch strings.ToLower(method) {
	case "card":
		return "bi-credit-card"
	case "bank_transfer":
		return "bi-bank"
	case "paypal":
		return "bi-paypal"
	}
	return "bi-wallet2"
}

// StatusAll disables the status filter.
const StatusAll = "all"

type PaymentFilter struct {
	Search string
	Status string
}

func (f PaymentFilter) Active() bool {
	return f.Search != "" || (f.Status != "" && f.Status != StatusAll)
}

// FilterPayments keeps payments whose invoice reference or description
// contains the search term (case-insensitive) or whose amount contains it,
// and whose status matches.
func FilterPayments(payments []models.Payment, f PaymentFilter) []models.Payment {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if f.Status != "" && f.Status != StatusAll && string(p.Status) != f.Status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.InvoiceReference), term) &&
			!strings.Contains(p.Amount.StringFixed(2), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

type PaymentSummary struct {
	Count     int
	Succeeded int
	Pending   int
	Failed    int
	Total     decimal.Decimal
}

func SummarizePayments(payments []models.Payment) PaymentSummary {
	var s PaymentSummary
	for _, p := range payments {
		s.Count++
		s.Total = s.Total.Add(p.Amount)
		switch p.Status {
		case models.PaymentSucceeded:
			s.Succeeded++
		case models.PaymentPending:
			s.Pending++
		case models.PaymentFailed:
			s.Failed++
		}
	}
	return s
}

// RefundsForInvoice narrows the owner's refund listing to one invoice.
func RefundsForInvoice(refunds []models.Refund, reference string) []models.Refund {
	var out []models.Refund
	for _, r := range refunds {
		if r.PaymentReference == reference {
			out = append(out, r)
		}
	}
	return out
}

// RefundablePayments lists the payments offered in the refund form.
func RefundablePayments(payments []models.Payment) []models.Payment {
	var out []models.Payment
	for _, p := range payments {
		if p.Status == models.PaymentSucceeded && p.Refund == nil {
			out = append(out, p)
		}
	}
	return out
}

// ShareLink is the public URL for an invoice, or "" when it has no slug.
func ShareLink(frontendURL, slug string) string {
	if slug == "" {
		return ""
	}
	return strings.TrimRight(frontendURL, "/") + "/invoice/" + url.PathEscape(slug)
}
