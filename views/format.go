package views

import (
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohsenfayyazi/billder/models"
)

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Jan 2, 2006")
}

func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Jan 2, 2006 15:04")
}

// Funcs are the helpers available to dashboard templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal, currency string) string { return models.FormatMoney(d, currency) },
		"date":  FormatDate,
		"datetime": func(t *time.Time) string {
			if t == nil {
				return "N/A"
			}
			return FormatDateTime(*t)
		},
		"invoiceLabel": models.StatusLabel[models.InvoiceStatus],
		"paymentLabel": models.StatusLabel[models.PaymentStatus],
		"invoiceBadge": InvoiceBadge,
		"paymentBadge": PaymentBadge,
		"methodIcon":   MethodIcon,
	}
}
