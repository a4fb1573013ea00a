// Package pdf lays out the downloadable invoice document on A4 at fixed
// positions (millimetres).
package pdf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/mohsenfayyazi/billder/models"
)

const (
	left        = 20.0
	right       = 190.0
	center      = 105.0
	valueX      = 80.0
	pageBreakY  = 270.0
	footerRuleY = 280.0
)

// Payment history columns.
var columns = []struct {
	title string
	x     float64
}{
	{"Date", 20}, {"Amount", 50}, {"Status", 90}, {"Method", 125}, {"Refund Status", 155},
}

type Generator struct {
	now      func() time.Time
	compress bool
}

type Option func(*Generator)

// WithClock pins the generation date; output is byte-identical for a
// fixed clock and input.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithoutCompression() Option {
	return func(g *Generator) { g.compress = false }
}

func New(opts ...Option) *Generator {
	g := &Generator{now: time.Now, compress: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Filename is the download name for an invoice.
func Filename(reference string) string {
	return "invoice_" + reference + ".pdf"
}

type doc struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (d *doc) text(x, y float64, s string) {
	d.Text(x, y, d.tr(s))
}

func (d *doc) centered(y float64, s string) {
	s = d.tr(s)
	d.Text(center-d.GetStringWidth(s)/2, y, s)
}

func (d *doc) rightAligned(y float64, s string) {
	s = d.tr(s)
	d.Text(right-d.GetStringWidth(s), y, s)
}

func (d *doc) row(y float64, label, value string, valueStyle string) {
	d.SetFont("Helvetica", "B", 0)
	d.text(left, y, label)
	d.SetFont("Helvetica", valueStyle, 0)
	d.text(valueX, y, value)
}

// Render writes the invoice document to w. Payment history gets its own
// page only when payments is non-empty.
func (g *Generator) Render(w io.Writer, inv models.Invoice, payments []models.Payment) error {
	now := g.now()
	f := fpdf.New("P", "mm", "A4", "")
	f.SetAutoPageBreak(false, 0)
	f.SetCompression(g.compress)
	f.SetCatalogSort(true)
	f.SetCreationDate(now)
	f.SetModificationDate(now)
	f.SetTitle(Filename(inv.Reference), true)
	f.SetCreator("Billder", true)

	d := &doc{Fpdf: f, tr: f.UnicodeTranslatorFromDescriptor("")}
	d.AddPage()
	d.header()
	d.details(inv)
	d.customer(inv)
	d.financial(inv)
	if len(payments) > 0 {
		d.history(payments, inv.CurrencyOrDefault())
	}
	d.footers(now)

	if err := d.Error(); err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.Reference, err)
	}
	return d.Output(w)
}

func (d *doc) header() {
	d.SetFont("Helvetica", "B", 24)
	d.centered(20, "BILLDER")

	d.SetFont("Helvetica", "", 12)
	d.SetTextColor(100, 100, 100)
	d.centered(28, "Invoice Management System")
	d.SetTextColor(0, 0, 0)

	d.SetLineWidth(0.5)
	d.Line(left, 35, right, 35)
}

func (d *doc) section(y float64, title string) {
	d.SetFont("Helvetica", "B", 14)
	d.text(left, y, title)
}

func (d *doc) details(inv models.Invoice) {
	y := 50.0
	d.section(y, "Invoice Details")
	y += 10

	d.SetFontSize(10)
	rows := [][2]string{
		{"Invoice Reference:", inv.Reference},
		{"Invoice Date:", formatDate(inv.CreatedAt)},
		{"Due Date:", formatDate(inv.DueDate)},
		{"Status:", models.StatusLabel(inv.Status)},
	}
	if inv.IsOverdue {
		rows = append(rows, [2]string{"Overdue:", "YES"})
	}
	for _, r := range rows {
		d.row(y, r[0], r[1], "")
		y += 6
	}
}

func (d *doc) customer(inv models.Invoice) {
	y := 120.0
	d.section(y, "Customer Information")
	y += 10

	d.SetFont("Helvetica", "", 10)
	if inv.Customer == nil {
		d.text(left, y, "Customer information not available")
		return
	}
	d.row(y, "Customer Name:", inv.Customer.FullName(), "")
	d.row(y+6, "Email:", inv.Customer.Email, "")
}

func (d *doc) financial(inv models.Invoice) {
	y := 180.0
	d.section(y, "Financial Summary")
	y += 10

	cur := inv.CurrencyOrDefault()
	d.SetFontSize(12)
	d.row(y, "Total Amount:", models.FormatMoney(inv.TotalAmount, cur), "")
	d.row(y+8, "Amount Paid:", models.FormatMoney(inv.AmountPaid, cur), "")
	d.row(y+16, "Remaining Balance:", models.FormatMoney(inv.Remaining(), cur), "B")
}

func (d *doc) history(payments []models.Payment, currency string) {
	d.AddPage()
	y := 20.0
	d.SetFont("Helvetica", "B", 16)
	d.text(left, y, "Payment History")
	y += 20

	d.SetFont("Helvetica", "B", 11)
	for _, c := range columns {
		d.text(c.x, y, c.title)
	}
	y += 8
	d.SetLineWidth(0.5)
	d.Line(left, y-2, right, y-2)
	y += 5

	d.SetFont("Helvetica", "", 10)
	for _, p := range payments {
		if y > pageBreakY {
			d.AddPage()
			y = 20
		}
		cur := p.Currency
		if cur == "" {
			cur = currency
		}
		method := strings.ToUpper(p.PaymentMethod)
		if method == "" {
			method = "N/A"
		}

		d.text(columns[0].x, y, formatDate(p.CreatedAt))
		d.text(columns[1].x, y, models.FormatMoney(p.Amount, cur))
		d.text(columns[2].x, y, models.StatusLabel(p.Status))
		d.text(columns[3].x, y, method)
		if p.Refund != nil {
			d.text(columns[4].x, y, "REFUNDED")
			if p.Refund.Amount.IsPositive() {
				d.text(columns[4].x, y+4, "-$"+p.Refund.Amount.StringFixed(2))
			}
		} else {
			d.text(columns[4].x, y, "No refunds")
		}
		y += 8
	}
}

// footers stamps every page once the page count is known. The loop ends
// on the last page so Output sees the full document.
func (d *doc) footers(now time.Time) {
	total := d.PageCount()
	for i := 1; i <= total; i++ {
		d.SetPage(i)
		d.SetLineWidth(0.3)
		d.SetDrawColor(0, 0, 0)
		d.Line(left, footerRuleY, right, footerRuleY)

		d.SetFont("Helvetica", "", 8)
		d.SetTextColor(100, 100, 100)
		d.text(left, 285, "Thank you for your business!")
		d.text(left, 290, "Generated on "+formatDate(now))
		d.rightAligned(290, fmt.Sprintf("Page %d of %d", i, total))
		d.SetTextColor(0, 0, 0)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Jan 2, 2006")
}
