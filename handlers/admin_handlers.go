package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/telemetry"
	"github.com/mohsenfayyazi/billder/validation"
	"github.com/mohsenfayyazi/billder/views"
)

const (
	recentInvoices      = 5
	adminInvoiceBase    = "/admin/invoices"
	customerInvoiceBase = "/customer/invoices"
)

func (d *Dashboard) AdminDashboard(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "AdminDashboard")
	defer span.End()

	data := gin.H{"Greeting": d.sessionFor(c).Greeting(ctx, views.OwnerFallback)}
	client := d.client(c)

	totals, err := client.Totals(ctx)
	if err != nil {
		d.pageError(c, span, "admin_dashboard", data, err)
		return
	}
	stats, err := client.CustomerStats(ctx)
	if err != nil {
		d.pageError(c, span, "admin_dashboard", data, err)
		return
	}
	invoices, err := client.Invoices(ctx, "")
	if err != nil {
		d.pageError(c, span, "admin_dashboard", data, err)
		return
	}
	if len(invoices) > recentInvoices {
		invoices = invoices[:recentInvoices]
	}

	data["Summary"] = views.NewAdminSummary(totals, stats, d.cfg.Currency)
	data["Invoices"] = views.InvoiceRows(invoices)
	data["InvoiceBase"] = adminInvoiceBase
	d.page(c, http.StatusOK, "admin_dashboard", data)
}

func (d *Dashboard) AdminInvoices(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "AdminInvoices")
	defer span.End()

	d.renderAdminInvoices(ctx, c, span, http.StatusOK, gin.H{"Currency": d.cfg.Currency})
}

type CreateInvoiceRequest struct {
	CustomerEmail string `form:"customer_email"`
	TotalAmount   string `form:"total_amount"`
	Currency      string `form:"currency"`
	DueDate       string `form:"due_date"`
}

func (d *Dashboard) CreateInvoice(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "CreateInvoice")
	defer span.End()

	var req CreateInvoiceRequest
	if err := c.ShouldBind(&req); err != nil {
		d.pageError(c, span, "admin_invoices", nil, err)
		return
	}
	form := gin.H{
		"CustomerEmail": req.CustomerEmail,
		"TotalAmount":   req.TotalAmount,
		"Currency":      req.Currency,
		"DueDate":       req.DueDate,
	}

	in, err := apiclient.ParseNewInvoice(req.CustomerEmail, req.TotalAmount, req.Currency, req.DueDate, d.cfg.Currency)
	if err != nil {
		span.SetError(err.Error(), "")
		form["Error"] = apierror.Message(err)
		d.renderAdminInvoices(ctx, c, span, http.StatusBadRequest, form)
		return
	}
	span.SetAttributes(map[string]interface{}{"customer_email": in.CustomerEmail, "total_amount": in.TotalAmount.StringFixed(2)})

	inv, err := d.actionClient(c).CreateInvoice(ctx, in)
	if err != nil {
		if apierror.Is(err, apierror.KindAuth) {
			d.pageError(c, span, "admin_invoices", form, err)
			return
		}
		span.SetError(err.Error(), "")
		form["Error"] = apierror.Message(err)
		d.renderAdminInvoices(ctx, c, span, statusFor(err), form)
		return
	}
	requestLogger(c).Info().Str("invoice", inv.Reference).Msg("invoice created")
	c.Redirect(http.StatusSeeOther, adminInvoiceBase+"/"+inv.ID+"?created=1")
}

// renderAdminInvoices lists invoices under data, which may already carry a
// rejected create form.
func (d *Dashboard) renderAdminInvoices(ctx context.Context, c *gin.Context, span telemetry.Span, status int, data gin.H) {
	filter := c.Query("status")
	data["Status"] = filter
	invoices, err := d.client(c).Invoices(ctx, models.InvoiceStatus(filter))
	if err != nil {
		d.pageError(c, span, "admin_invoices", data, err)
		return
	}
	data["Invoices"] = views.InvoiceRows(invoices)
	data["InvoiceBase"] = adminInvoiceBase
	d.page(c, status, "admin_invoices", data)
}

func (d *Dashboard) AdminInvoice(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "AdminInvoice")
	defer span.End()

	data := gin.H{}
	if c.Query("created") != "" {
		data["Notice"] = "Invoice created successfully"
	}
	if c.Query("refunded") != "" {
		data["Notice"] = "Refund processed successfully"
	}
	d.renderAdminInvoice(ctx, c, span, http.StatusOK, data)
}

func (d *Dashboard) renderAdminInvoice(ctx context.Context, c *gin.Context, span telemetry.Span, status int, data gin.H) {
	id := c.Param("id")
	span.SetAttributes(map[string]interface{}{"invoice_id": id})
	client := d.client(c)

	inv, err := client.Invoice(ctx, id)
	if err != nil {
		d.pageError(c, span, "admin_invoice", data, err)
		return
	}
	payments, err := client.Payments(ctx, id)
	if err != nil {
		d.pageError(c, span, "admin_invoice", data, err)
		return
	}
	refunds, err := client.Refunds(ctx)
	if err != nil {
		// refund history is secondary; the rest of the page still renders
		span.SetError(err.Error(), "")
		requestLogger(c).Warn().Err(err).Msg("failed to load refund history")
	}

	data["Invoice"] = inv
	data["Row"] = views.NewInvoiceRow(inv)
	data["Payments"] = payments
	data["Refundable"] = views.RefundablePayments(payments)
	data["Refunds"] = views.RefundsForInvoice(refunds, inv.Reference)
	data["ShareLink"] = views.ShareLink(d.cfg.FrontendURL, inv.PublicSlug)
	d.page(c, status, "admin_invoice", data)
}

type RefundRequest struct {
	PaymentID string `form:"payment_id"`
	Amount    string `form:"amount"`
	Reason    string `form:"reason"`
}

func (d *Dashboard) Refund(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "Refund")
	defer span.End()

	var req RefundRequest
	if err := c.ShouldBind(&req); err != nil {
		d.pageError(c, span, "admin_invoice", nil, err)
		return
	}
	id := c.Param("id")
	data := gin.H{"RefundAmount": req.Amount, "RefundReason": req.Reason, "RefundPayment": req.PaymentID}

	fail := func(status int, err error) {
		span.SetError(err.Error(), "")
		if apierror.Is(err, apierror.KindAuth) {
			c.Redirect(http.StatusSeeOther, "/login")
			return
		}
		data["Error"] = apierror.Message(err)
		d.renderAdminInvoice(ctx, c, span, status, data)
	}

	if req.PaymentID == "" {
		fail(http.StatusBadRequest, apierror.Validation("Please select a payment to refund"))
		return
	}
	amount, err := validation.Amount(req.Amount)
	if err != nil {
		fail(http.StatusBadRequest, err)
		return
	}

	payments, err := d.client(c).Payments(ctx, id)
	if err != nil {
		fail(statusFor(err), err)
		return
	}
	var target *models.Payment
	for i := range payments {
		if payments[i].ID == req.PaymentID {
			target = &payments[i]
		}
	}
	if target == nil {
		fail(http.StatusNotFound, apierror.Validation("Payment not found on this invoice"))
		return
	}
	if !target.Refundable(amount) {
		fail(http.StatusBadRequest, apierror.Validation("Refund amount cannot exceed the payment amount of "+models.FormatMoney(target.Amount, target.Currency)))
		return
	}

	reason := validation.Sanitize(req.Reason)
	if reason == "" {
		reason = "Refund requested by business owner"
	}
	refund, err := d.actionClient(c).CreateRefund(ctx, target.ID, amount, reason)
	if err != nil {
		fail(statusFor(err), err)
		return
	}
	requestLogger(c).Info().
		Str("payment", target.ID).
		Str("amount", refund.RefundAmount.StringFixed(2)).
		Msg("refund created")
	c.Redirect(http.StatusSeeOther, adminInvoiceBase+"/"+id+"?refunded=1")
}
