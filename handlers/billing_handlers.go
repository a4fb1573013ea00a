package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/payment"
	"github.com/mohsenfayyazi/billder/processor"
	"github.com/mohsenfayyazi/billder/validation"
	"github.com/mohsenfayyazi/billder/views"
)

func (d *Dashboard) CustomerDashboard(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "CustomerDashboard")
	defer span.End()

	data := gin.H{"Greeting": d.sessionFor(c).Greeting(ctx, views.CustomerFallback)}
	invoices, err := d.client(c).Invoices(ctx, "")
	if err != nil {
		d.pageError(c, span, "customer_dashboard", data, err)
		return
	}

	outstanding := decimal.Zero
	open := 0
	for _, inv := range invoices {
		if inv.Payable() {
			open++
			outstanding = outstanding.Add(inv.Remaining())
		}
	}
	if len(invoices) > recentInvoices {
		invoices = invoices[:recentInvoices]
	}
	data["Invoices"] = views.InvoiceRows(invoices)
	data["InvoiceBase"] = customerInvoiceBase
	data["OpenCount"] = open
	data["Outstanding"] = models.FormatMoney(outstanding, d.cfg.Currency)
	d.page(c, http.StatusOK, "customer_dashboard", data)
}

func (d *Dashboard) CustomerInvoices(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "CustomerInvoices")
	defer span.End()

	invoices, err := d.client(c).Invoices(ctx, "")
	if err != nil {
		d.pageError(c, span, "customer_invoices", nil, err)
		return
	}
	d.page(c, http.StatusOK, "customer_invoices", gin.H{
		"Invoices":    views.InvoiceRows(invoices),
		"InvoiceBase": customerInvoiceBase,
	})
}

func (d *Dashboard) CustomerInvoice(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "CustomerInvoice")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(map[string]interface{}{"invoice_id": id})
	client := d.client(c)

	data := gin.H{}
	if c.Query("paid") != "" {
		data["Notice"] = "Payment successful! Thank you."
	}
	inv, err := client.Invoice(ctx, id)
	if err != nil {
		d.pageError(c, span, "customer_invoice", data, err)
		return
	}
	payments, err := client.Payments(ctx, id)
	if err != nil {
		d.pageError(c, span, "customer_invoice", data, err)
		return
	}
	data["Invoice"] = inv
	data["Row"] = views.NewInvoiceRow(inv)
	data["Payments"] = payments
	d.page(c, http.StatusOK, "customer_invoice", data)
}

func (d *Dashboard) CustomerPayments(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "CustomerPayments")
	defer span.End()

	filter := views.PaymentFilter{Search: c.Query("search"), Status: c.DefaultQuery("status", views.StatusAll)}
	data := gin.H{"Filter": filter}

	payments, err := d.client(c).Payments(ctx, "")
	if err != nil {
		d.pageError(c, span, "customer_payments", data, err)
		return
	}
	filtered := views.FilterPayments(payments, filter)
	data["Payments"] = filtered
	data["Summary"] = views.SummarizePayments(filtered)
	data["Currency"] = d.cfg.Currency
	d.page(c, http.StatusOK, "customer_payments", data)
}

// PaymentPage renders the amount and card form. The card field itself is
// mounted by Stripe.js when a publishable key is configured.
func (d *Dashboard) PaymentPage(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "PaymentPage")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(map[string]interface{}{"invoice_id": id})

	inv, err := d.client(c).Invoice(ctx, id)
	if err != nil {
		d.pageError(c, span, "payment", nil, err)
		return
	}
	data := gin.H{
		"Invoice":        inv,
		"Row":            views.NewInvoiceRow(inv),
		"Remaining":      inv.Remaining().StringFixed(2),
		"PublishableKey": d.cfg.StripePublishableKey,
		"StripeEnabled":  d.cfg.StripeJSEnabled(),
	}
	if !d.cfg.StripeJSEnabled() {
		data["Error"] = processor.MsgNotLoaded
	}
	if !inv.Payable() {
		data["Error"] = "This invoice has no remaining balance."
	}
	d.page(c, http.StatusOK, "payment", data)
}

type IntentRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// CreateIntent starts a payment flow for the invoice and returns the client
// secret the browser confirms the card against.
func (d *Dashboard) CreateIntent(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "CreateIntent")
	defer span.End()

	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid amount greater than 0"})
		return
	}
	amount, err := validation.Amount(req.Amount)
	if err != nil {
		jsonError(c, span, err)
		return
	}

	id := c.Param("id")
	client := d.client(c)
	inv, err := client.Invoice(ctx, id)
	if err != nil {
		jsonError(c, span, err)
		return
	}

	flow := payment.NewFlow(client, inv,
		payment.WithLimiter(d.limitsFor(c).Payment),
		payment.WithLogger(*requestLogger(c)),
	)
	if err := flow.CanSubmit(amount); err != nil {
		jsonError(c, span, err)
		return
	}
	if err := d.flows.Start(sessionID(c), id, flow); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusConflict, gin.H{"error": "A payment for this invoice is already in progress"})
		return
	}
	if err := flow.Begin(ctx, amount); err != nil {
		d.flows.Remove(sessionID(c), id)
		jsonError(c, span, err)
		return
	}

	intent := flow.Intent()
	span.SetAttributes(map[string]interface{}{
		"invoice_id":        id,
		"payment_intent_id": intent.Payment.ExternalPaymentID,
		"amount":            amount.StringFixed(2),
	})
	c.JSON(http.StatusCreated, gin.H{
		"success":           true,
		"client_secret":     intent.ClientSecret,
		"payment_intent_id": intent.Payment.ExternalPaymentID,
		"amount":            amount.StringFixed(2),
		"currency":          inv.CurrencyOrDefault(),
	})
}

// ConfirmRequest carries either the payment method Stripe.js created or the
// error it reported.
type ConfirmRequest struct {
	PaymentMethodID string             `json:"payment_method_id"`
	Error           *processor.Failure `json:"error"`
}

func (d *Dashboard) ConfirmPayment(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "ConfirmPayment")
	defer span.End()

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": processor.MsgCheckPaymentInfo})
		return
	}

	id := c.Param("id")
	flow, ok := d.flows.Get(sessionID(c), id)
	if !ok {
		err := payment.ErrNoIntent
		span.SetError(err.Error(), "")
		c.JSON(http.StatusConflict, gin.H{"error": "No payment in progress. Please start again."})
		return
	}

	var src payment.CardSource = payment.PaymentMethodID(req.PaymentMethodID)
	if req.Error != nil {
		src = payment.ProcessorFailure(*req.Error)
	}

	if err := flow.Confirm(ctx, src); err != nil {
		switch {
		case errors.Is(err, payment.ErrNoIntent), errors.Is(err, payment.ErrBusy), errors.Is(err, payment.ErrFinished):
			span.SetError(err.Error(), "")
			c.JSON(http.StatusConflict, gin.H{"error": "No payment in progress. Please start again.", "state": flow.State()})
		default:
			if flow.State() == payment.Failed {
				d.flows.Remove(sessionID(c), id)
			}
			e := apierror.Normalize(err)
			span.SetError(err.Error(), "")
			c.JSON(statusFor(e), gin.H{"error": e.Message, "kind": e.Kind, "code": e.Code, "state": flow.State()})
		}
		return
	}
	d.flows.Remove(sessionID(c), id)

	paid := flow.Payment()
	before := flow.Invoice()
	settled := true
	inv, err := payment.AwaitSettlement(ctx, d.client(c), id, before.AmountPaid, d.cfg.SettlePollInterval, d.cfg.SettleTimeout)
	if err != nil {
		// the charge went through; the invoice just has not caught up yet
		settled = false
		requestLogger(c).Warn().Err(err).Str("invoice", before.Reference).Msg("invoice not yet settled")
		if inv.ID == "" {
			inv = before
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"settled": settled,
		"payment": gin.H{
			"id":     paid.ID,
			"status": paid.Status,
			"amount": paid.Amount.StringFixed(2),
		},
		"invoice": gin.H{
			"amount_paid":       inv.AmountPaid.StringFixed(2),
			"remaining_balance": inv.Remaining().StringFixed(2),
			"status":            inv.Status,
		},
		"redirect": customerInvoiceBase + "/" + id + "?paid=1",
	})
}
