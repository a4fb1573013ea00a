package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/pdf"
	"github.com/mohsenfayyazi/billder/telemetry"
	"github.com/mohsenfayyazi/billder/views"
)

// PublicInvoice is the page behind a share link. It starts the PDF download
// and then closes itself.
func (d *Dashboard) PublicInvoice(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "PublicInvoice")
	defer span.End()

	slug := c.Param("slug")
	span.SetAttributes(map[string]interface{}{"slug": slug})

	inv, _, err := d.client(c).PublicInvoice(ctx, slug)
	if err != nil {
		d.pageError(c, span, "public_invoice", nil, err)
		return
	}
	d.page(c, http.StatusOK, "public_invoice", gin.H{
		"Invoice":     inv,
		"Row":         views.NewInvoiceRow(inv),
		"DownloadURL": "/invoice/" + slug + "/pdf",
	})
}

func (d *Dashboard) PublicInvoicePDF(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "PublicInvoicePDF")
	defer span.End()

	inv, payments, err := d.client(c).PublicInvoice(ctx, c.Param("slug"))
	if err != nil {
		d.pageError(c, span, "public_invoice", nil, err)
		return
	}
	d.sendPDF(c, span, inv, payments)
}

// InvoicePDF downloads an invoice the signed-in user can see.
func (d *Dashboard) InvoicePDF(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "InvoicePDF")
	defer span.End()

	id := c.Param("id")
	client := d.client(c)
	inv, err := client.Invoice(ctx, id)
	if err != nil {
		d.pageError(c, span, "error", gin.H{"Title": "Invoice unavailable"}, err)
		return
	}
	payments, err := client.Payments(ctx, id)
	if err != nil {
		d.pageError(c, span, "error", gin.H{"Title": "Invoice unavailable"}, err)
		return
	}
	d.sendPDF(c, span, inv, payments)
}

func (d *Dashboard) sendPDF(c *gin.Context, span telemetry.Span, inv models.Invoice, payments []models.Payment) {
	var buf bytes.Buffer
	if err := d.pdf.Render(&buf, inv, payments); err != nil {
		span.SetError(err.Error(), "")
		requestLogger(c).Error().Err(err).Str("invoice", inv.Reference).Msg("failed to render pdf")
		d.page(c, http.StatusInternalServerError, "error", gin.H{
			"Title":   "Something went wrong",
			"Message": "Failed to generate PDF. Please try again.",
		})
		return
	}
	span.SetAttributes(map[string]interface{}{"invoice": inv.Reference, "bytes": buf.Len()})
	c.Header("Content-Disposition", `attachment; filename="`+pdf.Filename(inv.Reference)+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
