package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohsenfayyazi/billder/models"
)

var ErrSettlementTimeout = errors.New("payment not yet reflected on the invoice")

// InvoiceFetcher reloads an invoice.
type InvoiceFetcher interface {
	Invoice(ctx context.Context, id string) (models.Invoice, error)
}

// AwaitSettlement polls until the invoice shows more than paidBefore or is
// marked paid. On timeout it returns the last snapshot with
// ErrSettlementTimeout. Fetch errors are retried until the deadline.
func AwaitSettlement(ctx context.Context, fetch InvoiceFetcher, invoiceID string, paidBefore decimal.Decimal, interval, timeout time.Duration) (models.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last models.Invoice
	var lastErr error
	for {
		inv, err := fetch.Invoice(ctx, invoiceID)
		if err == nil {
			last = inv
			if inv.AmountPaid.GreaterThan(paidBefore) || inv.Status == models.InvoicePaid {
				return inv, nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if last.ID == "" && lastErr != nil {
				return last, errors.Join(ErrSettlementTimeout, lastErr)
			}
			return last, ErrSettlementTimeout
		case <-ticker.C:
		}
	}
}
