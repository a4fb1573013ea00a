package payment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsenfayyazi/billder/models"
)

type fetchFunc func(ctx context.Context, id string) (models.Invoice, error)

func (f fetchFunc) Invoice(ctx context.Context, id string) (models.Invoice, error) { return f(ctx, id) }

func TestAwaitSettlementReturnsWhenPaidGrows(t *testing.T) {
	var calls atomic.Int32
	fetch := fetchFunc(func(context.Context, string) (models.Invoice, error) {
		n := calls.Add(1)
		inv := openInvoice()
		if n >= 3 {
			inv.AmountPaid = decimal.NewFromInt(600)
		}
		return inv, nil
	})

	inv, err := AwaitSettlement(context.Background(), fetch, "inv-1", decimal.NewFromInt(300), time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.True(t, inv.AmountPaid.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestAwaitSettlementAcceptsPaidStatus(t *testing.T) {
	fetch := fetchFunc(func(context.Context, string) (models.Invoice, error) {
		inv := openInvoice()
		inv.Status = models.InvoicePaid
		return inv, nil
	})

	_, err := AwaitSettlement(context.Background(), fetch, "inv-1", decimal.NewFromInt(300), time.Millisecond, time.Second)
	assert.NoError(t, err)
}

func TestAwaitSettlementTimesOut(t *testing.T) {
	fetch := fetchFunc(func(context.Context, string) (models.Invoice, error) {
		return openInvoice(), nil
	})

	inv, err := AwaitSettlement(context.Background(), fetch, "inv-1", decimal.NewFromInt(300), 5*time.Millisecond, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrSettlementTimeout)
	assert.Equal(t, "INV-1001", inv.Reference)
}

func TestAwaitSettlementKeepsFetchError(t *testing.T) {
	down := errors.New("backend down")
	fetch := fetchFunc(func(context.Context, string) (models.Invoice, error) {
		return models.Invoice{}, down
	})

	_, err := AwaitSettlement(context.Background(), fetch, "inv-1", decimal.Zero, 5*time.Millisecond, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrSettlementTimeout)
	assert.ErrorIs(t, err, down)
}
