package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRemainingDerivesWhenServerOmitsIt(t *testing.T) {
	inv := Invoice{TotalAmount: dec("1000.00"), AmountPaid: dec("300.00"), Status: InvoicePartiallyPaid}

	assert.Equal(t, "700.00", inv.Remaining().StringFixed(2))
	assert.Equal(t, "$700.00 CAD", FormatMoney(inv.Remaining(), inv.CurrencyOrDefault()))
}

func TestRemainingRoundsToCents(t *testing.T) {
	inv := Invoice{TotalAmount: dec("10.005"), AmountPaid: dec("0")}
	assert.True(t, inv.Remaining().Equal(dec("10.01")))

	inv = Invoice{TotalAmount: dec("250.00"), AmountPaid: dec("250.00")}
	assert.Equal(t, "0.00", inv.Remaining().StringFixed(2))
}

func TestRemainingPrefersServerValue(t *testing.T) {
	inv := Invoice{
		TotalAmount:      dec("1000"),
		AmountPaid:       dec("300"),
		RemainingBalance: decimal.NewNullDecimal(dec("650")),
	}
	assert.True(t, inv.Remaining().Equal(dec("650")))

	inv.RemainingBalance = decimal.NewNullDecimal(decimal.Zero)
	assert.True(t, inv.Remaining().IsZero())
}

func TestPayable(t *testing.T) {
	cases := []struct {
		name string
		inv  Invoice
		want bool
	}{
		{"pending with balance", Invoice{TotalAmount: dec("100"), Status: InvoicePending}, true},
		{"overdue with balance", Invoice{TotalAmount: dec("100"), AmountPaid: dec("40"), Status: InvoiceOverdue}, true},
		{"paid status", Invoice{TotalAmount: dec("100"), Status: InvoicePaid}, false},
		{"zero remaining pending", Invoice{TotalAmount: dec("100"), AmountPaid: dec("100"), Status: InvoicePending}, false},
		{"server zero remaining", Invoice{TotalAmount: dec("100"), RemainingBalance: decimal.NewNullDecimal(decimal.Zero), Status: InvoicePartiallyPaid}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.inv.Payable())
		})
	}
}

func TestProjectRefund(t *testing.T) {
	paid := Invoice{TotalAmount: dec("500"), AmountPaid: dec("500"), Status: InvoicePaid}

	partial := ProjectRefund(paid, dec("200"))
	assert.Equal(t, InvoicePartiallyPaid, partial.Status)
	assert.True(t, partial.Remaining().Equal(dec("200")))
	assert.True(t, partial.Payable())

	full := ProjectRefund(paid, dec("500"))
	assert.Equal(t, InvoicePending, full.Status)
	assert.True(t, full.Remaining().Equal(dec("500")))
}

func TestPaymentRefundable(t *testing.T) {
	p := Payment{Amount: dec("100"), Status: PaymentSucceeded}
	assert.True(t, p.Refundable(dec("100")))
	assert.False(t, p.Refundable(dec("100.01")))
	assert.False(t, p.Refundable(decimal.Zero))

	p.Status = PaymentPending
	assert.False(t, p.Refundable(dec("10")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "PARTIALLY PAID", StatusLabel(InvoicePartiallyPaid))
	assert.Equal(t, "SUCCEEDED", StatusLabel(PaymentSucceeded))
}

func TestPartyFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Party{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", Party{FirstName: "Ada"}.FullName())
}
