package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/logger"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/payment"
	"github.com/mohsenfayyazi/billder/processor"
	"github.com/mohsenfayyazi/billder/validation"
)

func newPayCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay <invoice-id>",
		Short: "Pay an invoice by card",
		Long: `Pay all or part of an invoice's remaining balance.

The card is checked locally and then tokenized with Stripe, so card details
never reach the billing API. A payment method created elsewhere can be
passed with --payment-method instead.`,
		Example: `  # Pay the full balance, prompting for the card
  billder pay 3f2a...

  # Pay part of it with a test payment method
  billder pay 3f2a... --amount 50.00 --payment-method pm_card_visa`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPay(cmd.Context(), a, args[0], cmd.Flags())
		},
	}
	cmd.Flags().String("amount", "", "amount to pay (default: remaining balance)")
	cmd.Flags().String("payment-method", "", "existing Stripe payment method id")
	cmd.Flags().String("card-number", "", "card number")
	cmd.Flags().String("exp-month", "", "expiry month (MM)")
	cmd.Flags().String("exp-year", "", "expiry year (YY or YYYY)")
	cmd.Flags().String("cvc", "", "security code")
	return cmd
}

func runPay(ctx context.Context, a *App, invoiceID string, flags *pflag.FlagSet) error {
	if _, err := a.requireRole(ctx, models.RoleCustomer); err != nil {
		return err
	}
	log := logger.WithComponent("pay")
	client := a.client()

	inv, err := client.Invoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	amount := inv.Remaining()
	if raw, _ := flags.GetString("amount"); raw != "" {
		if amount, err = validation.Amount(raw); err != nil {
			return err
		}
	}

	flow := payment.NewFlow(client, inv,
		payment.WithLimiter(a.limits.Payment),
		payment.WithLogger(log),
	)
	if err := flow.CanSubmit(amount); err != nil {
		return err
	}
	src := a.cardSource(flags)

	a.printf("Paying %s towards invoice %s...\n", models.FormatMoney(amount, inv.CurrencyOrDefault()), inv.Reference)
	attempt := func() error {
		if flow.State() != payment.AwaitingCardInput {
			if err := flow.Reset(); err != nil {
				return err
			}
			if err := flow.Begin(ctx, amount); err != nil {
				return err
			}
		}
		return flow.Confirm(ctx, src)
	}

	retrier := apierror.NewRetrier(a.Config.RetryMax)
	if err := attempt(); err != nil {
		last := retrier.Fail(err)
		for {
			a.printf("Payment failed: %s\n", last.Message)
			if !retryable(last) || !retrier.CanRetry() ||
				!a.confirm(fmt.Sprintf("Try again? (%d attempts left)", retrier.Remaining())) {
				return last
			}
			if err := retrier.Retry(attempt); err == nil {
				break
			}
			last = retrier.Last()
		}
	}

	paid := flow.Payment()
	a.printf("Payment of %s %s.\n", models.FormatMoney(paid.Amount, inv.CurrencyOrDefault()), paymentOutcome(paid.Status))

	settled, err := payment.AwaitSettlement(ctx, client, inv.ID, inv.AmountPaid, a.Config.SettlePollInterval, a.Config.SettleTimeout)
	if err != nil {
		log.Debug().Err(err).Str("invoice", inv.Reference).Msg("invoice not yet settled")
		a.printf("The invoice balance will update shortly.\n")
		return nil
	}
	a.printf("Invoice %s: %s remaining (%s).\n",
		settled.Reference, models.FormatMoney(settled.Remaining(), settled.CurrencyOrDefault()), models.StatusLabel(settled.Status))
	return nil
}

// cardSource prefers an existing payment method and otherwise collects card
// details, prompting for any that were not passed as flags.
func (a *App) cardSource(flags *pflag.FlagSet) payment.CardSource {
	if id, _ := flags.GetString("payment-method"); id != "" {
		return payment.PaymentMethodID(id)
	}
	field := func(name, label string) string {
		if v, _ := flags.GetString(name); v != "" {
			return v
		}
		return a.prompt(label)
	}
	return payment.CardDetails{
		Card: processor.Card{
			Number:   field("card-number", "Card number"),
			ExpMonth: field("exp-month", "Expiry month (MM)"),
			ExpYear:  field("exp-year", "Expiry year (YY)"),
			CVC:      field("cvc", "CVC"),
		},
		Tokenizer: a.Tokenizer,
		Now:       a.Now,
	}
}

// retryable reports whether trying the same payment again can help.
func retryable(e *apierror.Error) bool {
	switch e.Kind {
	case apierror.KindNetwork, apierror.KindServer:
		return true
	case apierror.KindProcessor:
		return e.Code != "not_configured" && e.Code != "invalid_payment_method"
	}
	return false
}

func paymentOutcome(status models.PaymentStatus) string {
	if status == models.PaymentProcessing {
		return "is processing"
	}
	return "succeeded"
}
