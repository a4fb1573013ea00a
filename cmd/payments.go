package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/logger"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/validation"
	"github.com/mohsenfayyazi/billder/views"
)

const defaultRefundReason = "Refund requested by business owner"

func newPaymentsCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Work with payments",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List payments with optional search and status filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			status, _ := cmd.Flags().GetString("status")
			filter := views.PaymentFilter{Search: search, Status: status}

			payments, err := a.client().Payments(cmd.Context(), "")
			if err != nil {
				return err
			}
			filtered := views.FilterPayments(payments, filter)
			if len(filtered) == 0 {
				if filter.Active() {
					a.printf("No payments match your current filters.\n")
				} else {
					a.printf("No payments yet.\n")
				}
				return nil
			}
			if err := a.printPayments(filtered); err != nil {
				return err
			}
			s := views.SummarizePayments(filtered)
			a.printf("\n%d payments: %d succeeded, %d pending, %d failed. Total %s\n",
				s.Count, s.Succeeded, s.Pending, s.Failed, models.FormatMoney(s.Total, a.Config.Currency))
			return nil
		},
	}
	list.Flags().String("search", "", "match invoice reference, amount, or description")
	list.Flags().String("status", views.StatusAll, "all, pending, processing, succeeded, failed, or canceled")

	status := &cobra.Command{
		Use:   "status <payment-id>",
		Short: "Show the current state of one payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client().PaymentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := a.table()
			row(tw, "Payment", p.ID)
			row(tw, "Amount", models.FormatMoney(p.Amount, p.Currency))
			row(tw, "Status", models.StatusLabel(p.Status))
			if p.ProcessedAt != nil {
				row(tw, "Processed", views.FormatDateTime(*p.ProcessedAt))
			}
			return tw.Flush()
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <payment-id>",
		Short: "Cancel a payment that has not been confirmed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.client()
			p, err := client.PaymentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if p.Status != models.PaymentPending {
				return apierror.Validation("Only pending payments can be canceled")
			}
			if err := client.CancelPayment(cmd.Context(), p.ID); err != nil {
				return err
			}
			a.printf("Payment %s canceled.\n", p.ID)
			return nil
		},
	}

	cmd.AddCommand(list, status, cancel)
	return cmd
}

func newRefundCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund <payment-id>",
		Short: "Refund all or part of a succeeded payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.WithComponent("refund")
			if _, err := a.requireRole(ctx, models.RoleBusinessOwner); err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("amount")
			reason, _ := cmd.Flags().GetString("reason")

			client := a.client()
			payments, err := client.Payments(ctx, "")
			if err != nil {
				return err
			}
			target, err := findPayment(payments, args[0])
			if err != nil {
				return err
			}
			amount := target.Amount
			if raw != "" {
				if amount, err = validation.Amount(raw); err != nil {
					return err
				}
			}
			if !target.Refundable(amount) {
				if target.Status != models.PaymentSucceeded {
					return apierror.Validation("Only succeeded payments can be refunded")
				}
				return apierror.Validation("Refund amount cannot exceed the payment amount of " + models.FormatMoney(target.Amount, target.Currency))
			}
			if reason = validation.Sanitize(reason); reason == "" {
				reason = defaultRefundReason
			}

			// snapshot before the refund so the projection counts it once
			inv, invErr := client.Invoice(ctx, target.InvoiceID)
			if invErr != nil {
				log.Debug().Err(invErr).Str("invoice", target.InvoiceID).Msg("could not load invoice for refund")
			}

			refund, err := client.CreateRefund(ctx, target.ID, amount, reason)
			if err != nil {
				return err
			}
			a.printf("Refunded %s of payment %s (%s).\n",
				models.FormatMoney(refund.RefundAmount, target.Currency), target.ID, models.StatusLabel(refund.RefundStatus))
			if invErr == nil {
				after := models.ProjectRefund(inv, refund.RefundAmount)
				a.printf("Invoice %s now shows %s paid (%s).\n",
					after.Reference, models.FormatMoney(after.AmountPaid, after.CurrencyOrDefault()), models.StatusLabel(after.Status))
			}
			return nil
		},
	}
	cmd.Flags().String("amount", "", "amount to refund (default: the full payment)")
	cmd.Flags().String("reason", "", "reason shown to the customer")
	return cmd
}

func newRefundsCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refunds",
		Short: "List refunds issued",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireRole(cmd.Context(), models.RoleBusinessOwner); err != nil {
				return err
			}
			refunds, err := a.client().Refunds(cmd.Context())
			if err != nil {
				return err
			}
			if ref, _ := cmd.Flags().GetString("invoice"); ref != "" {
				refunds = views.RefundsForInvoice(refunds, ref)
			}
			if len(refunds) == 0 {
				a.printf("No refunds found.\n")
				return nil
			}
			tw := a.table()
			fmt.Fprintln(tw, "PAYMENT\tINVOICE\tCUSTOMER\tPAID\tREFUNDED\tSTATUS\tDATE")
			for _, r := range refunds {
				date := "N/A"
				if r.RefundedAt != nil {
					date = views.FormatDate(*r.RefundedAt)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.PaymentID, r.PaymentReference, r.CustomerName,
					models.FormatMoney(r.Amount, a.Config.Currency), "-"+models.FormatMoney(r.RefundAmount, a.Config.Currency),
					models.StatusLabel(r.RefundStatus), date)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("invoice", "", "only refunds for this invoice reference")
	return cmd
}

func findPayment(payments []models.Payment, id string) (models.Payment, error) {
	for _, p := range payments {
		if strings.EqualFold(p.ID, id) {
			return p, nil
		}
	}
	return models.Payment{}, errors.New("payment not found: " + id)
}
