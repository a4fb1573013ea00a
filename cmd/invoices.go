package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/views"
)

func newInvoicesCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "List, inspect, create, and share invoices",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List invoices visible to the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			invoices, err := a.client().Invoices(cmd.Context(), models.InvoiceStatus(status))
			if err != nil {
				return err
			}
			if len(invoices) == 0 {
				a.printf("No invoices found.\n")
				return nil
			}
			return a.printInvoices(views.InvoiceRows(invoices))
		},
	}
	list.Flags().String("status", "", "only invoices with this status (pending, partially_paid, paid, overdue)")

	show := &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Show an invoice and its payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.client()
			inv, err := client.Invoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			payments, err := client.Payments(cmd.Context(), inv.ID)
			if err != nil {
				return err
			}
			if err := a.printInvoice(inv); err != nil {
				return err
			}
			a.printf("\nPayments\n")
			if len(payments) == 0 {
				a.printf("No payments yet.\n")
				return nil
			}
			return a.printPayments(payments)
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice for a customer",
		Args:  cobra.NoArgs,
		Example: `  billder invoices create --customer-email cara@example.com --amount 250.00 --due 2026-05-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireRole(cmd.Context(), models.RoleBusinessOwner); err != nil {
				return err
			}
			flags := cmd.Flags()
			email, _ := flags.GetString("customer-email")
			amount, _ := flags.GetString("amount")
			currency, _ := flags.GetString("currency")
			due, _ := flags.GetString("due")

			in, err := apiclient.ParseNewInvoice(email, amount, currency, due, a.Config.Currency)
			if err != nil {
				return err
			}
			inv, err := a.client().CreateInvoice(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("Invoice %s created for %s.\n", inv.Reference, models.FormatMoney(inv.TotalAmount, in.Currency))
			return nil
		},
	}
	create.Flags().String("customer-email", "", "email of the customer to bill")
	create.Flags().String("amount", "", "total amount")
	create.Flags().String("currency", "", "currency code (default CURRENCY)")
	create.Flags().String("due", "", "due date, YYYY-MM-DD")

	share := &cobra.Command{
		Use:   "share <invoice-id>",
		Short: "Print the public link for an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireRole(cmd.Context(), models.RoleBusinessOwner); err != nil {
				return err
			}
			inv, err := a.client().Invoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			link := views.ShareLink(a.Config.FrontendURL, inv.PublicSlug)
			if link == "" {
				return fmt.Errorf("invoice %s has no public link", inv.Reference)
			}
			a.printf("%s\n", link)
			return nil
		},
	}

	cmd.AddCommand(list, show, create, share)
	return cmd
}

func (a *App) printInvoices(rows []views.InvoiceRow) error {
	tw := a.table()
	fmt.Fprintln(tw, "ID\tREFERENCE\tCUSTOMER\tTOTAL\tPAID\tREMAINING\tSTATUS\tDUE")
	for _, r := range rows {
		due := r.DueDate
		if r.Overdue {
			due += " (overdue)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Reference, r.Customer, r.Total, r.Paid, r.Remaining, r.StatusLabel, due)
	}
	return tw.Flush()
}

func (a *App) printInvoice(inv models.Invoice) error {
	r := views.NewInvoiceRow(inv)
	tw := a.table()
	row(tw, "Invoice", r.Reference)
	row(tw, "Customer", customerLine(r))
	row(tw, "Total", r.Total)
	row(tw, "Paid", r.Paid)
	row(tw, "Remaining", r.Remaining)
	row(tw, "Status", r.StatusLabel)
	row(tw, "Due", r.DueDate)
	row(tw, "Created", views.FormatDate(inv.CreatedAt))
	return tw.Flush()
}

func (a *App) printPayments(payments []models.Payment) error {
	tw := a.table()
	fmt.Fprintln(tw, "ID\tINVOICE\tAMOUNT\tSTATUS\tMETHOD\tDATE\tREFUND")
	for _, p := range payments {
		refund := ""
		if p.Refund != nil {
			refund = "-" + models.FormatMoney(p.Refund.Amount, p.Currency)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.InvoiceReference, models.FormatMoney(p.Amount, p.Currency),
			models.StatusLabel(p.Status), p.PaymentMethod, views.FormatDate(p.CreatedAt), refund)
	}
	return tw.Flush()
}

func customerLine(r views.InvoiceRow) string {
	if r.Email == "" {
		return r.Customer
	}
	return r.Customer + " <" + r.Email + ">"
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s:\t%s\n", label, value)
}
