package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/pdf"
	"github.com/mohsenfayyazi/billder/views"
)

func newPDFCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf <invoice-id>",
		Short: "Download an invoice as PDF",
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
			dir, _ := cmd.Flags().GetString("output")
			return a.writePDF(dir, inv, payments)
		},
	}
	cmd.Flags().StringP("output", "o", ".", "directory to write the PDF to")
	return cmd
}

func newPublicCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "public <slug>",
		Short: "Fetch a shared invoice by its public link slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, payments, err := a.client().PublicInvoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.printInvoice(inv); err != nil {
				return err
			}
			if download, _ := cmd.Flags().GetBool("download"); !download {
				return nil
			}
			dir, _ := cmd.Flags().GetString("output")
			return a.writePDF(dir, inv, payments)
		},
	}
	cmd.Flags().Bool("download", true, "also save the invoice PDF")
	cmd.Flags().StringP("output", "o", ".", "directory to write the PDF to")
	return cmd
}

func (a *App) writePDF(dir string, inv models.Invoice, payments []models.Payment) error {
	path := filepath.Join(dir, pdf.Filename(inv.Reference))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	gen := pdf.New(pdf.WithClock(a.Now))
	if err := gen.Render(f, inv, payments); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	a.printf("Saved %s\n", path)
	return nil
}

func newTotalsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show billing totals across all invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := a.requireRole(ctx, models.RoleBusinessOwner)
			if err != nil {
				return err
			}
			client := a.client()
			totals, err := client.Totals(ctx)
			if err != nil {
				return err
			}
			stats, err := client.CustomerStats(ctx)
			if err != nil {
				return err
			}
			s := views.NewAdminSummary(totals, stats, a.Config.Currency)

			a.printf("Welcome back, %s!\n\n", greetingName(user))
			tw := a.table()
			row(tw, "Total invoiced", models.FormatMoney(s.TotalAmount, s.Currency))
			row(tw, "Total paid", models.FormatMoney(s.TotalPaid, s.Currency))
			row(tw, "Outstanding", models.FormatMoney(s.Remaining, s.Currency))
			row(tw, "Customers", fmt.Sprint(s.TotalCustomers))
			row(tw, "With balance", fmt.Sprint(s.CustomersWithBalance))
			return tw.Flush()
		},
	}
}

func greetingName(u models.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return views.GreetingFallback(u.Role)
}
