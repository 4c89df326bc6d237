package main

import (
	"context"
	"os"
	"time"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Generate, issue and track invoices",
	Long: `Generate, issue and track invoices.

Manual line item files hold a list of charges:

  - description: Travel
    quantity: 2
    unit_price: 5000`,
}

var invoiceGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft the invoice a client owes on the issue date",
	RunE:  runInvoiceGenerate,
}

var invoiceGenerateAllCmd = &cobra.Command{
	Use:   "generate-all",
	Short: "Draft invoices for many clients on one issue date",
	RunE:  runInvoiceGenerateAll,
}

var invoiceGetCmd = &cobra.Command{
	Use:   "get <invoice-id>",
	Short: "Show an invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceGet,
}

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	RunE:  runInvoiceList,
}

var invoiceUpdateDraftCmd = &cobra.Command{
	Use:   "update-draft <invoice-id>",
	Short: "Replace the manual line items or the tax rate of a draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceUpdateDraft,
}

var invoiceIssueCmd = &cobra.Command{
	Use:   "issue <invoice-id>",
	Short: "Send a draft invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceIssue,
}

var invoiceCancelCmd = &cobra.Command{
	Use:   "cancel <invoice-id>",
	Short: "Cancel an unpaid invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceCancel,
}

var invoiceDeleteCmd = &cobra.Command{
	Use:   "delete <invoice-id>",
	Short: "Delete a draft invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceDelete,
}

var invoiceMarkOverdueCmd = &cobra.Command{
	Use:   "mark-overdue",
	Short: "Move sent invoices past their due date to overdue",
	RunE:  runInvoiceMarkOverdue,
}

var invoiceRenderCmd = &cobra.Command{
	Use:   "render <invoice-id>",
	Short: "Render the invoice document",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceRender,
}

var (
	genClientID  string
	genClientIDs []string
	genIssueDate string
	genDueDate   string
	genTaxRate   string
	genItemsFile string

	invListClient    string
	invListStatus    []string
	invListDueBefore string
	invListFrom      string
	invListTo        string
	invListLimit     int
	invListOffset    int

	renderOut string
)

func init() {
	rootCmd.AddCommand(invoiceCmd)

	invoiceCmd.AddCommand(invoiceGenerateCmd)
	invoiceCmd.AddCommand(invoiceGenerateAllCmd)
	invoiceCmd.AddCommand(invoiceGetCmd)
	invoiceCmd.AddCommand(invoiceListCmd)
	invoiceCmd.AddCommand(invoiceUpdateDraftCmd)
	invoiceCmd.AddCommand(invoiceIssueCmd)
	invoiceCmd.AddCommand(invoiceCancelCmd)
	invoiceCmd.AddCommand(invoiceDeleteCmd)
	invoiceCmd.AddCommand(invoiceMarkOverdueCmd)
	invoiceCmd.AddCommand(invoiceRenderCmd)

	invoiceGenerateCmd.Flags().StringVar(&genClientID, "client", "", "client ID (required)")
	invoiceGenerateCmd.Flags().StringVar(&genIssueDate, "issue-date", "", "issue date, YYYY-MM-DD (default: today)")
	invoiceGenerateCmd.Flags().StringVar(&genDueDate, "due-date", "", "due date, YYYY-MM-DD (default: issue date plus payment term)")
	invoiceGenerateCmd.Flags().StringVar(&genTaxRate, "tax-rate", "", "tax rate override, e.g. 0.08")
	invoiceGenerateCmd.Flags().StringVar(&genItemsFile, "items", "", "YAML file of manual line items")
	_ = invoiceGenerateCmd.MarkFlagRequired("client")

	invoiceGenerateAllCmd.Flags().StringSliceVar(&genClientIDs, "client", nil, "client IDs to bill (default: all clients)")
	invoiceGenerateAllCmd.Flags().StringVar(&genIssueDate, "issue-date", "", "issue date, YYYY-MM-DD (default: today)")

	invoiceListCmd.Flags().StringVar(&invListClient, "client", "", "client ID")
	invoiceListCmd.Flags().StringSliceVar(&invListStatus, "status", nil, "invoice statuses, e.g. sent,overdue")
	invoiceListCmd.Flags().StringVar(&invListDueBefore, "due-before", "", "due strictly before, YYYY-MM-DD")
	invoiceListCmd.Flags().StringVar(&invListFrom, "issued-from", "", "issued on or after, YYYY-MM-DD")
	invoiceListCmd.Flags().StringVar(&invListTo, "issued-to", "", "issued on or before, YYYY-MM-DD")
	invoiceListCmd.Flags().IntVar(&invListLimit, "limit", 50, "maximum number of invoices")
	invoiceListCmd.Flags().IntVar(&invListOffset, "offset", 0, "number of invoices to skip")

	invoiceUpdateDraftCmd.Flags().StringVar(&genTaxRate, "tax-rate", "", "new tax rate, e.g. 0.08")
	invoiceUpdateDraftCmd.Flags().StringVar(&genItemsFile, "items", "", "YAML file replacing the manual line items")

	invoiceRenderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "write the document to a file instead of stdout")
}

func readManualItems(path string) ([]dto.ManualLineItemRequest, error) {
	if path == "" {
		return nil, nil
	}
	var items []dto.ManualLineItemRequest
	if err := readYAML(path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// manualItemsOf converts the manual line items of inv back to requests
func manualItemsOf(inv *invoice.Invoice) []dto.ManualLineItemRequest {
	manual := lo.Filter(inv.LineItems, func(item *invoice.LineItem, _ int) bool {
		return item.Kind == types.LineItemKindManual
	})
	return lo.Map(manual, func(item *invoice.LineItem, _ int) dto.ManualLineItemRequest {
		return dto.ManualLineItemRequest{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	})
}

// parseFlagDate parses an optional date flag, nil when unset
func parseFlagDate(flag, value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := types.ParseDate(value, loc)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("--%s must be a date in YYYY-MM-DD format", flag).
			Mark(ierr.ErrValidation)
	}
	return &d, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return lo.ToPtr(s)
}

func runInvoiceGenerate(cmd *cobra.Command, args []string) error {
	items, err := readManualItems(genItemsFile)
	if err != nil {
		return err
	}
	return run(cmd, func(ctx context.Context, a *app) error {
		issueDate := genIssueDate
		if issueDate == "" {
			if issueDate, err = a.today(); err != nil {
				return err
			}
		}
		resp, err := a.Invoices.GenerateInvoice(ctx, dto.GenerateInvoiceRequest{
			ClientID:        genClientID,
			IssueDate:       issueDate,
			DueDate:         optional(genDueDate),
			TaxRate:         optional(genTaxRate),
			ManualLineItems: items,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runInvoiceGenerateAll(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		issueDate := genIssueDate
		if issueDate == "" {
			var err error
			if issueDate, err = a.today(); err != nil {
				return err
			}
		}
		resp, err := a.Invoices.GenerateInvoices(ctx, dto.GenerateInvoicesRequest{
			ClientIDs: genClientIDs,
			IssueDate: issueDate,
		})
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
		if len(resp.Failed) > 0 {
			return ierr.NewErrorf("%d of the clients could not be invoiced", len(resp.Failed)).
				WithHint("See the failed list for the reason per client").
				Mark(ierr.ErrInvalidOperation)
		}
		return nil
	})
}

func runInvoiceGet(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Invoices.GetInvoice(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runInvoiceList(cmd *cobra.Command, args []string) error {
	filter := types.NewInvoiceFilter()
	filter.Limit = lo.ToPtr(invListLimit)
	filter.Offset = lo.ToPtr(invListOffset)
	filter.ClientID = invListClient
	filter.DueBefore = optional(invListDueBefore)
	filter.InvoiceStatus = lo.Map(invListStatus, func(s string, _ int) types.InvoiceStatus {
		return types.InvoiceStatus(s)
	})

	return run(cmd, func(ctx context.Context, a *app) error {
		if invListFrom != "" || invListTo != "" {
			loc, err := a.Config.Billing.GetLocation()
			if err != nil {
				return err
			}
			from, err := parseFlagDate("issued-from", invListFrom, loc)
			if err != nil {
				return err
			}
			to, err := parseFlagDate("issued-to", invListTo, loc)
			if err != nil {
				return err
			}
			filter.TimeRangeFilter = &types.TimeRangeFilter{StartTime: from, EndTime: to}
		}
		resp, err := a.Invoices.ListInvoices(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runInvoiceUpdateDraft(cmd *cobra.Command, args []string) error {
	items, err := readManualItems(genItemsFile)
	if err != nil {
		return err
	}
	return run(cmd, func(ctx context.Context, a *app) error {
		// without --items the current manual line items stay
		if genItemsFile == "" {
			current, err := a.Invoices.GetInvoice(ctx, args[0])
			if err != nil {
				return err
			}
			items = manualItemsOf(current.Invoice)
		}
		resp, err := a.Invoices.UpdateDraftInvoice(ctx, args[0], dto.UpdateDraftInvoiceRequest{
			ManualLineItems: items,
			TaxRate:         optional(genTaxRate),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runInvoiceIssue(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Invoices.IssueInvoice(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runInvoiceCancel(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Invoices.CancelInvoice(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runInvoiceDelete(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		if err := a.Invoices.DeleteInvoice(ctx, args[0]); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), dto.SuccessResponse{Message: "invoice deleted"})
	})
}

func runInvoiceMarkOverdue(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Invoices.MarkOverdueInvoices(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runInvoiceRender(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		doc, err := a.Invoices.RenderInvoice(ctx, args[0])
		if err != nil {
			return err
		}
		if renderOut == "" {
			_, err = cmd.OutOrStdout().Write(doc)
			return err
		}
		if err := os.WriteFile(renderOut, doc, 0o644); err != nil {
			return ierr.WithError(err).
				WithHintf("Could not write %s", renderOut).
				Mark(ierr.ErrSystem)
		}
		return nil
	})
}
