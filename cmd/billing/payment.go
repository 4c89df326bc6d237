package main

import (
	"context"

	"github.com/flexprice/retainer/internal/api/dto"
	"github.com/spf13/cobra"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Record payments and refunds",
}

var paymentConfirmCmd = &cobra.Command{
	Use:   "confirm <invoice-id>",
	Short: "Reconcile the amount received for a sent or overdue invoice",
	Long: `Reconcile the amount received for a sent or overdue invoice.

The difference to the invoice total is carried on the client balance and
the client's paid period moves to the end of the invoice period.`,
	Args: cobra.ExactArgs(1),
	RunE: runPaymentConfirm,
}

var paymentRefundCmd = &cobra.Command{
	Use:   "refund <invoice-id>",
	Short: "Record money returned for an invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaymentRefund,
}

var (
	paidAmount   int64
	refundAmount int64
)

func init() {
	rootCmd.AddCommand(paymentCmd)

	paymentCmd.AddCommand(paymentConfirmCmd)
	paymentCmd.AddCommand(paymentRefundCmd)

	paymentConfirmCmd.Flags().Int64Var(&paidAmount, "amount", 0, "amount received in minor units (required)")
	_ = paymentConfirmCmd.MarkFlagRequired("amount")

	paymentRefundCmd.Flags().Int64Var(&refundAmount, "amount", 0, "amount refunded in minor units (required)")
	_ = paymentRefundCmd.MarkFlagRequired("amount")
}

func runPaymentConfirm(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		res, err := a.Payments.ConfirmPayment(ctx, args[0], paidAmount)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), dto.NewPaymentResponse(res))
	})
}

func runPaymentRefund(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Payments.RecordRefund(ctx, dto.RecordRefundRequest{
			InvoiceID: args[0],
			Amount:    refundAmount,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}
