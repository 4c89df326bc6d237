package main

import (
	"context"
	"os"

	"github.com/flexprice/retainer/internal/api/dto"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage retainer clients",
	Long: `Manage retainer clients, their fee schedules and installments.

A client definition file looks like:

  name: Acme
  email: billing@acme.example
  fee_schedule:
    - effective_from: 2025-01-01
      monthly_amount: 50000
      description: Retainer
  installments:
    - label: initial
      amount: 100000
      due_date: 2025-01-15`,
}

var clientCreateCmd = &cobra.Command{
	Use:   "create <file.yaml>",
	Short: "Create a client from a definition file",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientCreate,
}

var clientGetCmd = &cobra.Command{
	Use:   "get <client-id>",
	Short: "Show a client",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientGet,
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE:  runClientList,
}

var clientChangeFeeCmd = &cobra.Command{
	Use:   "change-fee <client-id>",
	Short: "Change the monthly fee from a date on",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientChangeFee,
}

var clientSetInstallmentsCmd = &cobra.Command{
	Use:   "set-installments <client-id> <file.yaml>",
	Short: "Replace the unpaid installments of a client",
	Long: `Replace the unpaid installments of a client. Paid installments are kept.

The file holds the new installments:

  installments:
    - label: intermediate
      amount: 200000
      due_date: 2025-03-31`,
	Args: cobra.ExactArgs(2),
	RunE: runClientSetInstallments,
}

var (
	clientListLimit  int
	clientListOffset int
	clientListName   string
	clientListEmail  string

	feeFrom        string
	feeAmount      int64
	feeDescription string
)

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.AddCommand(clientCreateCmd)
	clientCmd.AddCommand(clientGetCmd)
	clientCmd.AddCommand(clientListCmd)
	clientCmd.AddCommand(clientChangeFeeCmd)
	clientCmd.AddCommand(clientSetInstallmentsCmd)

	clientListCmd.Flags().IntVar(&clientListLimit, "limit", 50, "maximum number of clients")
	clientListCmd.Flags().IntVar(&clientListOffset, "offset", 0, "number of clients to skip")
	clientListCmd.Flags().StringVar(&clientListName, "name", "", "name contains, case insensitive")
	clientListCmd.Flags().StringVar(&clientListEmail, "email", "", "exact email")

	clientChangeFeeCmd.Flags().StringVar(&feeFrom, "from", "", "first day of the new fee, YYYY-MM-DD (required)")
	clientChangeFeeCmd.Flags().Int64Var(&feeAmount, "amount", 0, "new monthly amount in minor units")
	clientChangeFeeCmd.Flags().StringVar(&feeDescription, "description", "", "line item description (required)")
	_ = clientChangeFeeCmd.MarkFlagRequired("from")
	_ = clientChangeFeeCmd.MarkFlagRequired("description")
}

// readYAML decodes the file at path into v
func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not read %s", path).
			Mark(ierr.ErrValidation)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return ierr.WithError(err).
			WithHintf("%s is not valid YAML", path).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func runClientCreate(cmd *cobra.Command, args []string) error {
	var req dto.CreateClientRequest
	if err := readYAML(args[0], &req); err != nil {
		return err
	}
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Clients.CreateClient(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runClientGet(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Clients.GetClient(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runClientList(cmd *cobra.Command, args []string) error {
	filter := types.NewClientFilter()
	filter.Limit = lo.ToPtr(clientListLimit)
	filter.Offset = lo.ToPtr(clientListOffset)
	filter.Name = clientListName
	filter.Email = clientListEmail

	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Clients.ListClients(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runClientChangeFee(cmd *cobra.Command, args []string) error {
	req := dto.ChangeFeeRequest{
		EffectiveFrom: feeFrom,
		MonthlyAmount: feeAmount,
		Description:   feeDescription,
	}
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Clients.ChangeFee(ctx, args[0], req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}

func runClientSetInstallments(cmd *cobra.Command, args []string) error {
	var req dto.SetInstallmentsRequest
	if err := readYAML(args[1], &req); err != nil {
		return err
	}
	return run(cmd, func(ctx context.Context, a *app) error {
		resp, err := a.Clients.SetInstallments(ctx, args[0], req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}
