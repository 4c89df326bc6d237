package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/flexprice/retainer/internal/cache"
	"github.com/flexprice/retainer/internal/clock"
	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/domain/proration"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/pdf"
	"github.com/flexprice/retainer/internal/postgres"
	"github.com/flexprice/retainer/internal/publisher"
	"github.com/flexprice/retainer/internal/pubsub"
	"github.com/flexprice/retainer/internal/repository"
	"github.com/flexprice/retainer/internal/sentry"
	"github.com/flexprice/retainer/internal/service"
	"github.com/flexprice/retainer/internal/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	cfgFile  string
	operator string
)

var rootCmd = &cobra.Command{
	Use:   "billing",
	Short: "Recurring billing and payment reconciliation for retainer clients",
	Long: `billing drafts monthly invoices for retainer clients, numbers and issues
them, and reconciles the payments an operator confirms.

Examples:
  billing client create acme.yaml
  billing invoice generate --client client_01H... --issue-date 2025-02-01
  billing invoice issue inv_01H...
  billing payment confirm inv_01H... --amount 165000`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: search ./config.yaml, /etc/retainer)")
	rootCmd.PersistentFlags().StringVar(&operator, "operator", defaultOperator(), "operator recorded as created_by and updated_by")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", ierr.DisplayMessage(err))
		os.Exit(ierr.ExitCodeFromErr(err))
	}
}

func defaultOperator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return types.DefaultUserID
}

// app holds what a command needs once the container has started
type app struct {
	Config   *config.Configuration
	Logger   *logger.Logger
	Clock    clock.Clock
	Sentry   *sentry.Service
	Clients  service.ClientService
	Invoices service.InvoiceService
	Payments service.PaymentService
}

// today returns the current calendar day in the billing location
func (a *app) today() (string, error) {
	loc, err := a.Config.Billing.GetLocation()
	if err != nil {
		return "", err
	}
	return types.FormatDate(a.Clock.Now().In(loc)), nil
}

func options(a *app) []fx.Option {
	return []fx.Option{
		fx.NopLogger,
		fx.Provide(
			func() (*config.Configuration, error) {
				return config.Load(cfgFile)
			},
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Event Publisher
			publisher.NewPubSub,
			publisher.NewEventPublisher,

			clock.NewReal,
			proration.NewCalculator,
			pdf.NewJSONRenderer,
		),

		// Monitoring
		sentry.Module(),

		// Postgres
		postgres.Module(),
		fx.Decorate(postgres.NewSentryClient),

		repository.Module(),
		service.Module(),

		fx.Invoke(registerShutdown),
		fx.Populate(&a.Config, &a.Logger, &a.Clock, &a.Sentry, &a.Clients, &a.Invoices, &a.Payments),
	}
}

func registerShutdown(lc fx.Lifecycle, db *postgres.DB, ps pubsub.PubSub, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := ps.Close(); err != nil {
				log.Warnw("failed to close event transport", "error", err)
			}
			db.Close()
			_ = log.Sync()
			return nil
		},
	})
}

// run starts the container, hands the services to fn and stops the
// container again. Unexpected errors are reported to Sentry.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a := &app{}
	container := fx.New(options(a)...)
	if err := container.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = types.SetUserID(ctx, operator)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := container.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Stop(stopCtx)
	}()

	err := fn(ctx, a)
	if err != nil {
		a.Logger.Errorw("command failed",
			"command", cmd.CommandPath(),
			"request_id", types.GetRequestID(ctx),
			"operator", types.GetUserID(ctx),
			"error", err,
		)
		a.Sentry.CaptureIfUnexpected(err)
	}
	return err
}

// printJSON writes v as indented JSON to the command's output
func printJSON(w io.Writer, v any) error {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode the result").
			Mark(ierr.ErrSystem)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
