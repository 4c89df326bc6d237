package sentry

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/config"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
)

type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

// Module provides fx options for Sentry
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewSentryService),
		fx.Invoke(RegisterHooks),
	)
}

// RegisterHooks registers lifecycle hooks for Sentry
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Init()
		},
		OnStop: func(ctx context.Context) error {
			if svc.cfg.Sentry.Enabled {
				svc.logger.Info("Flushing Sentry events before shutdown")
				sentry.Flush(2 * time.Second)
			}
			return nil
		},
	})
}

// NewSentryService creates a new Sentry service
func NewSentryService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// Init configures the global Sentry hub, a no-op when Sentry is disabled
func (s *Service) Init() error {
	if !s.cfg.Sentry.Enabled {
		s.logger.Debug("Sentry is disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.cfg.Sentry.DSN,
		Environment:      s.cfg.Sentry.Environment,
		EnableTracing:    true,
		TracesSampleRate: s.cfg.Sentry.SampleRate,
	})
	if err != nil {
		s.logger.Errorw("Failed to initialize Sentry", "error", err)
		return err
	}
	s.logger.Infow("Sentry initialized successfully",
		"environment", s.cfg.Sentry.Environment,
		"sample_rate", s.cfg.Sentry.SampleRate,
	)
	return nil
}

// Enabled reports whether events are forwarded to Sentry
func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Sentry.Enabled
}

// CaptureException captures an error in Sentry
func (s *Service) CaptureException(err error) {
	if !s.Enabled() {
		return
	}
	sentry.CaptureException(err)
}

// CaptureIfUnexpected reports corrupt data and infrastructure failures.
// Operator mistakes such as validation or state errors are not reported.
func (s *Service) CaptureIfUnexpected(err error) {
	if err == nil {
		return
	}
	if ierr.IsDataIntegrity(err) || ierr.Is(err, ierr.ErrDatabase) || ierr.Is(err, ierr.ErrSystem) {
		s.CaptureException(err)
	}
}

// AddBreadcrumb adds a breadcrumb to the current scope
func (s *Service) AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !s.Enabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
		Data:     data,
	})
}

// Flush waits for queued events to be sent
func (s *Service) Flush(timeout uint) bool {
	if !s.Enabled() {
		return true
	}
	return sentry.Flush(time.Duration(timeout) * time.Second)
}

// StartDBSpan starts a new database span in the current transaction
func (s *Service) StartDBSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.Enabled() {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = operation
	span.Op = "db.postgres"
	for k, v := range params {
		span.SetData(k, v)
	}

	return span, span.Context()
}

// StartTransaction creates a new transaction for a billing command
func (s *Service) StartTransaction(ctx context.Context, name string, options ...sentry.SpanOption) (*sentry.Span, context.Context) {
	if !s.Enabled() {
		return nil, ctx
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
		ctx = sentry.SetHubOnContext(ctx, hub)
	}

	opts := append([]sentry.SpanOption{
		sentry.WithOpName(name),
		sentry.WithTransactionSource(sentry.SourceCustom),
	}, options...)

	transaction := sentry.StartTransaction(ctx, name, opts...)
	return transaction, transaction.Context()
}
