package sentry

import (
	"context"
	"testing"

	"github.com/flexprice/retainer/internal/config"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledServiceIsNoop(t *testing.T) {
	svc := NewSentryService(config.GetDefaultConfig(), logger.NewNopLogger())

	require.NoError(t, svc.Init())
	assert.False(t, svc.Enabled())
	assert.True(t, svc.Flush(1))

	ctx := context.Background()
	span, spanCtx := svc.StartDBSpan(ctx, "postgres.transaction", nil)
	assert.Nil(t, span)
	assert.Equal(t, ctx, spanCtx)

	tx, txCtx := svc.StartTransaction(ctx, "billing.generate")
	assert.Nil(t, tx)
	assert.Equal(t, ctx, txCtx)

	assert.NotPanics(t, func() {
		svc.CaptureIfUnexpected(ierr.NewError("corrupt").Mark(ierr.ErrDataIntegrity))
		svc.AddBreadcrumb("billing", "noop", nil)
	})
}

func TestNilServiceIsDisabled(t *testing.T) {
	var svc *Service
	assert.False(t, svc.Enabled())
}
