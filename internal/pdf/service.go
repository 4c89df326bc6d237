package pdf

import (
	"context"

	"github.com/flexprice/retainer/internal/domain/invoice"
	ierr "github.com/flexprice/retainer/internal/errors"
	jsoniter "github.com/json-iterator/go"
)

// Renderer turns a finalized invoice into a document
type Renderer interface {
	Render(ctx context.Context, inv *invoice.Invoice) ([]byte, error)
}

type jsonRenderer struct{}

// NewJSONRenderer renders invoices as indented JSON documents for downstream
// typesetting
func NewJSONRenderer() Renderer {
	return &jsonRenderer{}
}

func (r *jsonRenderer) Render(_ context.Context, inv *invoice.Invoice) ([]byte, error) {
	if inv == nil {
		return nil, ierr.NewError("invoice is required").
			WithHint("Please provide the invoice to render").
			Mark(ierr.ErrValidation)
	}
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(inv, "", "  ")
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to marshal invoice document").
			Mark(ierr.ErrSystem)
	}
	return out, nil
}
