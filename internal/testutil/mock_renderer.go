package testutil

import (
	"context"

	"github.com/flexprice/retainer/internal/domain/invoice"
	"github.com/flexprice/retainer/internal/pdf"
	"github.com/stretchr/testify/mock"
)

var _ pdf.Renderer = (*MockRenderer)(nil)

type MockRenderer struct {
	mock.Mock
}

// Render implements pdf.Renderer.
func (m *MockRenderer) Render(ctx context.Context, inv *invoice.Invoice) ([]byte, error) {
	args := m.Called(ctx, inv)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{}
}
