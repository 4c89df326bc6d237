package validator

import (
	"testing"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	From   string  `json:"effective_from" validate:"required,date"`
	To     *string `json:"effective_to,omitempty" validate:"omitempty,date"`
	Amount int64   `json:"amount" validate:"min=0"`
}

type request struct {
	Name    string  `json:"name" validate:"required"`
	Entries []entry `json:"entries" validate:"dive"`
}

func TestValidateRequest(t *testing.T) {
	bad := "2025/02/01"

	tests := []struct {
		name string
		req  request
		hint string
	}{
		{
			name: "missing name",
			req:  request{Entries: []entry{{From: "2025-01-01"}}},
			hint: "name is required",
		},
		{
			name: "malformed date",
			req:  request{Name: "Acme", Entries: []entry{{From: "2025-01-01"}, {From: "01/02/2025"}}},
			hint: "entries[1].effective_from must be a date in YYYY-MM-DD format",
		},
		{
			name: "malformed optional date",
			req:  request{Name: "Acme", Entries: []entry{{From: "2025-01-01", To: &bad}}},
			hint: "entries[0].effective_to must be a date in YYYY-MM-DD format",
		},
		{
			name: "negative amount",
			req:  request{Name: "Acme", Entries: []entry{{From: "2025-01-01", Amount: -1}}},
			hint: "entries[0].amount must be at least 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
			assert.Equal(t, tt.hint, ierr.DisplayMessage(err))
		})
	}
}

func TestValidateRequestAcceptsValidInput(t *testing.T) {
	to := "2025-02-01"
	err := ValidateRequest(request{
		Name:    "Acme",
		Entries: []entry{{From: "2025-01-01", To: &to, Amount: 50000}},
	})
	assert.NoError(t, err)
}

func TestNewValidatorIsShared(t *testing.T) {
	assert.Same(t, NewValidator(), GetValidator())
}
