package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_01HZX3K6V7E0F2W9Q8T5M4N3B2
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	UUID_PREFIX_CLIENT            = "client"
	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "inv_line"
	UUID_PREFIX_INSTALLMENT       = "inst"
	UUID_PREFIX_EVENT             = "event"
)
