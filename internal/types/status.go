package types

// Status is the storage lifecycle of a record. It is independent of the
// business status of an invoice and is used for soft deletes.
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
)
