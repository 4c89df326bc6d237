package types

type RunMode string

const (
	// ModeLocal loads a .env file before reading configuration
	ModeLocal RunMode = "local"
	// ModeProduction reads configuration from files and the environment only
	ModeProduction RunMode = "production"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// CutoffMode decides which calendar day closes the recurring fee coverage of an invoice
type CutoffMode string

const (
	// CutoffModePreviousMonth bills through the last day of the month before the issue month
	CutoffModePreviousMonth CutoffMode = "previous_month"
	// CutoffModeCurrentMonth bills through the last day of the issue month
	CutoffModeCurrentMonth CutoffMode = "current_month"
)

// PublisherBackend selects the transport of billing events
type PublisherBackend string

const (
	PublisherBackendMemory PublisherBackend = "memory"
	PublisherBackendKafka  PublisherBackend = "kafka"
)
