package ports

import "github.com/orion-sense/sampleship/pkg/log"

// Logger is the structured logging abstraction used throughout the core.
// It is an alias of the public pkg/log interface so adapters written
// against either package interoperate.
type Logger = log.Logger

// Field is a key-value pair for structured logging.
type Field = log.Field

// Field constructors re-exported for convenience inside the core.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
