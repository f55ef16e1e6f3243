package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a new logger instance. Development gets a console writer at
// debug level, everything else JSON at info level. MEDFLOW_LOG_LEVEL overrides
// the level.
func New(serviceName string, environment string) *Logger {
	var output io.Writer = os.Stdout
	level := zerolog.InfoLevel

	if environment == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		level = zerolog.DebugLevel
	}

	if raw := strings.TrimSpace(os.Getenv("MEDFLOW_LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()

	return &Logger{Logger: logger}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// WithComponent tags entries with the emitting component (ledger, restock, ...).
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithRequisition returns a logger scoped to one requisition.
func (l *Logger) WithRequisition(id string) *Logger {
	return l.with("requisition_id", id)
}

// WithProcurement returns a logger scoped to one procurement request.
func (l *Logger) WithProcurement(id string) *Logger {
	return l.with("procurement_id", id)
}

// WithItem scopes entries to an item at a location. The warehouse is logged
// as "warehouse" rather than an empty department.
func (l *Logger) WithItem(name, departmentID string) *Logger {
	if departmentID == "" {
		departmentID = "warehouse"
	}
	return &Logger{Logger: l.Logger.With().
		Str("item", name).
		Str("location", departmentID).
		Logger()}
}
