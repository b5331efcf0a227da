package logger

import corelogger "github.com/kilianp07/flownet/core/logger"

// Logger is the core logging interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger tagged with component. APP_ENV=dev switches to
// human-readable console output; LOG_LEVEL sets the minimum level.
func New(component string) Logger {
	return NewZerologLogger(component)
}
