package logger

import (
	"os"
	"sync"

	"game-party/pkg/config"

	zl "github.com/rs/zerolog"
)

// log is an unexported package-level global holding the logger instance
var (
	log    *logger
	initMu sync.Mutex
)

type logger struct {
	engine *zl.Logger
}

// InitLogger initializes the logger with configuration
func InitLogger(cfg *config.Config) {
	initMu.Lock()
	defer initMu.Unlock()

	zl.SetGlobalLevel(getLogLevel(cfg.Log.Level))
	setupCloudLoggingSeverity()

	var engine zl.Logger
	if cfg.Log.Format == ConsoleFormat {
		engine = newConsoleLogger()
	} else {
		engine = newJSONLogger()
	}

	log = &logger{
		engine: &engine,
	}
}

// instance returns the configured logger, lazily falling back to JSON defaults
// so library code and tests can log before InitLogger runs.
func instance() *logger {
	if log != nil {
		return log
	}

	initMu.Lock()
	defer initMu.Unlock()
	if log == nil {
		engine := newJSONLogger()
		log = &logger{engine: &engine}
	}
	return log
}

// getLogLevel returns the log level based on the string input
func getLogLevel(level string) zl.Level {
	switch level {
	case DebugLevel:
		return zl.DebugLevel
	case InfoLevel:
		return zl.InfoLevel
	case WarnLevel:
		return zl.WarnLevel
	case ErrorLevel:
		return zl.ErrorLevel
	default:
		return zl.InfoLevel
	}
}

// setupCloudLoggingSeverity configures zerolog to use Cloud Logging severity levels
func setupCloudLoggingSeverity() {
	zl.LevelFieldMarshalFunc = func(l zl.Level) string {
		switch l {
		case zl.DebugLevel:
			return "DEBUG"
		case zl.InfoLevel:
			return "INFO"
		case zl.WarnLevel:
			return "WARNING"
		case zl.ErrorLevel:
			return "ERROR"
		case zl.FatalLevel:
			return "CRITICAL"
		case zl.PanicLevel:
			return "CRITICAL"
		default:
			return "DEFAULT"
		}
	}
}

// newJSONLogger creates a logger emitting structured JSON (better for cloud environments)
func newJSONLogger() zl.Logger {
	// for Cloud Logging structured logging, we need to use specific field names
	zl.TimeFieldFormat = zl.TimeFormatUnix
	zl.TimestampFieldName = "timestamp"
	zl.LevelFieldName = "severity"
	zl.MessageFieldName = "message"

	return zl.New(os.Stdout).With().
		Timestamp().
		Caller().
		Logger()
}

// newConsoleLogger creates a human-readable logger for local development
func newConsoleLogger() zl.Logger {
	return zl.New(zl.ConsoleWriter{Out: os.Stdout}).With().
		Timestamp().
		Logger()
}
