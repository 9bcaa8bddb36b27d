package shared

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// ParseLevel maps a configured level name onto a log level
func ParseLevel(level string) (log.Level, error) {
	switch level {
	case "debug":
		return log.DebugLevel, nil
	case "info", "":
		return log.InfoLevel, nil
	case "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// SetupLogger returns a stderr logger at the named level
func SetupLogger(level string) (*log.Logger, error) {
	return newLogger(os.Stderr, level)
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	}), nil
}
