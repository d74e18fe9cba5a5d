// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Setup installs the global logger. Unknown levels fall back to info.
func Setup(level, format string) error {
	return SetupWriter(os.Stderr, level, format)
}

func SetupWriter(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(format) {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// Resty adapts zerolog to resty's logger interface.
type Resty struct {
	Logger zerolog.Logger
}

func NewResty() Resty {
	return Resty{Logger: log.With().Str("component", "camera-http").Logger()}
}

func (r Resty) Errorf(format string, v ...interface{}) {
	r.Logger.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (r Resty) Warnf(format string, v ...interface{}) {
	r.Logger.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (r Resty) Debugf(format string, v ...interface{}) {
	r.Logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
