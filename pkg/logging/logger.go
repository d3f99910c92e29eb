// Package logging builds the zerolog logger shared by every subsystem.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

// Category names the subsystem that produced a log line.
type Category string

const (
	CategoryChat    Category = "chat"
	CategoryModel   Category = "model"
	CategoryPending Category = "pending"
	CategoryStorage Category = "storage"
	CategoryAPI     Category = "api"
	CategoryBus     Category = "bus"
	CategoryCLI     Category = "cli"
)

// Options controls logger construction.
type Options struct {
	Service string
	Level   string // debug, info, warn, error
	Format  string // json or console
	Output  io.Writer
}

type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

// New returns a logger configured from opts. Error events logged with
// .Stack() carry a pkg/errors stack even for plain errors. The level is
// process-wide so SetLevel can change it later.
func New(opts Options) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	service := opts.Service
	if service == "" {
		service = "taskmate"
	}

	SetLevel(opts.Level)
	return zerolog.New(out).
		With().
		Str("service", service).
		Timestamp().
		Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLevel changes the minimum level for every logger built by New.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// For returns a child logger tagged with category.
func For(logger zerolog.Logger, category Category) zerolog.Logger {
	return logger.With().Str("category", string(category)).Logger()
}

// Nop is a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
