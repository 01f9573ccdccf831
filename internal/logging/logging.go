package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the level and destination of the root logger.
type Options struct {
	Level string
	// File, when set, receives JSON lines in append mode.
	File string
	// Fallback receives human-readable output when File is empty. Nil
	// discards output.
	Fallback io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the root logger. The returned closer releases the log file,
// if one was opened.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	lvl := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}

	var (
		out    io.Writer = io.Discard
		closer io.Closer = nopCloser{}
	)
	switch {
	case opts.File != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	case opts.Fallback != nil:
		out = zerolog.ConsoleWriter{Out: opts.Fallback, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return logger, closer, nil
}
