// Package logging wires charmbracelet/log loggers through context.Context.
//
// The CLI, the HTTP service and serialization sessions all read their logger
// from the context they are given, so a single --verbose flag or [log]
// config entry reaches every layer:
//
//	logger := logging.New(os.Stderr, log.DebugLevel)
//	ctx := logging.WithLogger(context.Background(), logger)
//	data, err := serial.Serialize(ctx, diagram) // logs at debug level
package logging

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/shapeserial/pkg/errors"
)

// TimeFormat is the timestamp layout, e.g. "14:32:01.45".
const TimeFormat = "15:04:05.00"

// New creates a logger writing to w at the given level.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      TimeFormat,
		Level:           level,
	})
}

// ParseLevel maps a config level name to a log level. The empty string
// means info.
func ParseLevel(name string) (log.Level, error) {
	if strings.TrimSpace(name) == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		return log.InfoLevel, errors.Wrap(errors.ErrCodeInvalidInput, err, "log level %q", name)
	}
	return level, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger attached to ctx, or log.Default().
func FromContext(ctx context.Context) *log.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
			return l
		}
	}
	return log.Default()
}

// Progress tracks the start of an operation and logs its completion with
// the elapsed time. It is meant for sequential use by one goroutine.
type Progress struct {
	logger *log.Logger
	start  time.Time
}

// NewProgress starts a progress tracker.
func NewProgress(l *log.Logger) *Progress {
	return &Progress{logger: l, start: time.Now()}
}

// Done logs msg with the elapsed time, e.g. "Converted diagram.json (12ms)".
func (p *Progress) Done(msg string) {
	p.logger.Infof("%s (%s)", msg, p.Elapsed().Round(time.Millisecond))
}

// Elapsed returns the time since the tracker started.
func (p *Progress) Elapsed() time.Duration {
	return time.Since(p.start)
}
