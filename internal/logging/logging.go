// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AppField names the field carrying the binary name on every entry.
const AppField = "app"

// FieldFormatter adds a fixed set of fields to each entry before
// delegating to the wrapped formatter.
type FieldFormatter struct {
	log.Formatter
	Fields log.Fields
}

// Format implements logrus.Formatter.
func (f *FieldFormatter) Format(entry *log.Entry) ([]byte, error) {
	for k, v := range f.Fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return f.Formatter.Format(entry)
}

// New returns a logger writing to stderr. format is "json" or "text".
func New(app, level, format string) (*log.Logger, error) {
	return NewWithWriter(os.Stderr, app, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, app, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}

	var inner log.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		inner = &log.TextFormatter{FullTimestamp: true}
	case "json":
		inner = &log.JSONFormatter{}
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}

	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&FieldFormatter{
		Formatter: inner,
		Fields:    log.Fields{AppField: app},
	})
	return logger, nil
}
