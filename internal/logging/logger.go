// Package logging builds the app's structured logger. Seq captures
// whatever an app writes to stderr, so that is where logs go by default.
package logging

import (
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Supported formats.
const (
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// New returns a leveled logger writing to w. lvl is one of debug, info,
// warn or error; format is logfmt or json. Empty values select info and
// logfmt.
func New(w io.Writer, lvl, format string) (log.Logger, error) {
	var logger log.Logger
	switch format {
	case "", FormatLogfmt:
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case FormatJSON:
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}

	filter, err := levelFilter(lvl)
	if err != nil {
		return nil, err
	}
	logger = level.NewFilter(logger, filter)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

func levelFilter(lvl string) (level.Option, error) {
	switch lvl {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	}
	return nil, fmt.Errorf("unrecognized log level %q", lvl)
}
