package forwarder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"seqpush/internal/clef"
	"seqpush/internal/metrics"
	"seqpush/internal/models"
)

// ReadEvents decodes newline-delimited CLEF documents from r and sends them
// on out. It closes out when r is exhausted or ctx is cancelled. Lines that
// do not decode are logged and skipped.
func ReadEvents(ctx context.Context, r io.Reader, out chan<- models.Event, logger log.Logger) {
	defer close(out)

	reader := bufio.NewReader(r)
	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			level.Error(logger).Log("msg", "reading events failed", "err", err)
			return
		}
		lineNo++

		// The last line may come without a trailing newline.
		if msg := strings.TrimSpace(line); msg != "" {
			evt, decodeErr := clef.Decode([]byte(msg))
			if decodeErr != nil {
				metrics.DecodeErrors.Inc()
				level.Warn(logger).Log("msg", "skipping undecodable event", "line", lineNo, "err", decodeErr)
			} else {
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}

		if errors.Is(err, io.EOF) {
			level.Debug(logger).Log("msg", "event stream closed", "lines", lineNo)
			return
		}
	}
}
