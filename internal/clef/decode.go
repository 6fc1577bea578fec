// Package clef decodes compact log event format (CLEF) documents, the
// newline-delimited JSON that Seq writes to an app's stdin.
package clef

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"seqpush/internal/models"
)

// DefaultLevel is implied when an event has no @l field.
const DefaultLevel = "Information"

var api = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Decode parses a single CLEF document. Reserved @-prefixed fields map onto
// the event header, everything else becomes a property. A leading "@@"
// escapes a property whose name starts with "@".
func Decode(line []byte) (models.Event, error) {
	var raw map[string]any
	if err := api.Unmarshal(line, &raw); err != nil {
		return models.Event{}, fmt.Errorf("invalid event document: %w", err)
	}
	if raw == nil {
		return models.Event{}, fmt.Errorf("invalid event document: not an object")
	}

	evt := models.Event{
		Level:      DefaultLevel,
		Properties: make(map[string]any, len(raw)),
	}
	for key, value := range raw {
		switch {
		case strings.HasPrefix(key, "@@"):
			evt.Properties[key[1:]] = value
		case key == "@t":
			s, _ := value.(string)
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return models.Event{}, fmt.Errorf("invalid @t %q: %w", s, err)
			}
			evt.Timestamp = ts
		case key == "@m":
			evt.RenderedMessage = text(value)
		case key == "@mt":
			evt.MessageTemplate = text(value)
		case key == "@l":
			if l := text(value); l != "" {
				evt.Level = l
			}
		case key == "@x":
			evt.Exception = text(value)
		case key == "@i":
			evt.EventID = text(value)
		case strings.HasPrefix(key, "@"):
			// Other reserved fields (@r renderings, @tr, @sp) carry nothing we label on.
		default:
			evt.Properties[key] = value
		}
	}
	return evt, nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	return fmt.Sprint(v)
}
