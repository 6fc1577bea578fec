// Package mapper turns a log event into the label values of a counter
// increment.
package mapper

import (
	"strings"

	"seqpush/internal/models"
	"seqpush/internal/properties"
)

// FormatTemplate builds the counter labels for evt.
//
// The message label is the rendered message, or the message template when
// the event carries no rendering. The resource label is the value of the
// property named by a candidate in names. Every candidate is checked, so
// when several match, the last one in names wins.
func FormatTemplate(evt models.Event, names []string) models.CounterData {
	props := properties.Normalize(evt.Properties)

	data := models.CounterData{RenderedMessage: evt.RenderedMessage}
	if data.RenderedMessage == "" {
		data.RenderedMessage = evt.MessageTemplate
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if v, ok := props[name]; ok {
			data.ResourceName = v.String()
		}
	}
	return data
}

// ParsePropertyNames splits a multi-line setting into candidate property
// names, one per line. Blank lines are dropped.
func ParsePropertyNames(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}
