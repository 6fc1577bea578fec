package models

import "time"

// Event is a single log event as delivered by Seq.
type Event struct {
	Timestamp       time.Time      `json:"@t"`
	Level           string         `json:"@l,omitempty"`
	MessageTemplate string         `json:"@mt,omitempty"`
	RenderedMessage string         `json:"@m,omitempty"`
	Exception       string         `json:"@x,omitempty"`
	EventID         string         `json:"@i,omitempty"`
	Properties      map[string]any `json:"-"`
}

// CounterData holds the label values for one counter increment.
type CounterData struct {
	ResourceName    string
	RenderedMessage string
}
