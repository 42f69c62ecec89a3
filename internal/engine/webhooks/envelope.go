package webhooks

import (
	"encoding/json"
	"time"
)

// TimestampLayout is ISO-8601 with millisecond precision. Envelope times are
// always UTC, so the zone renders as Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the JSON body posted to every subscriber.
type Envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func NewEnvelope(event string, data map[string]any, now time.Time) *Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return &Envelope{
		Event:     event,
		Timestamp: now.UTC().Format(TimestampLayout),
		Data:      data,
	}
}

// Marshal serializes the envelope once. The returned bytes are what gets
// signed, sent and stored in the delivery log.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
