package models

// Webhook is a subscriber registration. The call counters are only ever
// changed by the delivery recorder, never through the admin API.
type Webhook struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Events          []string          `json:"events"` // JSON array in DB
	Secret          string            `json:"-"`
	HasSecret       bool              `json:"has_secret"`
	Headers         map[string]string `json:"headers,omitempty"` // JSON object in DB
	IsActive        bool              `json:"is_active"`
	TotalCalls      int64             `json:"total_calls"`
	SuccessfulCalls int64             `json:"successful_calls"`
	FailedCalls     int64             `json:"failed_calls"`
	LastTriggeredAt int64             `json:"last_triggered_at,omitempty"` // unix millis
	CreatedAt       int64             `json:"created_at"`
	UpdatedAt       int64             `json:"updated_at"`
}

// Subscribes reports whether event is in the webhook's event list.
func (w *Webhook) Subscribes(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// DeliveryLog is one delivery attempt to one webhook. Rows are never
// updated or deleted once written.
type DeliveryLog struct {
	ID           string `json:"id"`
	WebhookID    string `json:"webhook_id"`
	Event        string `json:"event"`
	URL          string `json:"url"`
	Payload      string `json:"payload"`
	StatusCode   int    `json:"status_code"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	TriggeredAt  int64  `json:"triggered_at"` // unix millis
}
