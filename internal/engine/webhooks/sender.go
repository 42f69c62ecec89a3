package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"crmhooks/internal/platform/config"
	"crmhooks/internal/platform/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "CRMHooks/1.0"

	maxDrainBytes = 64 << 10
)

// Outcome is the result of exactly one delivery attempt.
type Outcome struct {
	Success      bool
	StatusCode   int // 0 when no response arrived
	ErrorMessage string
	DurationMs   int64
	StartedAt    int64 // unix millis when the attempt began
}

// Sender performs single HTTP deliveries. It never returns an error; every
// failure ends up in the Outcome.
type Sender struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	tracer    *Tracer
}

type SenderOption func(*Sender)

func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) { s.client = c }
}

func WithTracer(t *Tracer) SenderOption {
	return func(s *Sender) { s.tracer = t }
}

func NewSender(cfg config.WebhooksConfig, opts ...SenderOption) *Sender {
	s := &Sender{
		client: &http.Client{
			// a redirect is reported as a failed delivery, never followed
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:   cfg.DeliveryTimeout,
		userAgent: cfg.UserAgent,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts body to hook.URL. body must be the serialized env.
func (s *Sender) Send(ctx context.Context, hook *models.Webhook, env *Envelope, body []byte) Outcome {
	ctx, span := s.tracer.StartDelivery(ctx, hook.ID, env.Event, hook.URL)
	out := s.send(ctx, hook, env, body)
	s.tracer.EndDelivery(span, out)
	return out
}

func (s *Sender) send(ctx context.Context, hook *models.Webhook, env *Envelope, body []byte) Outcome {
	start := time.Now()
	finish := func(out Outcome) Outcome {
		out.StartedAt = start.UnixMilli()
		out.DurationMs = time.Since(start).Milliseconds()
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return finish(Outcome{ErrorMessage: fmt.Sprintf("build request: %v", err)})
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Webhook-Event", env.Event)
	req.Header.Set("X-Webhook-Timestamp", env.Timestamp)
	if hook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(hook.Secret, body))
	}
	// subscriber headers win over ours
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
			return finish(Outcome{ErrorMessage: fmt.Sprintf("request timed out after %s", s.timeout)})
		case errors.Is(err, context.Canceled):
			return finish(Outcome{ErrorMessage: "request canceled"})
		}
		return finish(Outcome{ErrorMessage: err.Error()})
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return finish(Outcome{
			StatusCode:   resp.StatusCode,
			ErrorMessage: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		})
	}

	return finish(Outcome{Success: true, StatusCode: resp.StatusCode})
}
