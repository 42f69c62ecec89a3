package webhooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"crmhooks/internal/engine/events"
	"crmhooks/internal/pkg/metrics"
	"crmhooks/internal/platform/models"
	"crmhooks/internal/platform/repositories"
)

// Dispatcher fans an event out to every active webhook subscribed to it.
type Dispatcher struct {
	hooks    *repositories.WebhookRepository
	sender   *Sender
	recorder *Recorder
	metrics  *metrics.WebhookMetrics
	now      func() time.Time

	// in-flight background rounds started by Go
	rounds sync.WaitGroup
}

func NewDispatcher(hooks *repositories.WebhookRepository, sender *Sender, recorder *Recorder, m *metrics.WebhookMetrics) *Dispatcher {
	return &Dispatcher{
		hooks:    hooks,
		sender:   sender,
		recorder: recorder,
		metrics:  m,
		now:      time.Now,
	}
}

// Trigger runs one dispatch round and returns once every matched webhook has
// an outcome recorded. It never panics and has nothing to report to the
// caller; failures are logged and stored per delivery.
func (d *Dispatcher) Trigger(ctx context.Context, event string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("event", event).Interface("panic", r).Msg("webhook dispatch panicked")
		}
	}()

	hooks, err := d.hooks.GetActiveByEvent(ctx, event)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to load webhooks for event")
		return
	}
	if len(hooks) == 0 {
		return
	}

	env := NewEnvelope(event, data, d.now())
	body, err := env.Marshal()
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to serialize webhook payload")
		return
	}

	d.metrics.IncRound(event)

	var wg sync.WaitGroup
	var succeeded atomic.Int64
	for _, hook := range hooks {
		wg.Add(1)
		go func(hook *models.Webhook) {
			defer wg.Done()
			if d.deliver(ctx, hook, env, body).Success {
				succeeded.Add(1)
			}
		}(hook)
	}
	wg.Wait()

	ok := succeeded.Load()
	log.Info().
		Str("event", event).
		Int("matched", len(hooks)).
		Int64("succeeded", ok).
		Int64("failed", int64(len(hooks))-ok).
		Msg("webhook dispatch completed")
}

func (d *Dispatcher) deliver(ctx context.Context, hook *models.Webhook, env *Envelope, body []byte) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("webhook_id", hook.ID).Interface("panic", r).Msg("webhook delivery panicked")
			out = Outcome{ErrorMessage: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	out = d.sender.Send(ctx, hook, env, body)
	d.metrics.ObserveDelivery(env.Event, out.Success, time.Duration(out.DurationMs)*time.Millisecond)

	logEvt := log.Debug()
	if !out.Success {
		logEvt = log.Warn().Str("error", out.ErrorMessage)
	}
	logEvt.Str("webhook_id", hook.ID).
		Str("event", env.Event).
		Int("status_code", out.StatusCode).
		Int64("duration_ms", out.DurationMs).
		Msg("webhook delivered")

	d.recorder.Record(ctx, hook, env, body, out)
	return out
}

// Go schedules Trigger on a background goroutine and returns immediately.
// The round is detached from any request context.
func (d *Dispatcher) Go(event string, data map[string]any) {
	d.rounds.Add(1)
	go func() {
		defer d.rounds.Done()
		d.Trigger(context.Background(), event, data)
	}()
}

// Wait blocks until every round started with Go has finished.
func (d *Dispatcher) Wait() {
	d.rounds.Wait()
}

// Ping sends a WEBHOOK_TEST delivery to a single webhook, regardless of its
// subscriptions or active flag, and records it like any other attempt.
func (d *Dispatcher) Ping(ctx context.Context, hook *models.Webhook) Outcome {
	env := NewEnvelope(events.WebhookTest, map[string]any{
		"webhookId": hook.ID,
		"name":      hook.Name,
		"message":   "This is a test delivery.",
	}, d.now())
	body, err := env.Marshal()
	if err != nil {
		return Outcome{ErrorMessage: err.Error()}
	}
	return d.deliver(ctx, hook, env, body)
}
