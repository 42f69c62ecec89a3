package webhooks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"crmhooks/internal/pkg/metrics"
	"crmhooks/internal/platform/models"
	"crmhooks/internal/platform/repositories"
)

// Recorder persists the result of a delivery: one counter update on the
// webhook and one delivery log row. Storage errors are logged, not returned.
type Recorder struct {
	hooks   *repositories.WebhookRepository
	logs    *repositories.DeliveryLogRepository
	metrics *metrics.WebhookMetrics
	now     func() time.Time
}

func NewRecorder(hooks *repositories.WebhookRepository, logs *repositories.DeliveryLogRepository, m *metrics.WebhookMetrics) *Recorder {
	return &Recorder{
		hooks:   hooks,
		logs:    logs,
		metrics: m,
		now:     time.Now,
	}
}

func (r *Recorder) Record(ctx context.Context, hook *models.Webhook, env *Envelope, body []byte, out Outcome) {
	// A cancelled dispatch must still leave its history behind.
	ctx = context.WithoutCancel(ctx)
	recordedAt := r.now().UnixMilli()

	if err := r.hooks.RecordOutcome(ctx, hook.ID, out.Success, recordedAt); err != nil {
		r.metrics.IncRecorderError("counters")
		log.Error().Err(err).
			Str("webhook_id", hook.ID).
			Str("event", env.Event).
			Bool("success", out.Success).
			Msg("failed to update webhook counters")
	}

	triggeredAt := out.StartedAt
	if triggeredAt == 0 {
		triggeredAt = recordedAt
	}

	entry := &models.DeliveryLog{
		WebhookID:    hook.ID,
		Event:        env.Event,
		URL:          hook.URL,
		Payload:      string(body),
		StatusCode:   out.StatusCode,
		Success:      out.Success,
		ErrorMessage: out.ErrorMessage,
		DurationMs:   out.DurationMs,
		TriggeredAt:  triggeredAt,
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		r.metrics.IncRecorderError("log")
		log.Error().Err(err).
			Str("webhook_id", hook.ID).
			Str("event", env.Event).
			Msg("failed to append delivery log")
	}
}
