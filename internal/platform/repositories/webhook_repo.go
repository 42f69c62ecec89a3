package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"crmhooks/internal/platform/database"
	"crmhooks/internal/platform/models"
)

var ErrNotFound = errors.New("not found")

const webhookColumns = `id, name, url, events, secret, headers, is_active, total_calls, successful_calls, failed_calls, last_triggered_at, created_at, updated_at`

type WebhookRepository struct {
	db *database.DB
}

func NewWebhookRepository(db *database.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebhook(row rowScanner) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr string
	var secret, headers sql.NullString
	var lastTriggeredAt sql.NullInt64

	err := row.Scan(&w.ID, &w.Name, &w.URL, &eventsStr, &secret, &headers, &w.IsActive,
		&w.TotalCalls, &w.SuccessfulCalls, &w.FailedCalls, &lastTriggeredAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if secret.Valid {
		w.Secret = secret.String
		w.HasSecret = secret.String != ""
	}
	if lastTriggeredAt.Valid {
		w.LastTriggeredAt = lastTriggeredAt.Int64
	}
	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, fmt.Errorf("decode events of webhook %s: %w", w.ID, err)
	}
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &w.Headers); err != nil {
			return nil, fmt.Errorf("decode headers of webhook %s: %w", w.ID, err)
		}
	}

	return &w, nil
}

func encodeWebhook(w *models.Webhook) (events string, secret, headers sql.NullString, err error) {
	eventsJSON, err := json.Marshal(w.Events)
	if err != nil {
		return "", secret, headers, err
	}
	w.HasSecret = w.Secret != ""
	if w.HasSecret {
		secret = sql.NullString{String: w.Secret, Valid: true}
	}
	if len(w.Headers) > 0 {
		headersJSON, err := json.Marshal(w.Headers)
		if err != nil {
			return "", secret, headers, err
		}
		headers = sql.NullString{String: string(headersJSON), Valid: true}
	}
	return string(eventsJSON), secret, headers, nil
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	webhook.ID = "wh_" + uuid.New().String()
	webhook.CreatedAt = time.Now().Unix()
	webhook.UpdatedAt = webhook.CreatedAt
	webhook.TotalCalls, webhook.SuccessfulCalls, webhook.FailedCalls = 0, 0, 0
	webhook.LastTriggeredAt = 0

	events, secret, headers, err := encodeWebhook(webhook)
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}

	query := `
		INSERT INTO webhooks (id, name, url, events, secret, headers, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), webhook.ID, webhook.Name, webhook.URL, events, secret, headers,
		webhook.IsActive, webhook.CreatedAt, webhook.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = ?`
	w, err := scanWebhook(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get webhook %s: %w", id, err)
	}
	return w, nil
}

func (r *WebhookRepository) List(ctx context.Context) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := []*models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// Update writes the admin-editable fields. Counters are left alone.
func (r *WebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	events, secret, headers, err := encodeWebhook(webhook)
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	webhook.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE webhooks
		SET name = ?, url = ?, events = ?, secret = ?, headers = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), webhook.Name, webhook.URL, events, secret, headers,
		webhook.IsActive, webhook.UpdatedAt, webhook.ID)
	if err != nil {
		return fmt.Errorf("update webhook %s: %w", webhook.ID, err)
	}
	return expectOne(res)
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM webhooks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete webhook %s: %w", id, err)
	}
	return expectOne(res)
}

// GetActiveByEvent returns active webhooks subscribed to event. Membership is
// checked in Go so the query stays portable across sqlite and Postgres.
func (r *WebhookRepository) GetActiveByEvent(ctx context.Context, event string) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE is_active = ?`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), true)
	if err != nil {
		return nil, fmt.Errorf("query active webhooks: %w", err)
	}
	defer rows.Close()

	var matched []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			log.Warn().Err(err).Msg("skipping unreadable webhook row")
			continue
		}
		if w.Subscribes(event) {
			matched = append(matched, w)
		}
	}
	return matched, rows.Err()
}

// RecordOutcome counts one delivery attempt. The increments happen inside a
// single UPDATE so concurrent rounds never lose a count.
func (r *WebhookRepository) RecordOutcome(ctx context.Context, id string, success bool, triggeredAt int64) error {
	succeeded, failed := 0, 1
	if success {
		succeeded, failed = 1, 0
	}

	query := `
		UPDATE webhooks
		SET total_calls = total_calls + 1,
			successful_calls = successful_calls + ?,
			failed_calls = failed_calls + ?,
			last_triggered_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), succeeded, failed, triggeredAt, id)
	if err != nil {
		return fmt.Errorf("record outcome for webhook %s: %w", id, err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
