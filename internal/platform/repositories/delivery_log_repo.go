package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"crmhooks/internal/platform/database"
	"crmhooks/internal/platform/models"
)

// DeliveryLogRepository only ever inserts and reads; delivery history is immutable.
type DeliveryLogRepository struct {
	db *database.DB
}

func NewDeliveryLogRepository(db *database.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

func (r *DeliveryLogRepository) Append(ctx context.Context, entry *models.DeliveryLog) error {
	if entry.ID == "" {
		entry.ID = "whl_" + uuid.New().String()
	}

	var errorMessage sql.NullString
	if !entry.Success {
		errorMessage = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}

	query := `
		INSERT INTO webhook_delivery_logs (id, webhook_id, event, url, payload, status_code, success, error_message, duration_ms, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), entry.ID, entry.WebhookID, entry.Event, entry.URL, entry.Payload,
		entry.StatusCode, entry.Success, errorMessage, entry.DurationMs, entry.TriggeredAt)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// ListByWebhook returns the newest entries first.
func (r *DeliveryLogRepository) ListByWebhook(ctx context.Context, webhookID string, limit, offset int) ([]*models.DeliveryLog, error) {
	query := `
		SELECT id, webhook_id, event, url, payload, status_code, success, error_message, duration_ms, triggered_at
		FROM webhook_delivery_logs
		WHERE webhook_id = ?
		ORDER BY triggered_at DESC, id
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), webhookID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()

	entries := []*models.DeliveryLog{}
	for rows.Next() {
		var l models.DeliveryLog
		var errorMessage sql.NullString
		if err := rows.Scan(&l.ID, &l.WebhookID, &l.Event, &l.URL, &l.Payload, &l.StatusCode, &l.Success,
			&errorMessage, &l.DurationMs, &l.TriggeredAt); err != nil {
			return nil, err
		}
		if errorMessage.Valid {
			l.ErrorMessage = errorMessage.String
		}
		entries = append(entries, &l)
	}
	return entries, rows.Err()
}

func (r *DeliveryLogRepository) CountByWebhook(ctx context.Context, webhookID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM webhook_delivery_logs WHERE webhook_id = ?`), webhookID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count delivery logs: %w", err)
	}
	return count, nil
}
