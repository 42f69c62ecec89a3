package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhooks/internal/platform/database/dbtest"
	"crmhooks/internal/platform/models"
)

func TestDeliveryLogRepository_AppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewDeliveryLogRepository(dbtest.Open(t))

	ok := &models.DeliveryLog{
		WebhookID:   "wh_1",
		Event:       "TASK_CREATED",
		URL:         "https://hooks.example.com/a",
		Payload:     `{"event":"TASK_CREATED","timestamp":"2024-01-01T00:00:00.000Z","data":{}}`,
		StatusCode:  200,
		Success:     true,
		DurationMs:  12,
		TriggeredAt: 1000,
	}
	failed := &models.DeliveryLog{
		WebhookID:    "wh_1",
		Event:        "TASK_UPDATED",
		URL:          "https://hooks.example.com/a",
		Payload:      `{}`,
		StatusCode:   500,
		Success:      false,
		ErrorMessage: "HTTP 500: Internal Server Error",
		DurationMs:   30,
		TriggeredAt:  2000,
	}
	other := &models.DeliveryLog{WebhookID: "wh_2", Event: "EMAIL_SENT", URL: "u", Payload: "{}", TriggeredAt: 3000, ErrorMessage: "x"}

	for _, e := range []*models.DeliveryLog{ok, failed, other} {
		require.NoError(t, repo.Append(ctx, e))
		assert.Contains(t, e.ID, "whl_")
	}

	entries, err := repo.ListByWebhook(ctx, "wh_1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, failed.ID, entries[0].ID)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "HTTP 500: Internal Server Error", entries[0].ErrorMessage)
	assert.Equal(t, ok.ID, entries[1].ID)
	assert.True(t, entries[1].Success)
	assert.Empty(t, entries[1].ErrorMessage)
	assert.Equal(t, ok.Payload, entries[1].Payload)

	page, err := repo.ListByWebhook(ctx, "wh_1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ok.ID, page[0].ID)

	count, err := repo.CountByWebhook(ctx, "wh_1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
