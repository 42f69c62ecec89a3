package webhooks

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhooks/internal/platform/config"
	"crmhooks/internal/platform/database"
	"crmhooks/internal/platform/database/dbtest"
	"crmhooks/internal/platform/models"
	"crmhooks/internal/platform/repositories"
)

type fixture struct {
	db    *database.DB
	hooks *repositories.WebhookRepository
	logs  *repositories.DeliveryLogRepository
	d     *Dispatcher
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	hooks := repositories.NewWebhookRepository(db)
	logs := repositories.NewDeliveryLogRepository(db)
	sender := NewSender(config.WebhooksConfig{DeliveryTimeout: timeout})
	return &fixture{
		db:    db,
		hooks: hooks,
		logs:  logs,
		d:     NewDispatcher(hooks, sender, NewRecorder(hooks, logs, nil), nil),
	}
}

func (f *fixture) addHook(t *testing.T, url string, active bool, events ...string) *models.Webhook {
	t.Helper()
	hook := &models.Webhook{Name: "hook", URL: url, Events: events, IsActive: active}
	require.NoError(t, f.hooks.Create(context.Background(), hook))
	return hook
}

func (f *fixture) reload(t *testing.T, id string) *models.Webhook {
	t.Helper()
	hook, err := f.hooks.GetByID(context.Background(), id)
	require.NoError(t, err)
	return hook
}

func (f *fixture) logsFor(t *testing.T, id string) []*models.DeliveryLog {
	t.Helper()
	entries, err := f.logs.ListByWebhook(context.Background(), id, 100, 0)
	require.NoError(t, err)
	return entries
}

func (f *fixture) totalLogs(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM webhook_delivery_logs`).Scan(&n))
	return n
}

// countingServer answers with status and counts hits.
func countingServer(t *testing.T, status int, delay time.Duration) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDispatcher_Trigger(t *testing.T) {
	t.Run("delivers once to each active subscriber", func(t *testing.T) {
		f := newFixture(t, time.Second)
		srvA, hitsA := countingServer(t, http.StatusOK, 0)
		srvB, hitsB := countingServer(t, http.StatusAccepted, 0)
		srvOff, hitsOff := countingServer(t, http.StatusOK, 0)
		srvOther, hitsOther := countingServer(t, http.StatusOK, 0)

		a := f.addHook(t, srvA.URL, true, "TASK_CREATED")
		b := f.addHook(t, srvB.URL, true, "EMPLOYEE_CREATED", "TASK_CREATED")
		off := f.addHook(t, srvOff.URL, false, "TASK_CREATED")
		other := f.addHook(t, srvOther.URL, true, "TASK_UPDATED")

		f.d.Trigger(context.Background(), "TASK_CREATED", map[string]any{"id": "task_1"})

		assert.EqualValues(t, 1, hitsA.Load())
		assert.EqualValues(t, 1, hitsB.Load())
		assert.Zero(t, hitsOff.Load())
		assert.Zero(t, hitsOther.Load())

		for _, hook := range []*models.Webhook{a, b} {
			got := f.reload(t, hook.ID)
			assert.EqualValues(t, 1, got.TotalCalls)
			assert.EqualValues(t, 1, got.SuccessfulCalls)
			assert.Zero(t, got.FailedCalls)
			assert.NotZero(t, got.LastTriggeredAt)
		}
		for _, hook := range []*models.Webhook{off, other} {
			got := f.reload(t, hook.ID)
			assert.Zero(t, got.TotalCalls)
			assert.Zero(t, got.LastTriggeredAt)
			assert.Empty(t, f.logsFor(t, hook.ID))
		}

		logsA, logsB := f.logsFor(t, a.ID), f.logsFor(t, b.ID)
		require.Len(t, logsA, 1)
		require.Len(t, logsB, 1)
		// one envelope per round: identical payload and timestamp for every subscriber
		assert.Equal(t, logsA[0].Payload, logsB[0].Payload)
		assert.Contains(t, logsA[0].Payload, `"event":"TASK_CREATED"`)
		assert.Equal(t, srvA.URL, logsA[0].URL)
		assert.Equal(t, http.StatusOK, logsA[0].StatusCode)
		assert.Equal(t, http.StatusAccepted, logsB[0].StatusCode)
	})

	t.Run("no matching subscribers leaves no trace", func(t *testing.T) {
		f := newFixture(t, time.Second)
		srv, hits := countingServer(t, http.StatusOK, 0)
		hook := f.addHook(t, srv.URL, true, "TASK_CREATED")
		f.addHook(t, srv.URL, false, "EMAIL_SENT")

		f.d.Trigger(context.Background(), "EMAIL_SENT", nil)

		assert.Zero(t, hits.Load())
		assert.Zero(t, f.totalLogs(t))
		got := f.reload(t, hook.ID)
		assert.Zero(t, got.TotalCalls)
	})

	t.Run("failures are recorded and do not stop siblings", func(t *testing.T) {
		f := newFixture(t, time.Second)
		okSrv, _ := countingServer(t, http.StatusOK, 0)
		badSrv, _ := countingServer(t, http.StatusInternalServerError, 0)
		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		ok := f.addHook(t, okSrv.URL, true, "EMAIL_RECEIVED")
		bad := f.addHook(t, badSrv.URL, true, "EMAIL_RECEIVED")
		unreachable := f.addHook(t, deadURL, true, "EMAIL_RECEIVED")

		assert.NotPanics(t, func() {
			f.d.Trigger(context.Background(), "EMAIL_RECEIVED", map[string]any{"id": "m1"})
		})

		gotOK := f.reload(t, ok.ID)
		assert.EqualValues(t, 1, gotOK.SuccessfulCalls)

		gotBad := f.reload(t, bad.ID)
		assert.EqualValues(t, 1, gotBad.FailedCalls)
		badLogs := f.logsFor(t, bad.ID)
		require.Len(t, badLogs, 1)
		assert.Equal(t, "HTTP 500: Internal Server Error", badLogs[0].ErrorMessage)

		gotDead := f.reload(t, unreachable.ID)
		assert.EqualValues(t, 1, gotDead.FailedCalls)
		deadLogs := f.logsFor(t, unreachable.ID)
		require.Len(t, deadLogs, 1)
		assert.Zero(t, deadLogs[0].StatusCode)
		assert.NotEmpty(t, deadLogs[0].ErrorMessage)

		assert.Equal(t, 3, f.totalLogs(t))
	})

	t.Run("a timeout does not hold up other subscribers", func(t *testing.T) {
		f := newFixture(t, 300*time.Millisecond)
		slowSrv, _ := countingServer(t, http.StatusOK, 10*time.Second)
		fastSrv, _ := countingServer(t, http.StatusOK, 0)

		slow := f.addHook(t, slowSrv.URL, true, "TASK_DELETED")
		fast := f.addHook(t, fastSrv.URL, true, "TASK_DELETED")

		start := time.Now()
		f.d.Trigger(context.Background(), "TASK_DELETED", map[string]any{"id": "task_9"})
		elapsed := time.Since(start)

		assert.Less(t, elapsed, 3*time.Second)

		slowLogs, fastLogs := f.logsFor(t, slow.ID), f.logsFor(t, fast.ID)
		require.Len(t, slowLogs, 1)
		require.Len(t, fastLogs, 1)
		assert.False(t, slowLogs[0].Success)
		assert.Contains(t, slowLogs[0].ErrorMessage, "timed out")
		assert.True(t, fastLogs[0].Success)
		assert.Less(t, fastLogs[0].DurationMs, int64(300))
		// both attempts start together; only the counters see the slow finish
		assert.InDelta(t, fastLogs[0].TriggeredAt, slowLogs[0].TriggeredAt, 200)
		assert.GreaterOrEqual(t, f.reload(t, slow.ID).LastTriggeredAt-slowLogs[0].TriggeredAt, int64(250))
	})

	t.Run("deliveries run concurrently", func(t *testing.T) {
		f := newFixture(t, 5*time.Second)

		const n = 10
		var slowest, sum time.Duration
		hooks := make([]*models.Webhook, 0, n)
		for _, i := range rand.Perm(n) {
			delay := time.Duration(i*50) * time.Millisecond
			sum += delay
			slowest = max(slowest, delay)
			srv, _ := countingServer(t, http.StatusOK, delay)
			hooks = append(hooks, f.addHook(t, srv.URL, true, "EMPLOYEE_UPDATED"))
		}

		start := time.Now()
		f.d.Trigger(context.Background(), "EMPLOYEE_UPDATED", map[string]any{"id": "emp_1", "changes": map[string]any{}})
		elapsed := time.Since(start)

		assert.GreaterOrEqual(t, elapsed, slowest)
		assert.Less(t, elapsed, slowest+time.Second)
		assert.Less(t, elapsed, sum)

		assert.Equal(t, n, f.totalLogs(t))
		for _, hook := range hooks {
			assert.EqualValues(t, 1, f.reload(t, hook.ID).TotalCalls)
		}
	})

	t.Run("recovers from internal panics", func(t *testing.T) {
		d := NewDispatcher(repositories.NewWebhookRepository(nil), NewSender(config.WebhooksConfig{}), nil, nil)
		assert.NotPanics(t, func() {
			d.Trigger(context.Background(), "TASK_CREATED", nil)
		})
	})
}

func TestDispatcher_ConcurrentRoundsKeepCountersConsistent(t *testing.T) {
	f := newFixture(t, time.Second)

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hookA := f.addHook(t, srv.URL, true, "TASK_CREATED", "TASK_UPDATED")
	hookB := f.addHook(t, srv.URL, true, "TASK_UPDATED")

	const rounds = 8
	for i := 0; i < rounds; i++ {
		event := "TASK_CREATED"
		if i%2 == 1 {
			event = "TASK_UPDATED"
		}
		f.d.Go(event, map[string]any{"round": i})
	}
	f.d.Wait()

	a := f.reload(t, hookA.ID)
	b := f.reload(t, hookB.ID)
	assert.EqualValues(t, rounds, a.TotalCalls)
	assert.EqualValues(t, rounds/2, b.TotalCalls)
	for _, hook := range []*models.Webhook{a, b} {
		assert.Equal(t, hook.TotalCalls, hook.SuccessfulCalls+hook.FailedCalls)
		assert.Len(t, f.logsFor(t, hook.ID), int(hook.TotalCalls))
	}
	assert.EqualValues(t, rounds+rounds/2, calls.Load())
}

func TestDispatcher_GoReturnsImmediately(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	srv, hits := countingServer(t, http.StatusOK, 400*time.Millisecond)
	f.addHook(t, srv.URL, true, "EMAIL_SENT")

	start := time.Now()
	f.d.Go("EMAIL_SENT", map[string]any{"id": "m2"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	f.d.Wait()
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 1, f.totalLogs(t))
}

func TestDispatcher_Ping(t *testing.T) {
	f := newFixture(t, time.Second)
	srv, reqs := captureServer(t, http.StatusOK)

	hook := f.addHook(t, srv.URL, false, "TASK_CREATED")
	hook.Secret = "ping-secret"

	out := f.d.Ping(context.Background(), hook)
	assert.True(t, out.Success)

	got := <-reqs
	assert.Equal(t, "WEBHOOK_TEST", got.header.Get("X-Webhook-Event"))
	assert.True(t, Verify("ping-secret", got.body, got.header.Get("X-Webhook-Signature")))

	entries := f.logsFor(t, hook.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "WEBHOOK_TEST", entries[0].Event)
	assert.Equal(t, string(got.body), entries[0].Payload)
	assert.EqualValues(t, 1, f.reload(t, hook.ID).TotalCalls)
}
