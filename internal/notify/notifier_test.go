package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantora/mlserve/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func stopReport() *models.HealthReport {
	return &models.HealthReport{
		Status:    models.HealthStop,
		Reasons:   []string{"max feature z-score 10.00 exceeds 5.0"},
		Detail:    map[string]float64{"z_abs_max": 10},
		CheckedAt: time.Now(),
	}
}

func TestWebhookNotifierDeliversPayload(t *testing.T) {
	var got webhookPayload
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		received <- struct{}{}
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, testLogger())
	n.NotifyHealth(context.Background(), "lin", stopReport())

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("webhook not delivered")
	}
	assert.Equal(t, models.HealthStop, got.Status)
	assert.Equal(t, "critical", got.Severity)
	assert.Equal(t, "lin", got.Model)
	assert.Equal(t, 10.0, got.Detail["z_abs_max"])
}

func TestWebhookNotifierSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, testLogger())
	// Rejected delivery must not panic or error.
	n.NotifyHealth(context.Background(), "lin", stopReport())

	unreachable := NewWebhookNotifier("http://127.0.0.1:1", 100*time.Millisecond, testLogger())
	unreachable.NotifyHealth(context.Background(), "lin", stopReport())
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, "critical", severityFor(models.HealthStop))
	assert.Equal(t, "warning", severityFor(models.HealthWarning))
}

func TestTelegramNotifierRequiresCredentials(t *testing.T) {
	assert.Nil(t, NewTelegramNotifier("", 123, testLogger()))
	assert.Nil(t, NewTelegramNotifier("token", 0, testLogger()))
}

func TestMultiNotifierFansOut(t *testing.T) {
	a := &countingNotifier{}
	b := &countingNotifier{}
	m := MultiNotifier{a, nil, b}

	m.NotifyHealth(context.Background(), "lin", stopReport())
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) NotifyHealth(ctx context.Context, modelName string, report *models.HealthReport) {
	n.calls++
}
