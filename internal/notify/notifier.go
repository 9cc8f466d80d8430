package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/models"
)

// Notifier delivers health alerts to an external sink. Implementations are
// best-effort: delivery failures are logged and swallowed, never returned.
type Notifier interface {
	NotifyHealth(ctx context.Context, modelName string, report *models.HealthReport)
}

func severityFor(status models.HealthStatus) string {
	if status == models.HealthStop {
		return "critical"
	}
	return "warning"
}

// WebhookNotifier POSTs health alerts to a configured endpoint with a short
// timeout.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *logrus.Logger
}

// NewWebhookNotifier creates a webhook sink. A non-positive timeout falls
// back to five seconds.
func NewWebhookNotifier(url string, timeout time.Duration, logger *logrus.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookPayload struct {
	Status   models.HealthStatus `json:"status"`
	Severity string              `json:"severity"`
	Model    string              `json:"model"`
	Reasons  []string            `json:"reasons"`
	Detail   map[string]float64  `json:"detail"`
}

func (n *WebhookNotifier) NotifyHealth(ctx context.Context, modelName string, report *models.HealthReport) {
	body, err := json.Marshal(webhookPayload{
		Status:   report.Status,
		Severity: severityFor(report.Status),
		Model:    modelName,
		Reasons:  report.Reasons,
		Detail:   report.Detail,
	})
	if err != nil {
		n.logger.WithError(err).Debug("Failed to encode health webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.WithError(err).Debug("Failed to build health webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.WithError(err).WithField("model", modelName).Warn("Health webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.WithFields(logrus.Fields{
			"model":  modelName,
			"status": resp.StatusCode,
		}).Warn("Health webhook rejected")
	}
}

// TelegramNotifier sends health alerts to a Telegram chat.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	logger *logrus.Logger
}

// NewTelegramNotifier creates a Telegram sink. Returns nil when the token is
// empty or the bot cannot be constructed.
func NewTelegramNotifier(token string, chatID int64, logger *logrus.Logger) *TelegramNotifier {
	if token == "" || chatID == 0 {
		return nil
	}
	b, err := bot.New(token)
	if err != nil {
		logger.WithError(err).Warn("Telegram bot initialization failed, alerts disabled")
		return nil
	}
	return &TelegramNotifier{bot: b, chatID: chatID, logger: logger}
}

func (n *TelegramNotifier) NotifyHealth(ctx context.Context, modelName string, report *models.HealthReport) {
	var sb strings.Builder
	icon := "⚠️"
	if report.Status == models.HealthStop {
		icon = "🛑"
	}
	fmt.Fprintf(&sb, "%s Model health %s: %s\n", icon, report.Status, modelName)
	for _, reason := range report.Reasons {
		fmt.Fprintf(&sb, "• %s\n", reason)
	}

	keys := make([]string, 0, len(report.Detail))
	for k := range report.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", k, decimal.NewFromFloat(report.Detail[k]).Round(4))
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   sb.String(),
	})
	if err != nil {
		n.logger.WithError(err).WithField("model", modelName).Warn("Telegram alert delivery failed")
	}
}

// MultiNotifier fans an alert out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyHealth(ctx context.Context, modelName string, report *models.HealthReport) {
	for _, n := range m {
		if n != nil {
			n.NotifyHealth(ctx, modelName, report)
		}
	}
}
