package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// AlertManagerConfig contains configuration for the alert manager.
type AlertManagerConfig struct {
	MaxAlerts      int
	EnableWebhooks bool
	WebhookURL     string
	WebhookTimeout time.Duration
}

// AlertManager stores recent threat alerts, fans them out to subscribers
// (the websocket hub, the TUI) and optionally posts them to a webhook.
// Alerts are immutable once stored; delivery is one-way.
type AlertManager struct {
	mu          sync.RWMutex
	alerts      []*types.Alert
	subscribers []chan *types.Alert

	config *AlertManagerConfig
	client *http.Client
	logger *zap.Logger
}

// NewAlertManager creates an alert manager. A nil config uses the defaults.
func NewAlertManager(config *AlertManagerConfig, logger *zap.Logger) *AlertManager {
	if config == nil {
		config = &AlertManagerConfig{
			MaxAlerts:      1000,
			WebhookTimeout: 10 * time.Second,
		}
	}
	if config.MaxAlerts <= 0 {
		config.MaxAlerts = 1000
	}
	if config.WebhookTimeout <= 0 {
		config.WebhookTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertManager{
		config: config,
		client: &http.Client{Timeout: config.WebhookTimeout},
		logger: logger,
	}
}

// SendAlert stores the alert, notifies subscribers and fires the webhook.
func (am *AlertManager) SendAlert(ctx context.Context, alert *types.Alert) error {
	if alert == nil {
		return fmt.Errorf("%w: nil alert", types.ErrInvalidInput)
	}
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("alert_%d", time.Now().UnixNano())
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	am.mu.Lock()
	am.alerts = append(am.alerts, alert)
	if len(am.alerts) > am.config.MaxAlerts {
		am.alerts = am.alerts[len(am.alerts)-am.config.MaxAlerts:]
	}
	subscribers := append([]chan *types.Alert(nil), am.subscribers...)
	am.mu.Unlock()

	am.logger.Warn("threat alert",
		zap.String("id", alert.ID),
		zap.String("threat", string(alert.Threat)),
		zap.String("severity", string(alert.Severity)),
		zap.String("feed", alert.FeedID),
		zap.Int("score", alert.Score))

	for _, sub := range subscribers {
		select {
		case sub <- alert:
		default:
			// Slow subscriber: drop rather than block the hot path.
		}
	}

	if am.config.EnableWebhooks && am.config.WebhookURL != "" {
		go am.postWebhook(alert)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (am *AlertManager) RecentAlerts(limit int) []*types.Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alerts) {
		limit = len(am.alerts)
	}
	out := make([]*types.Alert, 0, limit)
	for i := len(am.alerts) - 1; i >= len(am.alerts)-limit; i-- {
		out = append(out, am.alerts[i])
	}
	return out
}

// Subscribe returns a channel receiving every future alert. Subscribers that
// fall behind miss alerts instead of blocking delivery.
func (am *AlertManager) Subscribe() <-chan *types.Alert {
	ch := make(chan *types.Alert, 64)
	am.mu.Lock()
	am.subscribers = append(am.subscribers, ch)
	am.mu.Unlock()
	return ch
}

func (am *AlertManager) postWebhook(alert *types.Alert) {
	body, err := json.Marshal(alert)
	if err != nil {
		am.logger.Error("webhook marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), am.config.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, am.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		am.logger.Error("webhook request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := am.client.Do(req)
	if err != nil {
		am.logger.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		am.logger.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
	}
}

var _ interfaces.AlertManager = (*AlertManager)(nil)
