package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

// NotificationPayload is the JSON body posted to the webhook
type NotificationPayload struct {
	Event       string            `json:"event"`
	SessionID   string            `json:"session_id"`
	Score       float64           `json:"score"`
	Metrics     measure.Snapshot  `json:"metrics"`
	Combination field.Combination `json:"combination,omitempty"`
	Timestamp   int64             `json:"timestamp"` // When notification was sent
}

const (
	breakerThreshold = 5
	breakerCooldown  = time.Minute
)

// Notifier posts best-score changes to a webhook
type Notifier struct {
	url        string
	httpClient *http.Client
	maxRetries int
	backoff    utils.RetryDelay
	breaker    *breaker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier from the notify settings; nil settings
// yield a nil notifier
func NewNotifier(cfg *config.Notify) *Notifier {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil
	}
	baseMs := cfg.BaseMs
	if baseMs == 0 {
		baseMs = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		url: cfg.WebhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: cfg.MaxRetries,
		backoff:    utils.NewRetryDelay(cfg.Backoff, baseMs, cfg.MaxMs),
		breaker:    newBreaker(breakerThreshold, breakerCooldown),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Notify sends the event to the webhook asynchronously
func (n *Notifier) Notify(ev improvement.ProgressEvent) {
	if n == nil {
		return
	}
	finalURL := strings.ReplaceAll(n.url, "{session_id}", ev.SessionID)
	eventName := "newBestScore"
	if ev.Type == improvement.EventInitialScore {
		eventName = "initialScore"
	}
	payload := NotificationPayload{
		Event:       eventName,
		SessionID:   ev.SessionID,
		Score:       ev.Score,
		Metrics:     ev.Metrics,
		Combination: ev.Combination,
		Timestamp:   time.Now().UTC().UnixMilli(),
	}

	if !n.breaker.Allow() {
		logger.Warn("webhook circuit open, skipping notification",
			"session_id", ev.SessionID,
			"event", eventName)
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if n.send(finalURL, payload) {
			n.breaker.Success()
		} else {
			n.breaker.Failure()
		}
	}()
}

// Wait blocks until all pending notifications are delivered or abandoned
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// Close abandons pending retries and waits for in-flight sends
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.cancel()
	n.wg.Wait()
}

// send delivers payload and reports whether the webhook accepted it
func (n *Notifier) send(url string, payload NotificationPayload) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"url", url,
			"session_id", payload.SessionID,
			"error", err)
		return false
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("retrying notification", "url", url, "attempt", attempt)
			if err := n.backoff.Wait(n.ctx, attempt-1); err != nil {
				logger.Warn("notification abandoned", "url", url, "session_id", payload.SessionID)
				return false
			}
		}

		req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "form-optimizer/1.0")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed",
				"url", url,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		responseBody := string(respBody)
		if len(responseBody) > 200 {
			responseBody = responseBody[:200] + "..."
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent successfully",
				"session_id", payload.SessionID,
				"event", payload.Event,
				"status_code", resp.StatusCode)
			return true
		}

		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status",
			"url", url,
			"status_code", resp.StatusCode,
			"response_body", responseBody,
			"attempt", attempt+1)
	}

	logger.Error("failed to send notification after retries",
		"url", url,
		"session_id", payload.SessionID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
	return false
}
