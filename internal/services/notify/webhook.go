package notify

import (
	"context"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	"PricePulse/pkg/config"
	xhttp "PricePulse/pkg/http"
	applogger "PricePulse/pkg/logger"
)

// Webhook posts recommendation alerts to a configured URL. Failures are
// logged and counted, never propagated to the caller.
type Webhook struct {
	url        string
	attempts   int
	minUrgency models.Urgency
	client     *xhttp.Client
	l          *applogger.Logger
	metrics    domrepo.Metrics
}

// alertPayload is the wire shape posted to the webhook.
type alertPayload struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Rule        string `json:"rule"`
	Title       string `json:"title"`
	Impact      string `json:"impact"`
	Confidence  int    `json:"confidence"`
	Urgency     string `json:"urgency"`
	EvaluatedAt string `json:"evaluated_at"`
}

// NewWebhook builds the alert sink from config. A webhook with no URL is
// valid and stays disabled.
func NewWebhook(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *Webhook {
	timeout := cfg.Alerts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	attempts := cfg.Alerts.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	minUrgency := models.Urgency(cfg.Alerts.MinUrgency)
	if minUrgency.Rank() == 0 {
		minUrgency = models.UrgencyCritical
	}
	url := ""
	if cfg.Alerts.Enabled {
		url = cfg.Alerts.WebhookURL
	}
	return &Webhook{
		url:        url,
		attempts:   attempts,
		minUrgency: minUrgency,
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithUserAgent("pricepulse-alerts/1.0"),
		),
		l:       l,
		metrics: m,
	}
}

// Enabled reports whether a destination URL is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

// NotifyRecommendations posts one alert per recommendation whose urgency
// meets the configured minimum.
func (w *Webhook) NotifyRecommendations(ctx context.Context, eval *models.Evaluation) {
	if !w.Enabled() || eval == nil {
		return
	}
	for _, rec := range eval.Recommendations {
		if rec.Urgency.Rank() < w.minUrgency.Rank() {
			continue
		}
		payload := alertPayload{
			ProductID:   eval.ProductID,
			ProductName: eval.ProductName,
			Rule:        string(rec.Rule),
			Title:       rec.Title,
			Impact:      rec.Impact,
			Confidence:  rec.Confidence,
			Urgency:     string(rec.Urgency),
			EvaluatedAt: eval.EvaluatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.post(ctx, payload); err != nil {
			w.metrics.RecordError("alert_webhook")
			if w.l != nil {
				w.l.Error("alert webhook post failed",
					applogger.String("product_id", eval.ProductID),
					applogger.String("rule", string(rec.Rule)),
					applogger.Error(err),
				)
			}
			continue
		}
		if w.l != nil {
			w.l.Info("alert dispatched",
				applogger.String("product_id", eval.ProductID),
				applogger.String("rule", string(rec.Rule)),
				applogger.String("urgency", string(rec.Urgency)),
			)
		}
	}
}

// post sends one alert with linear backoff between attempts.
func (w *Webhook) post(ctx context.Context, payload alertPayload) error {
	var err error
	for i := 1; i <= w.attempts; i++ {
		err = w.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    w.url,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: payload,
		}, nil)
		if err == nil {
			return nil
		}
		select {
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
