package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/resilience"
)

var levelColors = map[Level]string{
	LevelInfo:    "#36a64f",
	LevelWarning: "#ffcc00",
	LevelError:   "#ff0000",
	LevelSuccess: "#00ff00",
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Fields []Field `json:"fields,omitempty"`
	Footer string  `json:"footer"`
	TS     int64   `json:"ts"`
}

// WebhookSink posts Slack-style attachments to an incoming webhook URL.
type WebhookSink struct {
	url    string
	client *http.Client
	retry  resilience.Policy
}

// NewWebhookSink creates a sink posting to url with a 10s request timeout.
func NewWebhookSink(url string) *WebhookSink {
	p := resilience.BackoffPolicy()
	p.OnRetry = resilience.RetryLogger("webhook", "send")
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  p,
	}
}

func (w *WebhookSink) Send(ctx context.Context, msg Message) error {
	color, ok := levelColors[msg.Level]
	if !ok {
		color = levelColors[LevelInfo]
	}
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	payload, err := json.Marshal(slackPayload{Attachments: []slackAttachment{{
		Color:  color,
		Title:  msg.Title,
		Text:   msg.Text,
		Fields: msg.Fields,
		Footer: "idea-scout",
		TS:     sentAt.Unix(),
	}}})
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	return resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.post(ctx, payload)
	})
}

func (w *WebhookSink) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
