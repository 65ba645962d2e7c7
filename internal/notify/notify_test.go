package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scout/internal/resilience"
)

func newTestWebhook(url string) *WebhookSink {
	w := NewWebhookSink(url)
	w.retry = resilience.FixedPolicy(3, 0)
	return w
}

func TestWebhookSink_Send(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sentAt := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	err := newTestWebhook(srv.URL).Send(context.Background(), Message{
		Kind:   "run_complete",
		Level:  LevelWarning,
		Title:  "Discovery run complete",
		Text:   "no candidates promoted",
		Fields: []Field{{Title: "Analyzed", Value: "3", Short: true}},
		SentAt: sentAt,
	})
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	a := got.Attachments[0]
	assert.Equal(t, "#ffcc00", a.Color)
	assert.Equal(t, "Discovery run complete", a.Title)
	assert.Equal(t, "idea-scout", a.Footer)
	assert.Equal(t, sentAt.Unix(), a.TS)
	assert.Equal(t, "Analyzed", a.Fields[0].Title)
}

func TestWebhookSink_LevelColors(t *testing.T) {
	assert.Equal(t, "#36a64f", levelColors[LevelInfo])
	assert.Equal(t, "#ff0000", levelColors[LevelError])
	assert.Equal(t, "#00ff00", levelColors[LevelSuccess])
}

func TestWebhookSink_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestWebhook(srv.URL).Send(context.Background(), Message{Title: "x"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookSink_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestWebhook(srv.URL).Send(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink_Send(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(w, "idea-scout.events")

	require.NoError(t, sink.Send(context.Background(), Message{Kind: "high_score", Level: LevelSuccess, Title: "X"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "idea-scout.events", w.msgs[0].Topic)
	assert.Equal(t, "high_score", string(w.msgs[0].Key))

	var decoded Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "X", decoded.Title)
	assert.False(t, decoded.SentAt.IsZero())
}

func TestKafkaSink_Errors(t *testing.T) {
	_, err := NewKafkaSink(nil, "t")
	assert.Error(t, err)
	_, err = NewKafkaSink([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	sink := NewKafkaSinkWithWriter(&fakeWriter{err: errors.New("leader not available")}, "t")
	err = sink.Send(context.Background(), Message{Kind: "run_complete"})
	assert.ErrorContains(t, err, "notify: publish to t")
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *recordingSink) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestMulti_SendsToAll(t *testing.T) {
	a := &recordingSink{err: errors.New("a down")}
	b := &recordingSink{}

	err := Multi{a, b}.Send(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Len(t, a.msgs, 1)
	assert.Len(t, b.msgs, 1)

	assert.NoError(t, Multi{b}.Send(context.Background(), Message{}))
	assert.NoError(t, Noop{}.Send(context.Background(), Message{}))
}

func TestGuarded_OpensAfterFailures(t *testing.T) {
	inner := &recordingSink{err: errors.New("down")}
	g := NewGuarded(inner, resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	ctx := context.Background()

	assert.Error(t, g.Send(ctx, Message{}))
	assert.Error(t, g.Send(ctx, Message{}))

	err := g.Send(ctx, Message{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, inner.msgs, 2)
}
