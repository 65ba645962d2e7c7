package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes messages as JSON events keyed by kind.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaSink creates a synchronous, gzip-compressed producer for topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, eris.New("notify: kafka brokers are required")
	}
	if topic == "" {
		return nil, eris.New("notify: kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{writer: w, topic: topic}, nil
}

// NewKafkaSinkWithWriter creates a sink over an existing writer. The writer
// must not have its own Topic set.
func NewKafkaSinkWithWriter(w MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

func (k *KafkaSink) Send(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal kafka event")
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: k.topic,
		Key:   []byte(msg.Kind),
		Value: value,
		Time:  msg.SentAt,
	})
	return eris.Wrapf(err, "notify: publish to %s", k.topic)
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
