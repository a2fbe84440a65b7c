package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/platform/logger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type bookCreated struct {
	Action string         `json:"action"`
	Book   map[string]any `json:"book"`
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: logger.Discard()}

	err := p.Publish(context.Background(), "books-events", bookCreated{Action: "create", Book: map[string]any{"title": "Dune"}})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "books-events", w.msgs[0].Topic)
	assert.JSONEq(t, `{"action":"create","book":{"title":"Dune"}}`, string(w.msgs[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_Errors(t *testing.T) {
	broker := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: broker}, logger: logger.Discard()}

	assert.ErrorIs(t, p.Publish(context.Background(), "t", map[string]int{"a": 1}), broker)
	assert.Error(t, p.Publish(context.Background(), "t", make(chan int)))
}

func TestNewKafkaPublisher_ConfiguresAsyncWriter(t *testing.T) {
	p := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, logger.Discard())
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, w.Async)
	assert.Empty(t, w.Topic)
	assert.NotNil(t, w.Completion)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, p.Publish(context.Background(), "books-events", map[string]string{"action": "create"}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "event published", line["msg"])
	assert.Equal(t, "books-events", line["topic"])
	assert.Equal(t, map[string]any{"action": "create"}, line["payload"])
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(), "a", 1))
	require.NoError(t, r.Publish(context.Background(), "b", "x"))

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Topic)
	assert.JSONEq(t, `"x"`, string(msgs[1].Payload))

	r.FailWith(errors.New("down"))
	assert.Error(t, r.Publish(context.Background(), "c", 2))
	assert.Len(t, r.Messages(), 2)
}
