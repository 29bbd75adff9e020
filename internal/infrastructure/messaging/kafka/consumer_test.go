package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

type mockKafkaReader struct {
	fetchFunc  func(ctx context.Context) (kafka.Message, error)
	commitFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc  func() error
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.commitFunc != nil {
		return m.commitFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaReader) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

// onceReader yields msgs in order, then blocks until cancelled.
func onceReader(msgs ...kafka.Message) *mockKafkaReader {
	var mu sync.Mutex
	return &mockKafkaReader{
		fetchFunc: func(ctx context.Context) (kafka.Message, error) {
			mu.Lock()
			if len(msgs) > 0 {
				m := msgs[0]
				msgs = msgs[1:]
				mu.Unlock()
				return m, nil
			}
			mu.Unlock()
			<-ctx.Done()
			return kafka.Message{}, ctx.Err()
		},
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*Message
}

func (r *recordingPublisher) Publish(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "ipw-worker",
		Topics:  []string{TopicViolationAlerts},
		RetryConfig: RetryConfig{
			MaxRetries:   1,
			RetryBackoff: time.Millisecond,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	cfg := newTestConsumerConfig()
	assert.NoError(t, ValidateConsumerConfig(cfg))

	bad := cfg
	bad.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(bad))

	bad = cfg
	bad.Topics = nil
	assert.Error(t, ValidateConsumerConfig(bad))

	bad = cfg
	bad.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(bad))

	bad = cfg
	bad.Brokers = nil
	assert.Error(t, ValidateConsumerConfig(bad))
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, nil, newTestConsumerConfig(), logging.NewNopLogger())
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))
}

func TestConsumeLoop_DispatchesAndCommits(t *testing.T) {
	committed := make(chan kafka.Message, 1)
	r := onceReader(kafka.Message{
		Topic:   TopicViolationAlerts,
		Value:   []byte("value"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(EventEnforcementAlert)}},
	})
	r.commitFunc = func(_ context.Context, msgs ...kafka.Message) error {
		committed <- msgs[0]
		return nil
	}

	c := NewConsumerWithReader(r, nil, newTestConsumerConfig(), nil)
	got := make(chan *Message, 1)
	c.Subscribe(TopicViolationAlerts, func(_ context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	select {
	case msg := <-got:
		assert.Equal(t, "value", string(msg.Value))
		assert.Equal(t, EventEnforcementAlert, msg.Headers["event_type"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
	select {
	case m := <-committed:
		assert.Equal(t, "value", string(m.Value))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for commit")
	}
	assert.Eventually(t, func() bool { return c.Processed() == 1 }, time.Second, 5*time.Millisecond)
}

func TestProcess_RetrySuccess(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.MaxRetries = 2
	c := NewConsumerWithReader(&mockKafkaReader{}, nil, cfg, nil)

	attempts := 0
	handler := func(context.Context, *Message) error {
		attempts++
		if attempts < 2 {
			return stderrors.New("fail")
		}
		return nil
	}

	require.NoError(t, c.process(context.Background(), &Message{}, handler))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
	assert.Equal(t, int64(1), c.Processed())
}

func TestProcess_RetryExhaustedGoesToDeadLetter(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.DeadLetterTopic = TopicDeadLetter
	dl := &recordingPublisher{}
	c := NewConsumerWithReader(&mockKafkaReader{}, dl, cfg, nil)

	handler := func(context.Context, *Message) error { return stderrors.New("webhook 500") }
	msg := &Message{Topic: TopicViolationAlerts, Key: []byte("k"), Value: []byte("v")}

	require.NoError(t, c.process(context.Background(), msg, handler))
	assert.Equal(t, int64(1), c.metrics.MessagesFailed.Load())
	require.Len(t, dl.msgs, 1)
	assert.Equal(t, TopicDeadLetter, dl.msgs[0].Topic)
	assert.Equal(t, TopicViolationAlerts, dl.msgs[0].Headers["original_topic"])
	assert.Equal(t, "webhook 500", dl.msgs[0].Headers["error_message"])
	assert.Equal(t, int64(1), c.metrics.MessagesDeadLettered.Load())
}

func TestProcess_CancelledDuringBackoff(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.RetryBackoff = time.Hour
	c := NewConsumerWithReader(&mockKafkaReader{}, nil, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.process(ctx, &Message{}, func(context.Context, *Message) error { return stderrors.New("x") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsumerClose_Idempotent(t *testing.T) {
	closes := 0
	r := &mockKafkaReader{closeFunc: func() error { closes++; return nil }}
	c := NewConsumerWithReader(r, nil, newTestConsumerConfig(), nil)

	assert.NoError(t, c.Close())
	assert.Equal(t, 0, closes, "never started")

	require.NoError(t, c.Start(context.Background()))
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Equal(t, 1, closes)
}
