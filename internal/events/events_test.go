package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ggonzalez94/bridgectl/internal/model"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByTransaction(t *testing.T) {
	w := &recordingWriter{}
	pub := &KafkaPublisher{writer: w, log: zerolog.Nop()}

	tx := model.BridgeTransaction{
		ID:          "btx_abc",
		SourceChain: "polygon",
		SourceToken: "USDC",
		Amount:      "10",
		Status:      model.StatusBridging,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := pub.Publish(context.Background(), FromTransaction(tx)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "btx_abc" {
		t.Fatalf("unexpected key: %s", w.msgs[0].Key)
	}
	var decoded StatusEvent
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if decoded.Status != model.StatusBridging || decoded.Token != "USDC" {
		t.Fatalf("unexpected event: %+v", decoded)
	}

	if err := pub.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed, err=%v", err)
	}
	if err := pub.Publish(context.Background(), FromTransaction(tx)); err == nil {
		t.Fatal("expected publish after close to fail")
	}
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	pub := &KafkaPublisher{writer: &recordingWriter{err: boom}, log: zerolog.Nop()}
	err := pub.Publish(context.Background(), StatusEvent{TransactionID: "btx_1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "topic", zerolog.Nop()); err == nil {
		t.Fatal("expected missing broker error")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, " ", zerolog.Nop()); err == nil {
		t.Fatal("expected missing topic error")
	}
}

func TestNewKafkaPublisherFlushesPromptly(t *testing.T) {
	pub, err := NewKafkaPublisher([]string{" localhost:9092 ", ""}, "bridge-status", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewKafkaPublisher failed: %v", err)
	}
	defer pub.Close()
	w, ok := pub.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("unexpected writer type %T", pub.writer)
	}
	if w.BatchTimeout <= 0 || w.BatchTimeout >= time.Second {
		t.Fatalf("batch timeout should be well under kafka-go's 1s default, got %s", w.BatchTimeout)
	}
}
