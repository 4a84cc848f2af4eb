package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ggonzalez94/bridgectl/internal/model"
)

// StatusEvent is emitted on every bridge transaction transition.
type StatusEvent struct {
	TransactionID string         `json:"transaction_id"`
	Status        model.TxStatus `json:"status"`
	SourceChain   string         `json:"source_chain"`
	Token         string         `json:"token"`
	Amount        string         `json:"amount"`
	UserAddress   string         `json:"user_address"`
	FailureReason string         `json:"failure_reason,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func FromTransaction(tx model.BridgeTransaction) StatusEvent {
	return StatusEvent{
		TransactionID: tx.ID,
		Status:        tx.Status,
		SourceChain:   tx.SourceChain,
		Token:         tx.SourceToken,
		Amount:        tx.Amount,
		UserAddress:   tx.UserAddress,
		FailureReason: tx.FailureReason,
		OccurredAt:    tx.UpdatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event StatusEvent) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, StatusEvent) error { return nil }
func (Nop) Close() error                               { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes status events keyed by transaction id so every
// transition of one transaction lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	log    zerolog.Logger
	mu     sync.RWMutex
}

func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	addrs := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		log: log,
	}, nil
}

func (k *KafkaPublisher) Publish(ctx context.Context, event StatusEvent) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.writer == nil {
		return fmt.Errorf("kafka publisher closed")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: value,
		Time:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("write status event to kafka: %w", err)
	}
	k.log.Debug().
		Str("tx_id", event.TransactionID).
		Str("status", string(event.Status)).
		Msg("published status event")
	return nil
}

func (k *KafkaPublisher) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.writer == nil {
		return nil
	}
	err := k.writer.Close()
	k.writer = nil
	return err
}
