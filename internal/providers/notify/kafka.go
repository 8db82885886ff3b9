package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka publishes alerts for downstream paging/SMS consumers, keyed by doctor.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(cfg KafkaConfig) *Kafka {
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}}
}

func (k *Kafka) Method() string { return "kafka" }

func (k *Kafka) Send(ctx context.Context, a Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.DoctorID),
		Value: b,
		Time:  a.CreatedAt,
		Headers: []kafka.Header{
			{Key: "urgency", Value: []byte(a.Urgency)},
		},
	})
}

func (k *Kafka) Close() error { return k.writer.Close() }
