package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet/internal/models"

	"github.com/IBM/sarama"
)

// KafkaWriter publishes audit entries keyed by wallet so a wallet's history
// stays ordered within one partition.
type KafkaWriter struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaWriter(producer sarama.SyncProducer, topic string) *KafkaWriter {
	return &KafkaWriter{producer: producer, topic: topic}
}

func (w *KafkaWriter) Write(_ context.Context, entry models.AuditLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("KafkaWriter.Write: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: w.topic,
		Key:   sarama.StringEncoder(entry.WalletID.String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("action"), Value: []byte(entry.Action)},
		},
	}
	if _, _, err := w.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("KafkaWriter.Write: %w", err)
	}
	return nil
}

func (w *KafkaWriter) Name() string {
	return "kafka"
}

func (w *KafkaWriter) Close() error {
	return w.producer.Close()
}
