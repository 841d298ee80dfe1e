package writer

import (
	"context"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "clawdash/config"
	"clawdash/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter emits each snapshot as one message keyed by the app name.
type KafkaWriter struct {
	writer messageWriter
	key    []byte
	log    *logger.Entry
}

func NewKafkaWriter(cfg appconfig.KafkaConfig, key string) (*KafkaWriter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	kw := newKafkaWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}, key)
	kw.log.WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Debug("kafka writer initialized")
	return kw, nil
}

func newKafkaWriter(w messageWriter, key string) *KafkaWriter {
	return &KafkaWriter{
		writer: w,
		key:    []byte(key),
		log:    logger.GetLogger().WithComponent("kafka_writer"),
	}
}

func (kw *KafkaWriter) Name() string { return "kafka" }

func (kw *KafkaWriter) Publish(ctx context.Context, payload []byte, meta Meta) error {
	msg := kafka.Message{
		Key:   kw.key,
		Value: payload,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(meta.RunID)},
			{Key: "snapshot_time", Value: []byte(meta.Timestamp)},
		},
	}
	if err := kw.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	kw.log.WithRun(meta.RunID).WithFields(logger.Fields{"bytes": len(payload)}).Debug("snapshot produced")
	return nil
}

func (kw *KafkaWriter) Close() error {
	return kw.writer.Close()
}
