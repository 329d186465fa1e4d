package report

import (
	"context"
	"encoding/json"
	"strconv"

	reportv1 "github.com/felis2803/TradeForge-sub000/internal/domain/report/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka report sink.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_REPORT_TOPIC" envDefault:"execution-reports"`
}

// KafkaSink publishes execution reports to a Kafka topic, keyed by order id
// so one order's reports land in one partition, in order.
type KafkaSink struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewKafkaSink creates a Kafka-backed report sink.
func NewKafkaSink(config KafkaConfig, log *logger.Logger) *KafkaSink {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: config.Brokers,
		Topic:   config.Topic,
	})
	return &KafkaSink{writer: writer, logger: log}
}

// Publish sends one report.
func (s *KafkaSink) Publish(ctx context.Context, report reportv1.ExecutionReport) error {
	value, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, errors.ReportSinkError, "encode %s report", report.Kind)
	}

	msg := kafka.Message{Value: value}
	if report.OrderID != 0 {
		msg.Key = []byte(strconv.FormatInt(int64(report.OrderID), 10))
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Error(err,
			logger.Field{Key: "kind", Value: string(report.Kind)},
			logger.Field{Key: "orderId", Value: report.OrderID},
		)
		return errors.Wrap(err, errors.ReportSinkError, "publish %s report", report.Kind)
	}
	return nil
}

// Close shuts the writer down, flushing pending messages.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
