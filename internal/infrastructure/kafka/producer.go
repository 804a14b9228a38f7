package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var messagesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_producer_messages_total",
	Help: "Messages written by the producer, by topic and result",
}, []string{"topic", "result"})

type Config struct {
	Brokers []string
}

// Producer publishes dead-lettered envelopes and test events. The topic is
// chosen per message, so one producer serves every topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            5,
			BatchTimeout:           10 * time.Millisecond,
			ReadTimeout:            10 * time.Second,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

// SendMessage writes one message synchronously.
func (p *Producer) SendMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	msg := kafka.Message{Topic: topic, Key: key, Value: value}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		messagesWritten.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("write message to %s: %w", topic, err)
	}
	messagesWritten.WithLabelValues(topic, "ok").Inc()
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
