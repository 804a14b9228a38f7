// Command emit publishes one upstream-style event to the project or task
// topic. It is meant for local testing of the consumer groups.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/config"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/kafka"
	"github.com/DurkaVerder/ProjectFlow/internal/logger"
)

type fieldsFlag map[string]any

func (f fieldsFlag) String() string { return fmt.Sprint(map[string]any(f)) }

func (f fieldsFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	f[k] = val
	return nil
}

func main() {
	fields := fieldsFlag{}
	topic := flag.String("topic", "task", "logical topic: project or task")
	eventType := flag.String("type", event.TypeTaskUpdated, "event_type of the message")
	key := flag.String("key", "", "message key")
	flag.Var(fields, "field", "payload field as key=value, repeatable")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log, "emit")

	var brokerTopic string
	switch *topic {
	case "project":
		brokerTopic = cfg.Kafka.ProjectTopic
	case "task":
		brokerTopic = cfg.Kafka.TaskTopic
	default:
		log.WithField("topic", *topic).Fatal("unknown topic, want project or task")
	}

	value, err := json.Marshal(event.Envelope{EventType: *eventType, Payload: event.Payload(fields)}.Fields())
	if err != nil {
		log.WithError(err).Fatal("marshal event")
	}

	producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := producer.SendMessage(ctx, brokerTopic, []byte(*key), value, nil); err != nil {
		log.WithError(err).Fatal("send event")
	}
	log.WithField("topic", brokerTopic).WithField("event_type", *eventType).Info("event sent")
}
