package ingress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"
	"github.com/DurkaVerder/ProjectFlow/internal/logger"
	"github.com/DurkaVerder/ProjectFlow/internal/retry"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	closed    bool
	// drained is called once the queue is empty.
	drained func()
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	if f.drained != nil {
		f.drained()
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type fakeDLQ struct {
	topics []string
	values [][]byte
}

func (d *fakeDLQ) SendMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	d.topics = append(d.topics, topic)
	d.values = append(d.values, value)
	return nil
}

func testConfig() Config {
	return Config{
		Group:           "test-group",
		Topics:          map[string]event.Topic{"task-events": event.TopicTask, "project-events": event.TopicProject},
		Connect:         retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
		Handle:          retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
		HandleTimeout:   time.Second,
		DeadLetterTopic: "events-dlq",
	}
}

func message(topic, value string, offset int64) kafka.Message {
	return kafka.Message{Topic: topic, Value: []byte(value), Offset: offset}
}

func runWith(t *testing.T, reader *fakeReader, h Handler, dlq *fakeDLQ) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.drained = cancel

	r := NewRunner(testConfig(), func(ctx context.Context) (Reader, error) { return reader, nil }, h, dlq, logger.Discard())
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reader.closed {
		t.Fatalf("reader must be closed on shutdown")
	}
}

func TestRunHandlesInOrderAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		message("task-events", `{"event_type":"task_created","task_title":"a"}`, 1),
		message("project-events", `{"event_type":"project_created","project_name":"b"}`, 2),
	}}

	var seen []string
	h := HandlerFunc(func(ctx context.Context, env event.Envelope) error {
		seen = append(seen, string(env.Topic)+"/"+env.EventType)
		return nil
	})

	runWith(t, reader, h, &fakeDLQ{})

	if len(seen) != 2 || seen[0] != "task-events/task_created" || seen[1] != "project-events/project_created" {
		t.Fatalf("unexpected handling order: %v", seen)
	}
	if len(reader.committed) != 2 || reader.committed[0].Offset != 1 || reader.committed[1].Offset != 2 {
		t.Fatalf("unexpected commits: %v", reader.committed)
	}
}

func TestRunSkipsUndecodableEnvelope(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		message("task-events", `not json`, 1),
		message("task-events", `{"no_type":true}`, 2),
	}}
	dlq := &fakeDLQ{}

	var calls int
	h := HandlerFunc(func(ctx context.Context, env event.Envelope) error {
		calls++
		return nil
	})

	runWith(t, reader, h, dlq)

	if calls != 0 {
		t.Fatalf("handler must not see malformed envelopes, got %d calls", calls)
	}
	if len(reader.committed) != 2 {
		t.Fatalf("malformed envelopes must still be committed, got %d", len(reader.committed))
	}
	if len(dlq.topics) != 2 || dlq.topics[0] != "events-dlq" {
		t.Fatalf("expected both envelopes dead-lettered, got %v", dlq.topics)
	}
}

func TestRunDoesNotRetryMalformedFromHandler(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message("task-events", `{"event_type":"task_updated"}`, 7)}}

	var calls int
	h := HandlerFunc(func(ctx context.Context, env event.Envelope) error {
		calls++
		return event.ErrMalformed
	})

	runWith(t, reader, h, &fakeDLQ{})

	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if len(reader.committed) != 1 {
		t.Fatalf("expected commit after malformed envelope")
	}
}

func TestRunRetriesFailingHandlerThenCommits(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message("task-events", `{"event_type":"task_updated"}`, 3)}}
	dlq := &fakeDLQ{}

	var calls int
	h := HandlerFunc(func(ctx context.Context, env event.Envelope) error {
		calls++
		return errors.New("db down")
	})

	runWith(t, reader, h, dlq)

	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(reader.committed) != 1 {
		t.Fatalf("expected the envelope to be committed after retries")
	}
	if len(dlq.values) != 1 {
		t.Fatalf("expected the envelope to be dead-lettered")
	}
}

func TestRunLeavesEnvelopeUncommittedOnCrash(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message("task-events", `{"event_type":"task_updated"}`, 9)}}
	h := HandlerFunc(func(ctx context.Context, env event.Envelope) error {
		panic("boom")
	})

	r := NewRunner(testConfig(), func(ctx context.Context) (Reader, error) { return reader, nil }, h, nil, logger.Discard())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = r.Run(context.Background())
	}()

	if len(reader.committed) != 0 {
		t.Fatalf("crashed envelope must not be committed")
	}
}

func TestRunFinishesInFlightEnvelopeOnShutdown(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message("task-events", `{"event_type":"task_updated"}`, 4)}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handlerErr error
	h := HandlerFunc(func(hctx context.Context, env event.Envelope) error {
		cancel()
		time.Sleep(10 * time.Millisecond)
		handlerErr = hctx.Err()
		return nil
	})

	r := NewRunner(testConfig(), func(ctx context.Context) (Reader, error) { return reader, nil }, h, nil, logger.Discard())
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if handlerErr != nil {
		t.Fatalf("handler context must survive shutdown, got %v", handlerErr)
	}
	if len(reader.committed) != 1 {
		t.Fatalf("in-flight envelope must be committed")
	}
}

func TestRunFailsWhenBrokerNeverComesUp(t *testing.T) {
	var attempts int
	open := func(ctx context.Context) (Reader, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	r := NewRunner(testConfig(), open, HandlerFunc(func(ctx context.Context, env event.Envelope) error { return nil }), nil, logger.Discard())
	err := r.Run(context.Background())
	if !errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("expected ErrBrokerUnavailable, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 connect attempts, got %d", attempts)
	}
}
