package eventbus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pipetrak/pipetrak/pkg/logging"
)

type sampleEvent struct {
	data interface{}
}

func TestPublisher_Publish_NoSubscribers(t *testing.T) {
	type otherEvent struct {
		data interface{}
	}
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *sampleEvent) {
		t.Error("should not be called")
	})
	publisher.Publish(&otherEvent{data: "test"})

	if output := logBuffer.String(); output == "" {
		t.Error("should have logged")
	} else if !strings.Contains(output, "eventbus.Publish: no matching subscribers") {
		t.Errorf("should have contained no matching subscribers but got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	called := false
	var data interface{}
	publisher.Subscribe(func(e *sampleEvent) {
		called = true
		data = e.data
	})
	publisher.Publish(&sampleEvent{data: "test"})
	if !called {
		t.Error("should be called")
	}
	if data != "test" {
		t.Errorf("expected: %v, got: %v", "test", data)
	}
}

func TestPublisher_PanickingHandlerIsIsolated(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	publisher := NewEventPublisher(log)

	publisher.Subscribe(func(e *sampleEvent) { panic("boom") })
	reached := false
	publisher.Subscribe(func(e *sampleEvent) { reached = true })

	publisher.Publish(&sampleEvent{data: "test"})

	if !reached {
		t.Error("second subscriber should still run after the first panics")
	}
	if !strings.Contains(logBuffer.String(), "panicked") {
		t.Errorf("panic should be logged, got: %q", logBuffer.String())
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	handler := func(e *sampleEvent) {}
	publisher.Subscribe(handler)
	if publisher.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
}

func TestPublisher_UnsubscribeKeepsOthers(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	first := func(e *sampleEvent) { t.Error("first handler should be gone") }
	called := false
	second := func(e *sampleEvent) { called = true }
	publisher.Subscribe(first)
	publisher.Subscribe(second)

	publisher.Unsubscribe(first)
	if publisher.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Publish(&sampleEvent{data: "test"})
	if !called {
		t.Error("remaining subscriber should still receive events")
	}
}
