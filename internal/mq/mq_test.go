package mq

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/shaiso/Treeflow/internal/domain"
)

func TestSettle(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		err         error
		redelivered bool
		ack         bool
		requeue     bool
	}{
		{"success", nil, false, true, false},
		{"success redelivered", nil, true, true, false},
		{"first failure requeues", boom, false, false, true},
		{"second failure goes to dlq", boom, true, false, false},
		{"permanent failure goes to dlq", Permanent(boom), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, requeue := settle(tt.err, tt.redelivered)
			if ack != tt.ack || requeue != tt.requeue {
				t.Errorf("settle() = (%v, %v), want (%v, %v)", ack, requeue, tt.ack, tt.requeue)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	boom := errors.New("boom")
	err := Permanent(boom)

	if !errors.Is(err, ErrPermanent) || !errors.Is(err, boom) {
		t.Errorf("expected both sentinels in chain, got %v", err)
	}
}

func TestParsePayload_RoundTrip(t *testing.T) {
	want := RunRequestedPayload{
		RunID:   uuid.New(),
		Plan:    "sync-users",
		Trigger: domain.TriggerSchedule,
		Inputs:  map[string]any{"batch": float64(100)},
	}

	body, err := json.Marshal(NewMessage(MessageTypeRunRequested, want))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != MessageTypeRunRequested || msg.ID == "" {
		t.Errorf("unexpected envelope: %+v", msg)
	}

	got, err := ParsePayload[RunRequestedPayload](&msg)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	msg := &Message{Payload: map[string]any{"run_id": 42}}

	if _, err := ParsePayload[RunRequestedPayload](msg); err == nil {
		t.Error("expected error for invalid run_id")
	}
}

func TestCompletedPayload(t *testing.T) {
	run := domain.NewRun("hello", domain.TriggerManual, nil)
	run.MarkRunning()
	start := run.StartedAt.Add(-1500 * time.Millisecond)
	run.StartedAt = &start
	run.MarkSucceeded("hi")

	p := CompletedPayload(run)
	if p.RunID != run.ID || p.Plan != "hello" || p.Status != domain.RunStatusSucceeded || p.Result != "hi" {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.DurationMs < 1500 {
		t.Errorf("expected duration >= 1500ms, got %d", p.DurationMs)
	}
}

func TestDefaultTopology(t *testing.T) {
	topo := DefaultTopology()

	declared := make(map[Queue]bool)
	for _, q := range topo.queues {
		declared[q.name] = true
	}

	for _, b := range topo.bindings {
		if !declared[b.queue] {
			t.Errorf("binding references undeclared queue %s", b.queue)
		}
	}

	for _, q := range topo.queues {
		if q.name == QueueRunsRequested && q.args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
			t.Errorf("runs.requested must dead-letter to %s", ExchangeDLQ)
		}
	}
}

func TestURL(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	if URL() != defaultURL {
		t.Errorf("expected default URL, got %s", URL())
	}

	t.Setenv("RABBITMQ_URL", "amqp://u:p@mq:5672/")
	if URL() != "amqp://u:p@mq:5672/" {
		t.Errorf("expected env URL, got %s", URL())
	}
}
