package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/mq"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func TestCalculateNextDue(t *testing.T) {
	from := mustTime(t, "2026-03-10T10:30:00Z")

	tests := []struct {
		name  string
		sched domain.Schedule
		want  string
	}{
		{"cron utc", domain.Schedule{CronExpr: "0 9 * * *"}, "2026-03-11T09:00:00Z"},
		{"cron every 5 min", domain.Schedule{CronExpr: "*/5 * * * *"}, "2026-03-10T10:35:00Z"},
		{"cron descriptor", domain.Schedule{CronExpr: "@hourly"}, "2026-03-10T11:00:00Z"},
		{"cron timezone", domain.Schedule{CronExpr: "0 14 * * *", Timezone: "Europe/Moscow"}, "2026-03-10T11:00:00Z"},
		{"interval", domain.Schedule{IntervalSec: 90}, "2026-03-10T10:31:30Z"},
		{"cron wins over interval", domain.Schedule{CronExpr: "0 * * * *", IntervalSec: 10}, "2026-03-10T11:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateNextDue(&tt.sched, from)
			if err != nil {
				t.Fatalf("CalculateNextDue() error: %v", err)
			}
			if want := mustTime(t, tt.want); !got.Equal(want) {
				t.Errorf("CalculateNextDue() = %s, want %s", got, want)
			}
		})
	}
}

func TestCalculateNextDue_Errors(t *testing.T) {
	from := time.Now()

	if _, err := CalculateNextDue(&domain.Schedule{Name: "x"}, from); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("empty schedule: error = %v, want ErrInvalidSchedule", err)
	}
	if _, err := CalculateNextDue(&domain.Schedule{CronExpr: "* *"}, from); err == nil {
		t.Error("bad cron: expected error")
	}
	if _, err := CalculateNextDue(&domain.Schedule{IntervalSec: 5, Timezone: "Mars/Olympus"}, from); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("bad timezone: error = %v, want ErrInvalidSchedule", err)
	}
}

func TestNextDueTimes(t *testing.T) {
	from := mustTime(t, "2026-03-10T10:00:00Z")
	got, err := NextDueTimes(&domain.Schedule{CronExpr: "0 */6 * * *"}, from, 3)
	if err != nil {
		t.Fatalf("NextDueTimes() error: %v", err)
	}
	want := []time.Time{
		mustTime(t, "2026-03-10T12:00:00Z"),
		mustTime(t, "2026-03-10T18:00:00Z"),
		mustTime(t, "2026-03-11T00:00:00Z"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextDueTimes() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSchedules(t *testing.T) {
	data := []byte(`
- name: nightly
  plan: sync-users
  cron: "0 3 * * *"
  timezone: Europe/Moscow
  inputs:
    batch: 100
- name: heartbeat
  plan: ping
  interval: 30
  enabled: false
`)

	got, err := ParseSchedules(data)
	if err != nil {
		t.Fatalf("ParseSchedules() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].CronExpr != "0 3 * * *" || got[0].Inputs["batch"] != 100 || !got[0].IsEnabled() {
		t.Errorf("nightly = %+v", got[0])
	}
	if got[1].IntervalSec != 30 || got[1].IsEnabled() {
		t.Errorf("heartbeat = %+v", got[1])
	}
}

func TestParseSchedules_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"no name", "- plan: p\n  interval: 5\n", ErrInvalidSchedule},
		{"no plan", "- name: a\n  interval: 5\n", ErrInvalidSchedule},
		{"no timing", "- name: a\n  plan: p\n", ErrInvalidSchedule},
		{"bad cron", "- name: a\n  plan: p\n  cron: \"61 * * * *\"\n", ErrInvalidSchedule},
		{"bad timezone", "- name: a\n  plan: p\n  interval: 5\n  timezone: Nowhere/City\n", ErrInvalidSchedule},
		{"duplicate", "- name: a\n  plan: p\n  interval: 5\n- name: a\n  plan: q\n  interval: 5\n", ErrDuplicateSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedules([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got, err := ParseSchedules([]byte("  \n")); err != nil || got != nil {
		t.Errorf("empty file = %v, %v; want nil, nil", got, err)
	}
}

type fakeRequester struct {
	mu       sync.Mutex
	requests []mq.RunRequestedPayload
	err      error
}

func (r *fakeRequester) PublishRunRequested(_ context.Context, p mq.RunRequestedPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.requests = append(r.requests, p)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestScheduler(t *testing.T, req RunRequester, c *clock, schedules ...domain.Schedule) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Schedules: schedules,
		Requester: req,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       c.now,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestScheduler_Tick(t *testing.T) {
	c := &clock{t: mustTime(t, "2026-03-10T10:00:00Z")}
	req := &fakeRequester{}
	disabled := false

	s := newTestScheduler(t, req, c,
		domain.Schedule{Name: "every-minute", Plan: "ping", IntervalSec: 60, Inputs: map[string]any{"n": 1}},
		domain.Schedule{Name: "hourly", Plan: "report", CronExpr: "0 * * * *"},
		domain.Schedule{Name: "off", Plan: "noop", IntervalSec: 1, Enabled: &disabled},
	)

	// Ещё рано
	if fired, err := s.Tick(context.Background()); err != nil || fired != 0 {
		t.Fatalf("Tick() = %d, %v; want 0, nil", fired, err)
	}

	c.t = mustTime(t, "2026-03-10T10:01:00Z")
	if fired, err := s.Tick(context.Background()); err != nil || fired != 1 {
		t.Fatalf("Tick() = %d, %v; want 1, nil", fired, err)
	}

	got := req.requests[0]
	if got.Plan != "ping" || got.Trigger != domain.TriggerSchedule || got.Inputs["n"] != 1 {
		t.Errorf("request = %+v", got)
	}
	if got.IdempotencyKey != "every-minute_2026-03-10T10:01:00Z" {
		t.Errorf("idempotency key = %q", got.IdempotencyKey)
	}

	sched := s.Schedules()[0]
	if sched.LastRunID == nil || *sched.LastRunID != got.RunID {
		t.Errorf("LastRunID = %v, want %s", sched.LastRunID, got.RunID)
	}
	if want := mustTime(t, "2026-03-10T10:02:00Z"); !sched.NextDueAt.Equal(want) {
		t.Errorf("NextDueAt = %s, want %s", sched.NextDueAt, want)
	}

	c.t = mustTime(t, "2026-03-10T11:00:00Z")
	if fired, _ := s.Tick(context.Background()); fired != 2 {
		t.Errorf("Tick() fired = %d, want 2", fired)
	}
	for _, r := range req.requests {
		if r.Plan == "noop" {
			t.Error("disabled schedule fired")
		}
	}
}

func TestScheduler_TickPublishError(t *testing.T) {
	c := &clock{t: mustTime(t, "2026-03-10T10:00:00Z")}
	req := &fakeRequester{err: errors.New("broker down")}
	s := newTestScheduler(t, req, c, domain.Schedule{Name: "a", Plan: "p", IntervalSec: 10})

	c.t = c.t.Add(10 * time.Second)
	fired, err := s.Tick(context.Background())
	if err == nil || fired != 0 {
		t.Fatalf("Tick() = %d, %v; want 0 and error", fired, err)
	}
	before := s.Schedules()[0].IdempotencyKey()

	// Повтор после восстановления брокера использует тот же слот
	req.err = nil
	if fired, err := s.Tick(context.Background()); err != nil || fired != 1 {
		t.Fatalf("Tick() = %d, %v; want 1, nil", fired, err)
	}
	if req.requests[0].IdempotencyKey != before {
		t.Errorf("idempotency key = %q, want %q", req.requests[0].IdempotencyKey, before)
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{Schedules: []domain.Schedule{{Name: "x", Plan: "p"}}})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("error = %v, want ErrInvalidSchedule", err)
	}
}

// jumpClock возвращает время старта при первом вызове, затем на час позже.
func jumpClock() func() time.Time {
	base := time.Now()
	calls := 0
	return func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(time.Hour)
	}
}

type fakeLeader struct {
	mu       sync.Mutex
	locked   bool
	unlocked bool
}

func (l *fakeLeader) TryLock(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked, nil
}

func (l *fakeLeader) Unlock(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocked = true
	return nil
}

func TestScheduler_RunFollower(t *testing.T) {
	req := &fakeRequester{}
	leader := &fakeLeader{locked: false}
	s, err := New(Config{
		Schedules: []domain.Schedule{{Name: "a", Plan: "p", IntervalSec: 1}},
		Requester: req,
		Leader:    leader,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval:  10 * time.Millisecond,
		Now:       jumpClock(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if len(req.requests) != 0 {
		t.Errorf("follower fired %d runs", len(req.requests))
	}
	if leader.unlocked {
		t.Error("follower should not unlock")
	}
}

func TestScheduler_RunLeader(t *testing.T) {
	req := &fakeRequester{}
	leader := &fakeLeader{locked: true}
	s, err := New(Config{
		Schedules: []domain.Schedule{{Name: "a", Plan: "p", IntervalSec: 1}},
		Requester: req,
		Leader:    leader,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval:  10 * time.Millisecond,
		Now:       jumpClock(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	req.mu.Lock()
	defer req.mu.Unlock()
	if len(req.requests) == 0 {
		t.Error("leader should fire due schedule")
	}
	if !leader.unlocked {
		t.Error("leader should release lock on stop")
	}
}
