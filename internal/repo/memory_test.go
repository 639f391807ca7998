package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Treeflow/internal/domain"
)

func newRun(plan string, created time.Time) *domain.Run {
	run := domain.NewRun(plan, domain.TriggerManual, nil)
	run.CreatedAt = created
	return run
}

func TestMemoryRunStore_CreateUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRunStore()
	run := newRun("hello", time.Now())

	if err := s.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, run); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	run.MarkRunning()
	run.MarkSucceeded("hi")
	if err := s.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.RunStatusSucceeded || got.Result != "hi" {
		t.Errorf("unexpected stored run: %+v", got)
	}

	// Хранилище держит копию
	run.Status = domain.RunStatusFailed
	if got, _ := s.GetByID(ctx, run.ID); got.Status != domain.RunStatusSucceeded {
		t.Error("store must not alias caller's run")
	}

	if err := s.Update(ctx, newRun("x", time.Now())); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetByID(ctx, newRun("x", time.Now()).ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRunStore_FinishedRun(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRunStore()
	run := newRun("hello", time.Now())
	if err := s.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	run.MarkRunning()
	run.MarkCancelled()
	if err := s.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Тот же статус с уточнённой ошибкой допустим
	run.Error = "timed out"
	if err := s.Update(ctx, run); err != nil {
		t.Errorf("same-status update: %v", err)
	}

	run.Status = domain.RunStatusRunning
	if err := s.Update(ctx, run); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	if got, _ := s.GetByID(ctx, run.ID); got.Status != domain.RunStatusCancelled || got.Error != "timed out" {
		t.Errorf("unexpected stored run: %+v", got)
	}
}

func TestMemoryRunStore_Idempotency(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRunStore()

	a := newRun("sync", time.Now())
	a.IdempotencyKey = "nightly_2026-01-01T03:00:00Z"
	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := newRun("sync", time.Now())
	b.IdempotencyKey = a.IdempotencyKey
	if err := s.Create(ctx, b); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Тот же ключ у другого плана допустим
	c := newRun("other", time.Now())
	c.IdempotencyKey = a.IdempotencyKey
	if err := s.Create(ctx, c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMemoryRunStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRunStore()
	base := time.Now()

	for i, plan := range []string{"a", "b", "a", "a"} {
		run := newRun(plan, base.Add(time.Duration(i)*time.Second))
		if i == 3 {
			run.MarkFailed("boom")
		}
		if err := s.Create(ctx, run); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter RunFilter
		want   int
	}{
		{"all", RunFilter{}, 4},
		{"by plan", RunFilter{Plan: "a"}, 3},
		{"by status", RunFilter{Status: domain.RunStatusFailed}, 1},
		{"limit", RunFilter{Limit: 2}, 2},
		{"offset", RunFilter{Offset: 3}, 1},
		{"offset past end", RunFilter{Offset: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(runs) != tt.want {
				t.Errorf("expected %d runs, got %d", tt.want, len(runs))
			}
		})
	}

	runs, _ := s.List(ctx, RunFilter{})
	for i := 1; i < len(runs); i++ {
		if runs[i].CreatedAt.After(runs[i-1].CreatedAt) {
			t.Fatal("runs must be ordered newest first")
		}
	}
}

func TestRunFilter_Limit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 50},
		{-1, 50},
		{10, 10},
		{1000, 500},
	}
	for _, tt := range tests {
		if got := (RunFilter{Limit: tt.in}).limit(); got != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDSN(t *testing.T) {
	t.Setenv("DB_URL", "")
	if DSN() != defaultDSN || Configured() {
		t.Error("expected default DSN without DB_URL")
	}

	t.Setenv("DB_URL", "postgresql://u@db/x")
	if DSN() != "postgresql://u@db/x" || !Configured() {
		t.Error("expected DSN from DB_URL")
	}
}
