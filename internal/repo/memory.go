package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Treeflow/internal/domain"
)

// MemoryRunStore — история runs в памяти процесса.
// Используется CLI и API без DB_URL.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]domain.Run
}

// NewMemoryRunStore создаёт пустое хранилище.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[uuid.UUID]domain.Run)}
}

// Create сохраняет копию run.
func (s *MemoryRunStore) Create(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s: %w", run.ID, ErrAlreadyExists)
	}
	if run.IdempotencyKey != "" {
		for _, existing := range s.runs {
			if existing.Plan == run.Plan && existing.IdempotencyKey == run.IdempotencyKey {
				return fmt.Errorf("run %s: %w", run.IdempotencyKey, ErrAlreadyExists)
			}
		}
	}

	s.runs[run.ID] = *run
	return nil
}

// Update заменяет сохранённую копию run.
// Смена статуса завершённого run — ErrInvalidState.
func (s *MemoryRunStore) Update(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	if !canUpdate(stored.Status, run.Status) {
		return fmt.Errorf("run %s is %s: %w", run.ID, stored.Status, ErrInvalidState)
	}
	s.runs[run.ID] = *run
	return nil
}

// GetByID возвращает копию run.
func (s *MemoryRunStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

// List возвращает runs, новые первыми.
func (s *MemoryRunStore) List(_ context.Context, filter RunFilter) ([]domain.Run, error) {
	s.mu.RLock()
	var runs []domain.Run
	for _, run := range s.runs {
		if filter.Plan != "" && run.Plan != filter.Plan {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if filter.Offset >= len(runs) {
		return nil, nil
	}
	runs = runs[filter.Offset:]
	if n := filter.limit(); len(runs) > n {
		runs = runs[:n]
	}
	return runs, nil
}
