package worker

import "errors"

// Ошибки воркера.
var (
	// ErrInvalidRequest — в запросе нет run_id или plan.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrDuplicateRun — run с таким ID или ключом идемпотентности уже выполнялся.
	ErrDuplicateRun = errors.New("run already processed")

	// ErrExecutionTimeout — выполнение run превысило RunTimeout.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
