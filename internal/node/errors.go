package node

import (
	"errors"
	"fmt"
)

// Ошибки конфигурации узлов.
var (
	// ErrIllegalTransition — недопустимый переход состояния (например, повторный Process).
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrInvalidContinuation — onSuccess/onFail не является пригодным узлом.
	ErrInvalidContinuation = errors.New("continuation is not a valid node")

	// ErrAlreadyAttached — узел уже принадлежит другому родителю.
	ErrAlreadyAttached = errors.New("node already has a parent")

	// ErrInvalidConcurrency — maxConcurrency должен быть целым числом >= 1.
	ErrInvalidConcurrency = errors.New("max concurrency must be a positive integer")

	// ErrNoFunction — у job не задана функция.
	ErrNoFunction = errors.New("job has no function")

	// ErrNoFactory — у placeholder не задана фабрика.
	ErrNoFactory = errors.New("placeholder has no factory")

	// ErrNoIterable — у loop не задан источник элементов.
	ErrNoIterable = errors.New("loop has no iterable")

	// ErrPanic — функция узла запаниковала.
	ErrPanic = errors.New("node function panicked")
)

// ExecutionError — ошибка выполнения пользовательской функции узла.
//
// Возникает, когда функция job вернула ошибку или запаниковала.
// Обрабатывается onFail, если он задан, иначе пробрасывается вызывающему.
type ExecutionError struct {
	Node string // имя узла, где произошла ошибка
	Err  error  // исходная ошибка
}

// Error реализует интерфейс error.
func (e *ExecutionError) Error() string {
	if e.Node == "" {
		return "execution failed: " + e.Err.Error()
	}
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ConfigurationError — недопустимое значение в поле узла.
type ConfigurationError struct {
	Node    string // имя узла
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigurationError) Error() string {
	if e.Node != "" {
		return "node " + e.Node + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func illegalTransition(node string, from, to State) *ConfigurationError {
	return NewConfigurationError(node, "state",
		fmt.Sprintf("illegal transition %s -> %s", from, to), ErrIllegalTransition)
}

// NewConfigurationError создаёт новую ошибку конфигурации.
func NewConfigurationError(node, field, message string, err error) *ConfigurationError {
	return &ConfigurationError{
		Node:    node,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
