package planner

import "errors"

// Ошибки компиляции плана.
var (
	// ErrEmptyPlan — план не задан.
	ErrEmptyPlan = errors.New("plan is empty")

	// ErrUnknownType — неизвестный тип дескриптора.
	ErrUnknownType = errors.New("unknown descriptor type")

	// ErrMissingFunction — не задан ни fn, ни invoke.
	ErrMissingFunction = errors.New("descriptor has neither fn nor invoke")

	// ErrConflictingFunction — заданы одновременно fn и invoke.
	ErrConflictingFunction = errors.New("fn and invoke are mutually exclusive")

	// ErrMissingTemplate — template без template или repeatForEach.
	ErrMissingTemplate = errors.New("template descriptor needs template and repeatForEach")

	// ErrMissingIterable — loop без for или forEach.
	ErrMissingIterable = errors.New("loop descriptor needs for or forEach")

	// ErrInvalidIterable — источник итерации не является списком.
	ErrInvalidIterable = errors.New("iterable is not a list")

	// ErrMissingContext — result или for.of без контекста run.
	ErrMissingContext = errors.New("descriptor needs a run context")

	// ErrInvalidFactoryResult — фабрика вернула не узел и не дескриптор.
	ErrInvalidFactoryResult = errors.New("factory must return a node or a descriptor")
)

// Ошибки реестра сервисов.
var (
	// ErrUnknownService — сервис не зарегистрирован.
	ErrUnknownService = errors.New("unknown service")

	// ErrUnknownMethod — у сервиса нет такого метода.
	ErrUnknownMethod = errors.New("unknown service method")

	// ErrInvalidService — значение не содержит пригодных методов.
	ErrInvalidService = errors.New("service has no invokable methods")
)

// CompileError — ошибка компиляции с путём до дескриптора.
//
// Path имеет вид "plan.queue[2].onFail".
type CompileError struct {
	Path    string // путь до дескриптора
	Type    string // тип дескриптора
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *CompileError) Error() string {
	if e.Path != "" {
		return e.Path + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// NewCompileError создаёт новую ошибку компиляции.
func NewCompileError(path string, typ Type, field, message string, err error) *CompileError {
	return &CompileError{
		Path:    path,
		Type:    string(typ),
		Field:   field,
		Message: message,
		Err:     err,
	}
}
