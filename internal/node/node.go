package node

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Node — единица работы в дереве выполнения.
type Node interface {
	// Process выполняет узел по контракту Base.process.
	Process(ctx context.Context, args ...any) (any, error)

	// Common возвращает общую часть узла.
	Common() *Base

	// Children возвращает дочерние узлы (без onSuccess/onFail).
	Children() []Node
}

// Переменные scope продолжений.
const (
	ResultVar = "result"
	ErrorVar  = "error"
)

// Func — пользовательская функция job.
type Func func(ctx context.Context, args ...any) (any, error)

// ResultHook вызывается после успешного выполнения с собственным результатом узла.
// Ошибка хука переводит узел в failed.
type ResultHook func(ctx context.Context, n Node, result any) error

// Predicate — условие пропуска узла, вычисляется против scope узла.
type Predicate func(scope *Scope) bool

// SkipWhen строит Predicate из значения дескриптора.
//
// bool используется как есть, строка разрешается токенами и проверяется
// через Truthy, функции func() bool и Predicate вызываются.
func SkipWhen(v any) Predicate {
	switch t := v.(type) {
	case nil:
		return nil
	case Predicate:
		return t
	case func(*Scope) bool:
		return t
	case func() bool:
		return func(*Scope) bool { return t() }
	case bool:
		return func(*Scope) bool { return t }
	case string:
		return func(s *Scope) bool { return Truthy(Resolve(t, s)) }
	default:
		return func(*Scope) bool { return Truthy(t) }
	}
}

// Base — общая часть всех узлов: состояние, scope, продолжения, наблюдатели.
//
// Встраивается в Job, Queue, Loop, Placeholder. Конкретный тип передаёт себя
// в process, чтобы события и продолжения получали полный узел.
type Base struct {
	// NameTemplate — имя узла, может содержать токены.
	NameTemplate string

	// ArgsTemplate — аргументы узла, элементы могут содержать токены.
	ArgsTemplate []any

	// OnSuccess вызывается как OnSuccess.Process(result, node) после успеха.
	// Перед вызовом result доступен в его scope как •result.
	OnSuccess Node

	// OnFail вызывается как OnFail.Process(err, node) после ошибки.
	// Перед вызовом err доступна в его scope как •error.
	OnFail Node

	// Skip — условие пропуска.
	Skip Predicate

	mu        sync.Mutex
	kind      string
	self      Node
	state     State
	scope     *Scope
	parent    Node
	result    any
	observers Observers
	hooks     []ResultHook
}

func (b *Base) init(self Node, kind, name string, args []any) {
	b.self = self
	b.kind = kind
	b.NameTemplate = name
	b.ArgsTemplate = args
}

// Common возвращает саму Base.
func (b *Base) Common() *Base {
	return b
}

// Kind возвращает вид узла: job, queue, loop, placeholder.
func (b *Base) Kind() string {
	return b.kind
}

// Name возвращает имя с разрешёнными токенами.
func (b *Base) Name() string {
	if b.NameTemplate == "" {
		return b.kind
	}
	return ResolveString(b.NameTemplate, b.Scope())
}

// Args возвращает аргументы с разрешёнными токенами.
func (b *Base) Args() []any {
	return ResolveAll(b.ArgsTemplate, b.Scope())
}

// Scope возвращает scope узла, создавая его при первом обращении.
func (b *Base) Scope() *Scope {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scope == nil {
		b.scope = NewScope(nil)
	}
	return b.scope
}

// State возвращает текущее состояние.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == "" {
		return StatePending
	}
	return b.state
}

// Result возвращает последний результат узла.
func (b *Base) Result() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// SetResult задаёт результат; job передаёт его в ArgsFn как предыдущий.
func (b *Base) SetResult(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = v
}

// Parent возвращает родителя или nil.
func (b *Base) Parent() Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// Observe подписывает наблюдателя на события узла и потомков.
func (b *Base) Observe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// OnResult добавляет хук, вызываемый с собственным результатом после успеха.
func (b *Base) OnResult(h ResultHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

// emit отправляет событие наблюдателям узла и всех предков.
func (b *Base) emit(e Event) {
	if e.Node == nil {
		e.Node = b.self
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	for cur := b; cur != nil; {
		cur.mu.Lock()
		obs := cur.observers
		parent := cur.parent
		cur.mu.Unlock()

		obs.OnEvent(e)

		if parent == nil {
			break
		}
		cur = parent.Common()
	}
}

// transition переводит узел в состояние to и уведомляет наблюдателей.
// cause передаётся в событии при переходе в failed.
func (b *Base) transition(to State, cause error) error {
	b.mu.Lock()
	from := b.state
	if from == "" {
		from = StatePending
	}
	if !CanTransition(from, to) {
		b.mu.Unlock()
		return illegalTransition(b.Name(), from, to)
	}
	b.state = to
	b.mu.Unlock()

	b.emit(Event{Type: EventState, State: to, Prev: from, Err: cause})
	return nil
}

// process — общий контракт выполнения узла.
//
//  1. Skip истинно → узел и все потомки переходят в skipped, работа не выполняется.
//  2. Иначе in-progress и exec.
//  3. Успех → хуки результата, successful, затем OnSuccess(result, node);
//     результат продолжения заменяет собственный.
//  4. Ошибка → failed; OnFail(err, node) обрабатывает её и его результат
//     возвращается, без OnFail ошибка пробрасывается.
func (b *Base) process(ctx context.Context, self Node, exec func(context.Context, []any) (any, error), args []any) (any, error) {
	b.mu.Lock()
	b.self = self
	b.mu.Unlock()

	if err := b.bindContinuations(); err != nil {
		return nil, err
	}

	if b.Skip != nil && b.Skip(b.Scope()) {
		if st := b.State(); st != StatePending {
			return nil, illegalTransition(b.Name(), st, StateSkipped)
		}
		skipTree(self)
		return nil, nil
	}

	if err := b.transition(StateInProgress, nil); err != nil {
		return nil, err
	}

	result, err := b.run(ctx, exec, args)
	if err == nil {
		err = b.runHooks(ctx, result)
	}

	if err != nil {
		_ = b.transition(StateFailed, err)
		if b.OnFail == nil {
			return nil, err
		}
		b.OnFail.Common().Scope().Set(ErrorVar, err)
		handled, ferr := b.OnFail.Process(ctx, err, self)
		b.SetResult(handled)
		return handled, ferr
	}

	_ = b.transition(StateSuccessful, nil)
	b.SetResult(result)

	if b.OnSuccess == nil {
		return result, nil
	}
	b.OnSuccess.Common().Scope().Set(ResultVar, result)
	next, serr := b.OnSuccess.Process(ctx, result, self)
	if serr != nil {
		return nil, serr
	}
	b.SetResult(next)
	return next, nil
}

// run выполняет exec, превращая панику в ExecutionError.
func (b *Base) run(ctx context.Context, exec func(context.Context, []any) (any, error), args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{Node: b.Name(), Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	return exec(ctx, args)
}

func (b *Base) runHooks(ctx context.Context, result any) error {
	b.mu.Lock()
	hooks := b.hooks
	self := b.self
	b.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx, self, result); err != nil {
			return &ExecutionError{Node: b.Name(), Err: err}
		}
	}
	return nil
}

// bindContinuations проверяет OnSuccess/OnFail и прикрепляет их к узлу.
func (b *Base) bindContinuations() error {
	for _, c := range []struct {
		field string
		node  Node
	}{
		{"onSuccess", b.OnSuccess},
		{"onFail", b.OnFail},
	} {
		if c.node == nil {
			continue
		}
		if isNilNode(c.node) {
			return NewConfigurationError(b.Name(), c.field,
				c.field+" is a nil node", ErrInvalidContinuation)
		}
		if err := attach(b.self, c.node); err != nil {
			return NewConfigurationError(b.Name(), c.field,
				c.field+": "+err.Error(), ErrInvalidContinuation)
		}
	}
	return nil
}

// attach делает parent владельцем child и связывает их scope.
// Повторное прикрепление к тому же родителю допустимо.
func attach(parent, child Node) error {
	if isNilNode(child) {
		return fmt.Errorf("nil node: %w", ErrInvalidContinuation)
	}

	c := child.Common()
	p := parent.Common()

	for cur := parent; cur != nil; cur = cur.Common().Parent() {
		if cur.Common() == c {
			return fmt.Errorf("node %s is an ancestor: %w", c.Name(), ErrAlreadyAttached)
		}
	}

	c.mu.Lock()
	if c.parent != nil && c.parent.Common() != p {
		c.mu.Unlock()
		return fmt.Errorf("node %s: %w", c.Name(), ErrAlreadyAttached)
	}
	c.parent = parent
	c.mu.Unlock()

	c.Scope().setParent(p.Scope())
	return nil
}

// skipTree переводит узел и всех ожидающих потомков в skipped (в глубину).
func skipTree(n Node) {
	b := n.Common()
	if b.State() == StatePending {
		_ = b.transition(StateSkipped, nil)
	}

	for _, child := range n.Children() {
		skipTree(child)
	}
	for _, c := range []Node{b.OnSuccess, b.OnFail} {
		if c != nil && !isNilNode(c) {
			skipTree(c)
		}
	}
}

// Walk обходит дерево в глубину, включая продолжения.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || isNilNode(n) || !fn(n) {
		return
	}
	for _, child := range n.Children() {
		Walk(child, fn)
	}
	b := n.Common()
	Walk(b.OnSuccess, fn)
	Walk(b.OnFail, fn)
}

func isNilNode(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
