package node

import (
	"context"
	"fmt"
)

// DefaultLoopVar — имя переменной элемента в scope дочернего узла.
const DefaultLoopVar = "item"

// NodeFactory строит дочерний узел для элемента итерации.
type NodeFactory func(item any, index int) (Node, error)

// Loop — queue, дочерние узлы которой создаются во время Process:
// по одному на каждый элемент ForEach, в порядке итерации.
//
// В scope каждого дочернего узла записываются Var (элемент) и "index".
type Loop struct {
	Queue

	// ForEach возвращает элементы итерации.
	ForEach func(ctx context.Context) ([]any, error)

	// Build строит дочерний узел; по умолчанию — Job из Fn.
	Build NodeFactory

	// Var — имя переменной элемента, по умолчанию "item".
	Var string

	// Fn — функция job по умолчанию.
	Fn Func

	// ArgsFn строит аргументы job по умолчанию из элемента.
	// Без него используется ArgsTemplate loop, разрешаемый в scope дочернего узла.
	ArgsFn func(item any) []any
}

// NewLoop создаёт loop.
func NewLoop(name string, forEach func(ctx context.Context) ([]any, error), fn Func, args ...any) *Loop {
	l := &Loop{ForEach: forEach, Fn: fn}
	l.MaxConcurrency = DefaultMaxConcurrency
	l.init(l, "loop", name, args)
	return l
}

// Items — ForEach для фиксированного набора элементов.
func Items(items ...any) func(context.Context) ([]any, error) {
	return func(context.Context) ([]any, error) {
		return items, nil
	}
}

// Process материализует дочерние узлы и выполняет их как queue.
func (l *Loop) Process(ctx context.Context, args ...any) (any, error) {
	return l.process(ctx, l, l.execute, args)
}

func (l *Loop) execute(ctx context.Context, args []any) (any, error) {
	if l.ForEach == nil {
		return nil, NewConfigurationError(l.Name(), "forEach", "loop has no iterable", ErrNoIterable)
	}

	items, err := l.ForEach(ctx)
	if err != nil {
		return nil, &ExecutionError{Node: l.Name(), Err: fmt.Errorf("resolve iterable: %w", err)}
	}

	varName := l.Var
	if varName == "" {
		varName = DefaultLoopVar
	}

	for i, item := range items {
		child, err := l.build(item, i)
		if err != nil {
			return nil, err
		}

		// scope связывается при Add, значения пишутся локально
		if err := l.Add(child); err != nil {
			return nil, err
		}
		scope := child.Common().Scope()
		scope.Set(varName, item)
		scope.Set("index", i)
	}

	return l.Queue.execute(ctx, args)
}

func (l *Loop) build(item any, index int) (Node, error) {
	if l.Build != nil {
		n, err := l.Build(item, index)
		if err != nil {
			return nil, &ExecutionError{Node: l.Name(), Err: fmt.Errorf("build item %d: %w", index, err)}
		}
		if isNilNode(n) {
			return nil, NewConfigurationError(l.Name(), "node",
				fmt.Sprintf("factory returned nil node for item %d", index), ErrInvalidContinuation)
		}
		return n, nil
	}

	if l.Fn == nil {
		return nil, NewConfigurationError(l.Name(), "fn", "loop has no function or node factory", ErrNoFunction)
	}

	job := NewJob(fmt.Sprintf("%s[%d]", l.Name(), index), l.Fn)
	if l.ArgsFn != nil {
		job.ArgsTemplate = l.ArgsFn(item)
	} else {
		job.ArgsTemplate = l.ArgsTemplate
	}
	return job, nil
}
