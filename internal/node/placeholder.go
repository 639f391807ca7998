package node

import (
	"context"
	"fmt"
	"sync"
)

// Factory строит узел во время Process.
type Factory func(ctx context.Context, args ...any) (Node, error)

// Placeholder откладывает построение поддерева до первого Process.
//
// Построенный узел прикрепляется к placeholder и запоминается.
// Состояние и результат внутреннего узла становятся результатом placeholder,
// а его собственные onSuccess/onFail срабатывают по исходу внутреннего узла.
type Placeholder struct {
	Base

	// Factory строит внутренний узел из аргументов Process.
	Factory Factory

	nmu   sync.Mutex
	inner Node
}

// NewPlaceholder создаёт placeholder.
func NewPlaceholder(name string, factory Factory) *Placeholder {
	p := &Placeholder{Factory: factory}
	p.init(p, "placeholder", name, nil)
	return p
}

// Process строит внутренний узел (один раз) и делегирует ему выполнение.
func (p *Placeholder) Process(ctx context.Context, args ...any) (any, error) {
	return p.process(ctx, p, p.execute, args)
}

// Node возвращает построенный узел или nil.
func (p *Placeholder) Node() Node {
	p.nmu.Lock()
	defer p.nmu.Unlock()
	return p.inner
}

// Children возвращает построенный узел, если он есть.
func (p *Placeholder) Children() []Node {
	if n := p.Node(); n != nil {
		return []Node{n}
	}
	return nil
}

func (p *Placeholder) execute(ctx context.Context, args []any) (any, error) {
	if len(args) == 0 {
		args = p.Args()
	}

	inner := p.Node()
	if inner == nil {
		built, err := p.build(ctx, args)
		if err != nil {
			return nil, err
		}
		inner = built
	}
	return inner.Process(ctx, args...)
}

func (p *Placeholder) build(ctx context.Context, args []any) (Node, error) {
	if p.Factory == nil {
		return nil, NewConfigurationError(p.Name(), "factory", "placeholder has no factory", ErrNoFactory)
	}

	n, err := p.Factory(ctx, args...)
	if err != nil {
		return nil, &ExecutionError{Node: p.Name(), Err: fmt.Errorf("build node: %w", err)}
	}
	if isNilNode(n) {
		return nil, NewConfigurationError(p.Name(), "factory", "factory returned nil node", ErrInvalidContinuation)
	}
	if err := attach(p, n); err != nil {
		return nil, NewConfigurationError(p.Name(), "factory", err.Error(), err)
	}

	p.nmu.Lock()
	p.inner = n
	p.nmu.Unlock()
	return n, nil
}
