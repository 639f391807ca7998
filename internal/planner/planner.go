package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/shaiso/Treeflow/internal/node"
)

// Planner компилирует дескрипторы плана в дерево узлов.
type Planner struct {
	services *Registry
}

// New создаёт Planner с пустым реестром сервисов.
func New() *Planner {
	return &Planner{services: NewRegistry()}
}

// AddService добавляет (или дополняет) сервис; name "" — default.
func (p *Planner) AddService(name string, svc any) error {
	return p.services.Add(name, svc)
}

// Services возвращает реестр сервисов.
func (p *Planner) Services() *Registry {
	return p.services
}

// Compile компилирует план в дерево узлов.
//
// c — контекст run: доступен в scope корня как •ctx, читается loop
// (for.of) и пишется через result. Может быть nil, если план их не использует.
func (p *Planner) Compile(d *Descriptor, c *Context) (node.Node, error) {
	if d == nil {
		return nil, NewCompileError("plan", "", "", "plan is empty", ErrEmptyPlan)
	}

	n, err := p.compile("plan", d, c)
	if err != nil {
		return nil, err
	}

	if c != nil {
		n.Common().Scope().Set(ContextKey, c)
	}
	return n, nil
}

func (p *Planner) compile(path string, d *Descriptor, c *Context) (node.Node, error) {
	if d == nil {
		return nil, NewCompileError(path, "", "", "descriptor is nil", ErrEmptyPlan)
	}

	var (
		n   node.Node
		err error
	)

	switch d.Type {
	case TypeJob:
		n, err = p.compileJob(path, d)
	case TypeQueue:
		n, err = p.compileQueue(path, d, c)
	case TypeTemplate:
		n, err = p.compileTemplate(path, d, c)
	case TypeLoop:
		n, err = p.compileLoop(path, d, c)
	case TypeFactory:
		n, err = p.compileFactory(path, d, c)
	default:
		return nil, NewCompileError(path, d.Type, "type",
			fmt.Sprintf("unknown descriptor type: %q", d.Type), ErrUnknownType)
	}
	if err != nil {
		return nil, err
	}

	if err := p.applyCommon(path, d, n, c); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Planner) compileJob(path string, d *Descriptor) (node.Node, error) {
	fn, err := p.function(path, d)
	if err != nil {
		return nil, err
	}

	job := node.NewJob(d.Name, fn, d.Args...)
	job.ArgsFn = d.ArgsFn
	return job, nil
}

func (p *Planner) compileQueue(path string, d *Descriptor, c *Context) (node.Node, error) {
	q, err := p.newQueue(path, d)
	if err != nil {
		return nil, err
	}

	for i, child := range d.Queue {
		n, err := p.compile(fmt.Sprintf("%s.queue[%d]", path, i), child, c)
		if err != nil {
			return nil, err
		}
		if err := q.Add(n); err != nil {
			return nil, NewCompileError(path, d.Type, "queue", err.Error(), err)
		}
	}
	return q, nil
}

// compileTemplate разворачивает repeatForEach сразу, во время компиляции.
func (p *Planner) compileTemplate(path string, d *Descriptor, c *Context) (node.Node, error) {
	if d.Template == nil || d.RepeatForEach == nil {
		return nil, NewCompileError(path, d.Type, "template",
			"template descriptor needs template and repeatForEach", ErrMissingTemplate)
	}

	items, err := listOf(d.RepeatForEach)
	if err != nil {
		return nil, NewCompileError(path, d.Type, "repeatForEach", err.Error(), err)
	}

	q, err := p.newQueue(path, d)
	if err != nil {
		return nil, err
	}

	for i, item := range items {
		childPath := fmt.Sprintf("%s.template[%d]", path, i)

		desc, err := d.Template(item)
		if err != nil {
			return nil, NewCompileError(childPath, d.Type, "template", err.Error(), err)
		}
		n, err := p.compile(childPath, desc, c)
		if err != nil {
			return nil, err
		}
		if err := q.Add(n); err != nil {
			return nil, NewCompileError(childPath, d.Type, "template", err.Error(), err)
		}
	}
	return q, nil
}

// compileLoop откладывает итерацию до Process; node компилируется заново
// для каждого элемента, так как узлы хранят состояние.
func (p *Planner) compileLoop(path string, d *Descriptor, c *Context) (node.Node, error) {
	forEach, err := p.iterable(path, d, c)
	if err != nil {
		return nil, err
	}

	loop := node.NewLoop(d.Name, forEach, nil, d.Args...)
	if d.For != nil {
		loop.Var = d.For.Var
	}
	if err := p.applyConcurrency(path, d, &loop.Queue); err != nil {
		return nil, err
	}

	if d.Node != nil {
		if d.hasFunction() {
			return nil, NewCompileError(path, d.Type, "node",
				"loop has both node and fn/invoke", ErrConflictingFunction)
		}
		// Проверяем шаблон сразу, чтобы ошибка была ошибкой компиляции
		if _, err := p.compile(path+".node", d.Node, c); err != nil {
			return nil, err
		}
		tmpl := d.Node
		loop.Build = func(item any, index int) (node.Node, error) {
			return p.compile(fmt.Sprintf("%s.node[%d]", path, index), tmpl, c)
		}
		return loop, nil
	}

	fn, err := p.function(path, d)
	if err != nil {
		return nil, err
	}
	loop.Fn = fn
	if d.ArgsFn != nil {
		loop.ArgsFn = d.ArgsFn
	}
	return loop, nil
}

// compileFactory строит Placeholder; функция возвращает node.Node или *Descriptor.
func (p *Planner) compileFactory(path string, d *Descriptor, c *Context) (node.Node, error) {
	fn, err := p.function(path, d)
	if err != nil {
		return nil, err
	}

	factory := func(ctx context.Context, args ...any) (node.Node, error) {
		out, err := fn(ctx, args...)
		if err != nil {
			return nil, err
		}

		switch v := out.(type) {
		case node.Node:
			return v, nil
		case *Descriptor:
			return p.compile(path+".factory", v, c)
		case Descriptor:
			return p.compile(path+".factory", &v, c)
		default:
			return nil, NewCompileError(path, d.Type, "fn",
				fmt.Sprintf("factory returned %T", out), ErrInvalidFactoryResult)
		}
	}

	ph := node.NewPlaceholder(d.Name, factory)
	ph.ArgsTemplate = d.Args
	return ph, nil
}

// applyCommon применяет поля, общие для всех типов.
func (p *Planner) applyCommon(path string, d *Descriptor, n node.Node, c *Context) error {
	b := n.Common()

	if len(d.Scope) > 0 {
		b.Scope().Merge(d.Scope)
	}
	if d.SkipIf != nil {
		b.Skip = node.SkipWhen(d.SkipIf)
	}

	if d.Result != "" {
		if c == nil {
			return NewCompileError(path, d.Type, "result",
				"result requires a run context", ErrMissingContext)
		}
		tmpl := d.Result
		b.OnResult(func(_ context.Context, n node.Node, result any) error {
			return c.Set(node.ResolveString(tmpl, n.Common().Scope()), result)
		})
	}

	if d.OnSuccess != nil {
		cont, err := p.compile(path+".onSuccess", d.OnSuccess, c)
		if err != nil {
			return err
		}
		b.OnSuccess = pinArgs(cont, d.OnSuccess)
	}
	if d.OnFail != nil {
		cont, err := p.compile(path+".onFail", d.OnFail, c)
		if err != nil {
			return err
		}
		b.OnFail = pinArgs(cont, d.OnFail)
	}
	return nil
}

// pinArgs заставляет job-продолжение с объявленными args вызываться
// с ними, а не с (result, node). Входное значение доступно как •result / •error.
func pinArgs(cont node.Node, d *Descriptor) node.Node {
	job, ok := cont.(*node.Job)
	if !ok || len(d.Args) == 0 || job.Fn == nil {
		return cont
	}

	fn := job.Fn
	job.Fn = func(ctx context.Context, _ ...any) (any, error) {
		return fn(ctx, job.Args()...)
	}
	return cont
}

func (p *Planner) newQueue(path string, d *Descriptor) (*node.Queue, error) {
	q, err := node.NewQueue(d.Name)
	if err != nil {
		return nil, NewCompileError(path, d.Type, "queue", err.Error(), err)
	}
	if err := p.applyConcurrency(path, d, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *Planner) applyConcurrency(path string, d *Descriptor, q *node.Queue) error {
	if d.After != nil && !*d.After {
		q.WithoutAfter()
	}
	if d.MaxConcurrency == nil {
		return nil
	}

	n, ok := toInt(d.MaxConcurrency)
	if !ok {
		cfgErr := node.NewConfigurationError(d.Name, "maxConcurrency",
			fmt.Sprintf("max concurrency must be an integer, got %v", d.MaxConcurrency), node.ErrInvalidConcurrency)
		return NewCompileError(path, d.Type, "maxConcurrency", cfgErr.Message, cfgErr)
	}
	if err := q.SetMaxConcurrency(n); err != nil {
		var cfgErr *node.ConfigurationError
		msg := err.Error()
		if errors.As(err, &cfgErr) {
			msg = cfgErr.Message
		}
		return NewCompileError(path, d.Type, "maxConcurrency", msg, err)
	}
	return nil
}

// function разрешает fn/invoke дескриптора.
func (p *Planner) function(path string, d *Descriptor) (node.Func, error) {
	switch {
	case d.Fn != nil && d.Invoke != "":
		return nil, NewCompileError(path, d.Type, "invoke",
			"fn and invoke are mutually exclusive", ErrConflictingFunction)
	case d.Fn != nil:
		return d.Fn, nil
	case d.Invoke != "":
		service, method := splitInvoke(d.Service, d.Invoke)
		fn, err := p.services.Lookup(service, method)
		if err != nil {
			return nil, NewCompileError(path, d.Type, "invoke", err.Error(), err)
		}
		return fn, nil
	default:
		return nil, NewCompileError(path, d.Type, "fn",
			fmt.Sprintf("%s descriptor has neither fn nor invoke", d.Type), ErrMissingFunction)
	}
}

// iterable строит источник элементов loop.
func (p *Planner) iterable(path string, d *Descriptor, c *Context) (func(context.Context) ([]any, error), error) {
	switch {
	case d.ForEach != nil:
		forEach := d.ForEach
		return func(ctx context.Context) ([]any, error) {
			return forEach(ctx, c)
		}, nil

	case d.For != nil && d.For.Of != "":
		if c == nil {
			return nil, NewCompileError(path, d.Type, "for",
				"for.of requires a run context", ErrMissingContext)
		}
		of := d.For.Of
		return func(ctx context.Context) ([]any, error) {
			v, ok := c.Get(of)
			if !ok {
				return nil, fmt.Errorf("context has no %q", of)
			}
			return evalList(ctx, v)
		}, nil

	default:
		return nil, NewCompileError(path, d.Type, "for",
			"loop descriptor needs for or forEach", ErrMissingIterable)
	}
}

// listOf приводит repeatForEach к списку: срез или функция без аргументов.
func listOf(v any) ([]any, error) {
	return evalList(context.Background(), v)
}

func evalList(ctx context.Context, v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case func() []any:
		return t(), nil
	case func() ([]any, error):
		return t()
	case func(context.Context) ([]any, error):
		return t(ctx)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %T", ErrInvalidIterable, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// toInt принимает целые числа любых типов и float без дробной части.
func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case int32:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	}
	return 0, false
}
