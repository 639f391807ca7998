package planner

import (
	"context"

	"github.com/shaiso/Treeflow/internal/node"
)

// Type — тип дескриптора плана.
type Type string

const (
	// TypeJob — вызов функции.
	TypeJob Type = "job"

	// TypeQueue — дочерние дескрипторы с ограничением параллельности.
	TypeQueue Type = "queue"

	// TypeTemplate — queue, размноженная по repeatForEach во время компиляции.
	TypeTemplate Type = "template"

	// TypeLoop — queue, размноженная по итерируемому значению во время выполнения.
	TypeLoop Type = "loop"

	// TypeFactory — узел, построенный функцией при первом выполнении.
	TypeFactory Type = "factory"
)

// Descriptor — декларативное описание узла.
//
// Пример (YAML):
//
//	type: queue
//	maxConcurrency: 2
//	queue:
//	  - type: job
//	    invoke: cache.get
//	    args: ["•id"]
//	    result: users.•id
//	    onFail:
//	      type: job
//	      invoke: http.get
//	      args: ["https://example.com/users/•{id}"]
//
// Поля Fn, ArgsFn, Template, RepeatForEach, ForEach задаются только из Go.
type Descriptor struct {
	Type    Type   `json:"type" yaml:"type"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Invoke  string `json:"invoke,omitempty" yaml:"invoke,omitempty"`
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	Args    []any  `json:"args,omitempty" yaml:"args,omitempty"`

	OnSuccess *Descriptor `json:"onSuccess,omitempty" yaml:"onSuccess,omitempty"`
	OnFail    *Descriptor `json:"onFail,omitempty" yaml:"onFail,omitempty"`

	Scope  map[string]any `json:"scope,omitempty" yaml:"scope,omitempty"`
	SkipIf any            `json:"skipIf,omitempty" yaml:"skipIf,omitempty"`

	// Result — путь в контексте run для записи результата, может содержать токены.
	Result string `json:"result,omitempty" yaml:"result,omitempty"`

	// MaxConcurrency — целое >= 1 (queue, template, loop).
	MaxConcurrency any `json:"maxConcurrency,omitempty" yaml:"maxConcurrency,omitempty"`

	// After — false отключает завершающую очередь.
	After *bool `json:"after,omitempty" yaml:"after,omitempty"`

	Queue []*Descriptor `json:"queue,omitempty" yaml:"queue,omitempty"`

	For  *ForSpec    `json:"for,omitempty" yaml:"for,omitempty"`
	Node *Descriptor `json:"node,omitempty" yaml:"node,omitempty"`

	Fn            node.Func                                            `json:"-" yaml:"-"`
	ArgsFn        func(prev any) []any                                 `json:"-" yaml:"-"`
	Template      func(item any) (*Descriptor, error)                  `json:"-" yaml:"-"`
	RepeatForEach any                                                  `json:"-" yaml:"-"`
	ForEach       func(ctx context.Context, c *Context) ([]any, error) `json:"-" yaml:"-"`
}

// ForSpec — источник итерации loop.
type ForSpec struct {
	// Var — имя переменной элемента в scope, по умолчанию "item".
	Var string `json:"var,omitempty" yaml:"var,omitempty"`

	// Of — путь в контексте run до списка или функции, возвращающей список.
	Of string `json:"of" yaml:"of"`
}

// hasFunction проверяет, задан ли fn или invoke.
func (d *Descriptor) hasFunction() bool {
	return d.Fn != nil || d.Invoke != ""
}
