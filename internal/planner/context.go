package planner

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/Treeflow/internal/node"
)

// ContextKey — имя, под которым контекст run доступен в scope корня.
const ContextKey = "ctx"

// Context — внешний объект run, доступный узлам плана.
//
// Читается loop (for.of) и токенами •ctx.path, пишется через result.
// Каждое обращение порождает событие ctx-read или ctx-write.
type Context struct {
	mu        sync.RWMutex
	data      map[string]any
	observers node.Observers
}

// NewContext создаёт контекст с глубокой копией начальных данных:
// записи result не попадают в map вызывающего.
func NewContext(data map[string]any) *Context {
	return &Context{data: copyMap(data)}
}

// Observe подписывает наблюдателя на ctx-read/ctx-write.
func (c *Context) Observe(o node.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Get возвращает значение по пути ("users[0].name").
func (c *Context) Get(path string) (any, bool) {
	x, err := node.ParsePath(path)
	if err != nil {
		return nil, false
	}

	c.mu.RLock()
	results := x.Get(c.data)
	obs := c.observers
	c.mu.RUnlock()

	var value any
	if len(results) > 0 {
		value = results[0]
	}
	obs.OnEvent(node.Event{Type: node.EventCtxRead, Path: normalizePath(path), Value: value, Time: time.Now()})

	return value, len(results) > 0
}

// Set записывает значение по пути, создавая промежуточные объекты.
func (c *Context) Set(path string, value any) error {
	x, err := node.ParsePath(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = x.SetOne(c.data, value)
	obs := c.observers
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	obs.OnEvent(node.Event{Type: node.EventCtxWrite, Path: normalizePath(path), Value: value, Time: time.Now()})
	return nil
}

// Snapshot возвращает глубокую копию данных.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return copyMap(c.data)
}

// ResolvePath реализует node.PathResolver для токенов •ctx.path.
func (c *Context) ResolvePath(path string) (any, bool) {
	return c.Get(path)
}

// copyMap копирует вложенные map[string]any и []any, сохраняя типы остальных значений.
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func normalizePath(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), ".")
}
