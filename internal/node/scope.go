package node

import (
	"maps"
	"sync"
)

// Scope — область видимости переменных узла.
//
// Чтение ищет ключ локально, затем делегирует родительскому scope.
// Запись всегда локальная. Родитель — невладеющая ссылка, цепочка ацикличная,
// потому что узел прикрепляется к родителю не более одного раза.
type Scope struct {
	mu     sync.RWMutex
	vars   map[string]any
	parent *Scope
}

// NewScope создаёт scope с начальными значениями.
func NewScope(vars map[string]any) *Scope {
	s := &Scope{vars: make(map[string]any, len(vars))}
	maps.Copy(s.vars, vars)
	return s
}

// Lookup ищет ключ в цепочке scope.
// Локальный ключ (даже со значением nil) затеняет ключ предка.
func (s *Scope) Lookup(key string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parentScope() {
		cur.mu.RLock()
		v, ok := cur.vars[key]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Get возвращает значение ключа или nil.
func (s *Scope) Get(key string) any {
	v, _ := s.Lookup(key)
	return v
}

// Has проверяет наличие ключа в цепочке.
func (s *Scope) Has(key string) bool {
	_, ok := s.Lookup(key)
	return ok
}

// Set записывает значение в локальный scope.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[key] = value
}

// Merge записывает несколько значений в локальный scope.
func (s *Scope) Merge(vars map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.vars, vars)
}

// Vars возвращает копию локальных значений (без предков).
func (s *Scope) Vars() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.vars)
}

// Parent возвращает родительский scope или nil.
func (s *Scope) Parent() *Scope {
	return s.parentScope()
}

func (s *Scope) parentScope() *Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parent
}

func (s *Scope) setParent(parent *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parent = parent
}
