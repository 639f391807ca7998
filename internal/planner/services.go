package planner

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"dario.cat/mergo"

	"github.com/shaiso/Treeflow/internal/node"
)

// DefaultService — имя сервиса по умолчанию.
const DefaultService = "default"

// Service — набор функций, доступных через invoke.
type Service map[string]node.Func

var funcType = reflect.TypeOf((*node.Func)(nil)).Elem()

// Registry — реестр сервисов.
//
// Потокобезопасен: может использоваться из нескольких горутин.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]Service),
	}
}

// Add добавляет сервис в реестр под именем name ("" — default).
//
// svc — Service, map[string]node.Func или значение, экспортируемые методы
// которого имеют сигнатуру node.Func (методы привязываются к значению).
// Повторный вызов с тем же именем дополняет сервис, перезаписывая совпадающие функции.
func (r *Registry) Add(name string, svc any) error {
	if name == "" {
		name = DefaultService
	}

	funcs, err := serviceFuncs(svc)
	if err != nil {
		return fmt.Errorf("add service %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.services[name]
	if !ok {
		existing = make(Service, len(funcs))
	}
	if err := mergo.Merge(&existing, funcs, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge service %s: %w", name, err)
	}
	r.services[name] = existing
	return nil
}

// Lookup возвращает функцию method сервиса service ("" — default).
// Имя метода ищется как есть, затем с заглавной первой буквой.
func (r *Registry) Lookup(service, method string) (node.Func, error) {
	if service == "" {
		service = DefaultService
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}

	if fn, ok := svc[method]; ok {
		return fn, nil
	}
	if fn, ok := svc[exported(method)]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, service, method)
}

// Has проверяет наличие сервиса.
func (r *Registry) Has(service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[service]
	return ok
}

// Names возвращает отсортированный список сервисов.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods возвращает отсортированный список функций сервиса.
func (r *Registry) Methods(service string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.services[service]))
	for m := range r.services[service] {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// serviceFuncs извлекает функции из значения сервиса.
func serviceFuncs(svc any) (Service, error) {
	switch s := svc.(type) {
	case nil:
		return nil, ErrInvalidService
	case Service:
		return s, nil
	case map[string]node.Func:
		return Service(s), nil
	case map[string]func(context.Context, ...any) (any, error):
		out := make(Service, len(s))
		for k, fn := range s {
			out[k] = fn
		}
		return out, nil
	}

	v := reflect.ValueOf(svc)
	t := v.Type()
	out := make(Service)
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		bound := v.Method(i)
		if !bound.Type().ConvertibleTo(funcType) {
			continue
		}
		out[m.Name] = bound.Convert(funcType).Interface().(node.Func)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %T", ErrInvalidService, svc)
	}
	return out, nil
}

func exported(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// splitInvoke разбирает "service.method" в invoke без явного service.
func splitInvoke(service, invoke string) (string, string) {
	if service != "" {
		return service, invoke
	}
	if i := strings.LastIndexByte(invoke, '.'); i > 0 {
		return invoke[:i], invoke[i+1:]
	}
	return DefaultService, invoke
}
