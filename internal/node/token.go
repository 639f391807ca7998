package node

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Marker — префикс токена подстановки.
const Marker = "•"

// PathResolver — значение, которое само разрешает вложенный путь.
//
// Используется внешним контекстом run: токен •ctx.users[0] разрешает
// голову "ctx" через scope, а остаток ".users[0]" передаёт в ResolvePath.
type PathResolver interface {
	ResolvePath(path string) (any, bool)
}

// Resolve разрешает токены в значении против scope.
//
// Правила:
//   - "•a.b[0]" целиком — значение по пути (любого типа)
//   - "x •{a.b[0]} y" — строка с подставленными значениями
//   - строки без маркера и не-строки возвращаются как есть
func Resolve(value any, scope *Scope) any {
	s, ok := value.(string)
	if !ok || !strings.Contains(s, Marker) {
		return value
	}

	if path, ok := wholeToken(s); ok {
		v, _ := LookupPath(scope, path)
		return v
	}

	return Render(s, scope)
}

// ResolveString разрешает токены и приводит результат к строке.
func ResolveString(s string, scope *Scope) string {
	switch v := Resolve(s, scope).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ResolveAll разрешает каждый элемент списка аргументов.
func ResolveAll(values []any, scope *Scope) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = Resolve(v, scope)
	}
	return out
}

// Render интерполирует все токены (•{path} и •path) в строку.
// Отсутствующее значение подставляется пустой строкой.
func Render(s string, scope *Scope) string {
	var b strings.Builder
	b.Grow(len(s))

	for {
		i := strings.Index(s, Marker)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(Marker):]

		// •{path}
		if strings.HasPrefix(s, "{") {
			end := strings.IndexByte(s, '}')
			if end < 0 {
				b.WriteString(Marker)
				continue
			}
			path := strings.TrimSpace(s[1:end])
			writeValue(&b, scope, path)
			s = s[end+1:]
			continue
		}

		// •path
		n := scanPath(s, 0)
		if n == 0 {
			b.WriteString(Marker)
			continue
		}
		writeValue(&b, scope, s[:n])
		s = s[n:]
	}
}

func writeValue(b *strings.Builder, scope *Scope, path string) {
	v, ok := LookupPath(scope, path)
	if !ok || v == nil {
		return
	}
	fmt.Fprint(b, v)
}

// wholeToken проверяет, что строка — ровно один голый токен.
func wholeToken(s string) (string, bool) {
	if !strings.HasPrefix(s, Marker) {
		return "", false
	}
	rest := s[len(Marker):]
	n := scanPath(rest, 0)
	if n == 0 || n != len(rest) {
		return "", false
	}
	return rest, true
}

// LookupPath разрешает путь "head.a[0].b" против scope.
// Голова ищется по цепочке scope, остаток — навигацией по значению.
func LookupPath(scope *Scope, path string) (any, bool) {
	if scope == nil {
		return nil, false
	}

	n := scanIdent(path, 0)
	if n == 0 {
		return nil, false
	}
	head, rest := path[:n], path[n:]

	v, ok := scope.Lookup(head)
	if !ok {
		return nil, false
	}
	if rest == "" {
		return v, true
	}

	if r, ok := v.(PathResolver); ok {
		return r.ResolvePath(rest)
	}
	return Navigate(v, rest)
}

// Navigate проходит относительный путь (".a[0]", "[1].b", "a.b") по значению.
func Navigate(v any, path string) (any, bool) {
	x, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	results := x.Get(v)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// ParsePath разбирает путь в jp.Expr, допуская только обращения
// к полям и индексам. Фильтры, wildcard, рекурсивный спуск, union и
// slice отклоняются: вычисление выражений хоста не поддерживается.
func ParsePath(path string) (jp.Expr, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	var src string
	switch path[0] {
	case '.', '[':
		src = "$" + path
	default:
		src = "$." + path
	}

	x, err := jp.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}

	for _, frag := range x {
		switch frag.(type) {
		case jp.Root, jp.Child, jp.Nth, jp.Bracket:
		default:
			return nil, fmt.Errorf("path %q: unsupported expression %T", path, frag)
		}
	}
	return x, nil
}

// scanIdent возвращает длину идентификатора с позиции start.
func scanIdent(s string, start int) int {
	i := start
	if i >= len(s) || !isIdentStart(s[i]) {
		return 0
	}
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return i - start
}

// scanPath возвращает длину пути (ident(.ident|[...])*) с позиции start.
func scanPath(s string, start int) int {
	n := scanIdent(s, start)
	if n == 0 {
		return 0
	}
	i := start + n

	for i < len(s) {
		switch s[i] {
		case '.':
			m := scanIdent(s, i+1)
			if m == 0 {
				return i - start
			}
			i += 1 + m
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return i - start
			}
			i += end + 1
		default:
			return i - start
		}
	}
	return i - start
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

// Truthy — истинность значения для skipIf.
//
// nil, false, 0, "", "false" и пустые коллекции — ложь; остальное — истина.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}
