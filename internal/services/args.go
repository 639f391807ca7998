package services

import (
	"fmt"
	"time"
)

// arg возвращает i-й аргумент или nil.
func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// stringArg возвращает i-й аргумент как строку.
// Отсутствующий аргумент — ошибка ErrInvalidArgs.
func stringArg(method string, args []any, i int) (string, error) {
	switch v := arg(args, i).(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("%w: %s: argument %d is required", ErrInvalidArgs, method, i)
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// mapArg возвращает i-й аргумент как map[string]any; nil допустим.
func mapArg(method string, args []any, i int) (map[string]any, error) {
	switch v := arg(args, i).(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s: argument %d must be an object, got %T", ErrInvalidArgs, method, i, v)
	}
}

// configString извлекает строку из конфигурации.
func configString(config map[string]any, key string) string {
	if s, ok := config[key].(string); ok {
		return s
	}
	return ""
}

// configBool извлекает bool из конфигурации.
func configBool(config map[string]any, key string, def bool) bool {
	if b, ok := config[key].(bool); ok {
		return b
	}
	return def
}

// configStrings извлекает map[string]string (заголовки) из конфигурации.
func configStrings(config map[string]any, key string) map[string]string {
	switch m := config[key].(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}

// seconds переводит число секунд (int, float64, строку Go-длительности) в time.Duration.
func seconds(v any) (time.Duration, bool) {
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Second, true
	case int64:
		return time.Duration(n) * time.Second, true
	case float64:
		return time.Duration(n * float64(time.Second)), true
	case string:
		d, err := time.ParseDuration(n)
		return d, err == nil
	}
	return 0, false
}
