package services

import (
	"context"
	"fmt"

	"dario.cat/mergo"

	"github.com/shaiso/Treeflow/internal/node"
)

// Transform — сервис преобразования данных между узлами.
//
// Аргументы узла уже подставлены из scope, поэтому transform работает
// с готовыми значениями.
type Transform struct{}

// Value: value(x). Возвращает аргумент как есть.
func (Transform) Value(_ context.Context, args ...any) (any, error) {
	return arg(args, 0), nil
}

// Render: render(template, vars). Подставляет •токены шаблона из vars.
func (Transform) Render(_ context.Context, args ...any) (any, error) {
	tmpl, err := stringArg("transform.render", args, 0)
	if err != nil {
		return nil, err
	}
	vars, err := mapArg("transform.render", args, 1)
	if err != nil {
		return nil, err
	}
	return node.Render(tmpl, node.NewScope(vars)), nil
}

// Pick: pick(value, path). Извлекает значение по пути ("items[0].name").
// Отсутствующий путь даёт nil.
func (Transform) Pick(_ context.Context, args ...any) (any, error) {
	path, err := stringArg("transform.pick", args, 1)
	if err != nil {
		return nil, err
	}
	v, _ := node.Navigate(arg(args, 0), path)
	return v, nil
}

// Merge: merge(objects...). Сливает объекты слева направо, поздние ключи побеждают.
func (Transform) Merge(_ context.Context, args ...any) (any, error) {
	out := make(map[string]any)
	for i := range args {
		m, err := mapArg("transform.merge", args, i)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		if err := mergo.Merge(&out, m, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("transform.merge: %w", err)
		}
	}
	return out, nil
}

// List: list(values...). Собирает аргументы в список.
func (Transform) List(_ context.Context, args ...any) (any, error) {
	return append([]any{}, args...), nil
}
