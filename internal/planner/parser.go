package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Treeflow/internal/node"
)

// Format — формат файла плана.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf определяет формат по расширению файла (по умолчанию YAML).
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse разбирает план из YAML или JSON.
func Parse(data []byte, format Format) (*Descriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPlan
	}

	var d Descriptor
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse json plan: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse yaml plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown plan format: %s", format)
	}

	return &d, nil
}

// ParseFile читает и разбирает файл плана.
func ParseFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data, FormatOf(path))
}

// Validate выполняет структурную проверку плана без разрешения сервисов.
//
// Проверяет:
// - Известность типа каждого дескриптора
// - Наличие ровно одного из fn/invoke у job и factory
// - Наличие template+repeatForEach у template и for/forEach у loop
// - Корректность maxConcurrency
func Validate(d *Descriptor) error {
	if d == nil {
		return NewCompileError("plan", "", "", "plan is empty", ErrEmptyPlan)
	}
	return validate("plan", d)
}

func validate(path string, d *Descriptor) error {
	if d == nil {
		return NewCompileError(path, "", "", "descriptor is nil", ErrEmptyPlan)
	}

	switch d.Type {
	case TypeJob, TypeFactory:
		if err := validateFunction(path, d); err != nil {
			return err
		}

	case TypeQueue:
		for i, child := range d.Queue {
			if err := validate(fmt.Sprintf("%s.queue[%d]", path, i), child); err != nil {
				return err
			}
		}

	case TypeTemplate:
		if d.Template == nil || d.RepeatForEach == nil {
			return NewCompileError(path, d.Type, "template",
				"template descriptor needs template and repeatForEach", ErrMissingTemplate)
		}

	case TypeLoop:
		if d.ForEach == nil && (d.For == nil || d.For.Of == "") {
			return NewCompileError(path, d.Type, "for",
				"loop descriptor needs for or forEach", ErrMissingIterable)
		}
		if d.Node != nil {
			if d.hasFunction() {
				return NewCompileError(path, d.Type, "node",
					"loop has both node and fn/invoke", ErrConflictingFunction)
			}
			if err := validate(path+".node", d.Node); err != nil {
				return err
			}
		} else if err := validateFunction(path, d); err != nil {
			return err
		}

	default:
		return NewCompileError(path, d.Type, "type",
			fmt.Sprintf("unknown descriptor type: %q", d.Type), ErrUnknownType)
	}

	if d.MaxConcurrency != nil {
		if n, ok := toInt(d.MaxConcurrency); !ok || n < 1 {
			return NewCompileError(path, d.Type, "maxConcurrency",
				fmt.Sprintf("max concurrency must be a positive integer, got %v", d.MaxConcurrency), node.ErrInvalidConcurrency)
		}
	}

	if d.OnSuccess != nil {
		if err := validate(path+".onSuccess", d.OnSuccess); err != nil {
			return err
		}
	}
	if d.OnFail != nil {
		if err := validate(path+".onFail", d.OnFail); err != nil {
			return err
		}
	}
	return nil
}

func validateFunction(path string, d *Descriptor) error {
	switch {
	case d.Fn != nil && d.Invoke != "":
		return NewCompileError(path, d.Type, "invoke",
			"fn and invoke are mutually exclusive", ErrConflictingFunction)
	case !d.hasFunction():
		return NewCompileError(path, d.Type, "fn",
			fmt.Sprintf("%s descriptor has neither fn nor invoke", d.Type), ErrMissingFunction)
	}
	return nil
}
