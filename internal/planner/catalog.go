package planner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaiso/Treeflow/internal/domain"
)

// ErrPlanNotFound — в каталоге нет плана с таким именем.
var ErrPlanNotFound = errors.New("plan not found")

// planExtensions — расширения файлов планов в порядке приоритета.
var planExtensions = []string{".yaml", ".yml", ".json"}

// DefaultPlansDir — каталог планов, если PLANS_DIR не задан.
const DefaultPlansDir = "plans"

// PlansDir возвращает каталог планов из PLANS_DIR.
func PlansDir() string {
	if v := os.Getenv("PLANS_DIR"); v != "" {
		return v
	}
	return DefaultPlansDir
}

// Catalog — каталог файлов планов. Имя плана — имя файла без расширения.
type Catalog struct {
	dir string
}

// NewCatalog создаёт Catalog над каталогом dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir возвращает каталог.
func (c *Catalog) Dir() string {
	return c.dir
}

// Path находит файл плана по имени.
func (c *Catalog) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrPlanNotFound, name)
	}

	for _, ext := range planExtensions {
		path := filepath.Join(c.dir, name+ext)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrPlanNotFound, name)
}

// Load читает и проверяет план по имени.
func (c *Catalog) Load(name string) (*Descriptor, error) {
	path, err := c.Path(name)
	if err != nil {
		return nil, err
	}

	d, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// List возвращает планы каталога, отсортированные по имени.
// Файлы, которые не удаётся разобрать, пропускаются.
func (c *Catalog) List() ([]domain.Plan, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plans dir: %w", err)
	}

	seen := make(map[string]bool)
	var plans []domain.Plan
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !isPlanExt(ext) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if seen[name] {
			continue
		}

		// Берём файл с приоритетным расширением
		path, err := c.Path(name)
		if err != nil {
			continue
		}
		d, err := ParseFile(path)
		if err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		seen[name] = true
		plans = append(plans, domain.Plan{
			Name:      name,
			Path:      path,
			Type:      string(d.Type),
			UpdatedAt: info.ModTime(),
		})
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Name < plans[j].Name
	})
	return plans, nil
}

func isPlanExt(ext string) bool {
	for _, e := range planExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
