package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Print — сервис вывода в io.Writer.
type Print struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrint создаёт сервис; w == nil — os.Stdout.
func NewPrint(w io.Writer) *Print {
	if w == nil {
		w = os.Stdout
	}
	return &Print{w: w}
}

// Print: print(values...). Пишет значения через пробел и возвращает
// единственный аргумент (или весь список).
func (p *Print) Print(_ context.Context, args ...any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintln(p.w, args...); err != nil {
		return nil, fmt.Errorf("print: %w", err)
	}

	if len(args) == 1 {
		return args[0], nil
	}
	return args, nil
}
