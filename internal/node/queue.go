package node

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency — лимит параллельных дочерних узлов по умолчанию.
const DefaultMaxConcurrency = 10

// Queue — составной узел: выполняет дочерние узлы пачками не более
// MaxConcurrency за раз и возвращает результаты в порядке добавления.
//
// Пачка ожидается целиком. Если дочерний узел без onFail завершился
// ошибкой, остальные узлы пачки доигрывают, следующие пачки не запускаются,
// а незапущенные узлы остаются pending.
type Queue struct {
	Base

	// MaxConcurrency — максимум одновременно выполняемых дочерних узлов (>= 1).
	MaxConcurrency int

	qmu      sync.Mutex
	children []Node
	stats    Stats
	after    *Queue
	noAfter  bool
}

// NewQueue создаёт queue с лимитом по умолчанию и добавляет узлы.
func NewQueue(name string, nodes ...Node) (*Queue, error) {
	q := newQueue(name)
	if err := q.Add(nodes...); err != nil {
		return nil, err
	}
	return q, nil
}

func newQueue(name string) *Queue {
	q := &Queue{MaxConcurrency: DefaultMaxConcurrency}
	q.init(q, "queue", name, nil)
	return q
}

// SetMaxConcurrency задаёт лимит; значение < 1 — ошибка конфигурации.
func (q *Queue) SetMaxConcurrency(n int) error {
	if n < 1 {
		return NewConfigurationError(q.Name(), "maxConcurrency",
			fmt.Sprintf("max concurrency must be >= 1, got %d", n), ErrInvalidConcurrency)
	}
	q.MaxConcurrency = n
	return nil
}

// Add добавляет дочерние узлы в конец очереди.
// Допустимо до и во время Process: новые узлы попадут в следующие пачки.
func (q *Queue) Add(nodes ...Node) error {
	for _, n := range nodes {
		if err := attach(q.self, n); err != nil {
			return NewConfigurationError(q.Name(), "queue", err.Error(), err)
		}

		q.qmu.Lock()
		q.children = append(q.children, n)
		q.stats.Total++
		q.qmu.Unlock()
	}
	return nil
}

// Children возвращает дочерние узлы и after-очередь, если она есть.
func (q *Queue) Children() []Node {
	q.qmu.Lock()
	defer q.qmu.Unlock()

	out := make([]Node, 0, len(q.children)+1)
	out = append(out, q.children...)
	if q.after != nil && !q.noAfter {
		out = append(out, q.after)
	}
	return out
}

// Len возвращает число добавленных дочерних узлов.
func (q *Queue) Len() int {
	q.qmu.Lock()
	defer q.qmu.Unlock()
	return len(q.children)
}

// Stats возвращает снимок счётчиков.
func (q *Queue) Stats() Stats {
	q.qmu.Lock()
	defer q.qmu.Unlock()
	return q.stats
}

// After возвращает завершающую очередь, создавая её при первом обращении.
// Её результаты добавляются в конец результатов queue.
func (q *Queue) After() *Queue {
	q.qmu.Lock()
	defer q.qmu.Unlock()

	if q.after == nil {
		q.after = newQueue(q.NameTemplate + ".after")
		q.after.MaxConcurrency = q.MaxConcurrency
		_ = attach(q.self, q.after)
	}
	q.noAfter = false
	return q.after
}

// WithoutAfter отключает завершающую очередь.
func (q *Queue) WithoutAfter() *Queue {
	q.qmu.Lock()
	defer q.qmu.Unlock()
	q.noAfter = true
	return q
}

// Process выполняет дочерние узлы. Аргументы игнорируются.
func (q *Queue) Process(ctx context.Context, args ...any) (any, error) {
	return q.process(ctx, q, q.execute, args)
}

func (q *Queue) execute(ctx context.Context, _ []any) (any, error) {
	if q.MaxConcurrency < 1 {
		return nil, NewConfigurationError(q.Name(), "maxConcurrency",
			fmt.Sprintf("max concurrency must be >= 1, got %d", q.MaxConcurrency), ErrInvalidConcurrency)
	}

	q.emit(Event{Type: EventStart, State: StateInProgress, Stats: q.Stats()})

	results := make([]any, 0, q.Len())
	next := 0
	for {
		batch := q.nextBatch(next)
		if len(batch) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			q.emit(Event{Type: EventEnd, State: StateFailed, Stats: q.Stats(), Err: err})
			return nil, err
		}

		out, err := q.runBatch(ctx, batch, next)
		if err != nil {
			q.emit(Event{Type: EventEnd, State: StateFailed, Stats: q.Stats(), Err: err})
			return nil, err
		}
		results = append(results, out...)
		next += len(batch)
	}

	after := q.trailing()
	if after != nil {
		out, err := after.Process(ctx)
		if err != nil {
			q.emit(Event{Type: EventEnd, State: StateFailed, Stats: q.Stats(), Err: err})
			return nil, err
		}
		if list, ok := out.([]any); ok {
			results = append(results, list...)
		} else if out != nil {
			results = append(results, out)
		}
	}

	q.emit(Event{Type: EventEnd, State: StateSuccessful, Stats: q.Stats(), Value: results})
	return results, nil
}

// nextBatch берёт до MaxConcurrency-active узлов, начиная с позиции from.
func (q *Queue) nextBatch(from int) []Node {
	q.qmu.Lock()
	defer q.qmu.Unlock()

	if from >= len(q.children) {
		return nil
	}
	slots := q.MaxConcurrency - q.stats.Active
	if slots < 1 {
		slots = 1
	}
	end := min(from+slots, len(q.children))

	batch := make([]Node, end-from)
	copy(batch, q.children[from:end])
	return batch
}

// runBatch запускает пачку и ждёт все её узлы; results[i] — результат batch[i].
func (q *Queue) runBatch(ctx context.Context, batch []Node, offset int) ([]any, error) {
	results := make([]any, len(batch))

	// errgroup.Group без WithContext: ошибка одного узла не отменяет соседей.
	var g errgroup.Group
	for i, child := range batch {
		index := offset + i
		q.launched(child, index)

		g.Go(func() error {
			res, err := child.Process(ctx)
			results[i] = res
			q.completed(child, index, res, err)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (q *Queue) launched(child Node, index int) {
	q.qmu.Lock()
	q.stats.Active++
	stats := q.stats
	q.qmu.Unlock()

	q.emit(Event{Type: EventJobStart, Child: child, Index: index, Stats: stats})
}

func (q *Queue) completed(child Node, index int, result any, err error) {
	q.qmu.Lock()
	q.stats.Active--
	q.stats.Complete++
	stats := q.stats
	q.qmu.Unlock()

	q.emit(Event{Type: EventJobEnd, Child: child, Index: index, Stats: stats, Value: result, Err: err})
}

func (q *Queue) trailing() *Queue {
	q.qmu.Lock()
	defer q.qmu.Unlock()
	if q.noAfter {
		return nil
	}
	return q.after
}
