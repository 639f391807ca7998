package node

import "time"

// EventType — тип уведомления узла.
type EventType string

const (
	// EventState — смена состояния узла.
	EventState EventType = "state"

	// EventStart — queue начала выполнение первого batch.
	EventStart EventType = "start"

	// EventEnd — queue завершила выполнение.
	EventEnd EventType = "end"

	// EventJobStart — queue запустила дочерний узел.
	EventJobStart EventType = "job-start"

	// EventJobEnd — дочерний узел queue завершился.
	EventJobEnd EventType = "job-end"

	// EventCtxRead — чтение из контекста run.
	EventCtxRead EventType = "ctx-read"

	// EventCtxWrite — запись в контекст run.
	EventCtxWrite EventType = "ctx-write"
)

// Stats — счётчики queue.
type Stats struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	Active   int `json:"active"`
}

// Event — уведомление для мониторинга.
// События не влияют на поток выполнения.
type Event struct {
	Type  EventType
	Node  Node   // источник события
	State State  // новое состояние (для state/start/end)
	Prev  State  // предыдущее состояние (для state)
	Child Node   // дочерний узел (для job-start/job-end)
	Index int    // позиция дочернего узла в queue
	Stats Stats  // снимок счётчиков queue
	Path  string // путь в контексте (для ctx-read/ctx-write)
	Value any
	Err   error
	Time  time.Time
}

// Observer получает события узла и всех его потомков.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc — адаптер функции к Observer.
type ObserverFunc func(Event)

// OnEvent вызывает f(e).
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

// Observers — набор наблюдателей, сам реализующий Observer.
type Observers []Observer

// OnEvent рассылает событие всем наблюдателям по порядку.
func (os Observers) OnEvent(e Event) {
	for _, o := range os {
		if o != nil {
			o.OnEvent(e)
		}
	}
}
