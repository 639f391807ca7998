package node

// State — состояние узла.
//
// Жизненный цикл:
//
//	pending → in-progress → successful
//	                      ↘ failed
//	pending → skipped
//	(или) → cancelled (из pending или in-progress)
type State string

const (
	// StatePending — узел создан, но ещё не выполнялся.
	StatePending State = "pending"

	// StateInProgress — узел выполняется.
	StateInProgress State = "in-progress"

	// StateSuccessful — выполнение завершилось без ошибки.
	StateSuccessful State = "successful"

	// StateFailed — выполнение завершилось ошибкой.
	StateFailed State = "failed"

	// StateSkipped — узел пропущен через skipIf (вместе со всеми потомками).
	StateSkipped State = "skipped"

	// StateCancelled — зарезервировано: ни одна операция движка сюда не переводит.
	StateCancelled State = "cancelled"
)

// transitions — допустимые переходы между состояниями.
var transitions = map[State][]State{
	StatePending:    {StateInProgress, StateSkipped, StateCancelled},
	StateInProgress: {StateSuccessful, StateFailed, StateCancelled},
}

// String возвращает строковое представление State.
func (s State) String() string {
	return string(s)
}

// IsTerminal возвращает true, если из состояния нет переходов.
func (s State) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
