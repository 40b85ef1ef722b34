package pipeline

import "errors"

var (
	// ErrInvariant нарушение внутреннего инварианта состояния; ошибка программы, а не данных
	ErrInvariant = errors.New("pipeline invariant violated")
	// ErrFinalized тик после финализации сессии
	ErrFinalized = errors.New("session already finalized")
)

// Stage одна стадия анализа, вызываемая один раз за тик.
// Недостаток данных и сбои моделей не возвращаются как ошибки.
type Stage interface {
	Name() string
	Tick(st *State) error
}

// due сообщает, наступил ли очередной интервал оценки
func due(now, every int) bool {
	if every <= 1 {
		return true
	}
	return now%every == 0
}
