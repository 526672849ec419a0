package binding

import (
	"errors"
	"fmt"
)

// ErrMissingDependency — в Config не передана обязательная зависимость.
var ErrMissingDependency = errors.New("binder dependency is missing")

// Фазы пересчёта узла.
const (
	PhaseCondition = "condition"
	PhaseValue     = "value"
)

// NodeError — ошибка пересчёта одного узла.
// Узел при этом сохраняет последнее корректное состояние.
type NodeError struct {
	NodeID   string
	SourceID string // пусто для начального пересчёта
	Phase    string
	Err      error
}

// Error реализует интерфейс error.
func (e *NodeError) Error() string {
	if e.SourceID == "" {
		return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Phase, e.Err)
	}
	return fmt.Sprintf("node %s: %s (source %s): %v", e.NodeID, e.Phase, e.SourceID, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *NodeError) Unwrap() error {
	return e.Err
}
