package engine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/shaiso/Pagebind/internal/domain"
)

// celVarDS — имя переменной с данными источников в CEL выражениях.
const celVarDS = "ds"

// CELEvaluator вычисляет CEL выражения видимости узлов.
//
// Скомпилированные программы кэшируются по тексту выражения.
// Потокобезопасен.
type CELEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELEvaluator создаёт окружение с переменной ds (map[string]dyn).
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(celVarDS, cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &CELEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Check компилирует выражение без вычисления.
// Выражение должно возвращать bool или dyn.
func (e *CELEvaluator) Check(expr string) error {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("%w: %v", ErrConditionCompile, issues.Err())
	}

	switch ast.OutputType().String() {
	case "bool", "dyn":
		return nil
	default:
		return fmt.Errorf("%w: expression returns %s", ErrConditionNotBool, ast.OutputType())
	}
}

// Eval вычисляет выражение над данными источников.
func (e *CELEvaluator) Eval(expr string, ctx *Context) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	ds := ctx.DS
	if ds == nil {
		ds = map[string]any{}
	}

	out, _, err := prg.Eval(map[string]any{celVarDS: ds})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrConditionEval, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrConditionNotBool, out.Value())
	}

	return result, nil
}

// program возвращает программу из кэша или компилирует её.
func (e *CELEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrConditionCompile, issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConditionCompile, err)
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()

	return prg, nil
}

// ConditionCompiler вычисляет видимость узла.
//
// Узел видим, если выполняются и CEL выражение node.Condition,
// и группы node.DisplayConds. Узел без условий видим всегда.
type ConditionCompiler struct {
	cel *CELEvaluator
}

// NewConditionCompiler создаёт ConditionCompiler.
func NewConditionCompiler() (*ConditionCompiler, error) {
	ev, err := NewCELEvaluator()
	if err != nil {
		return nil, err
	}
	return &ConditionCompiler{cel: ev}, nil
}

// Evaluate вычисляет условие узла. Узел не изменяется.
func (c *ConditionCompiler) Evaluate(node *domain.Node, ctx *Context) (bool, error) {
	if node == nil {
		return false, ErrNilNode
	}

	if node.Condition != "" {
		ok, err := c.cel.Eval(node.Condition, ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return EvalDisplayConds(node.DisplayConds, ctx)
}
