package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Pagebind/internal/domain"
)

func TestCELEvaluator_Eval(t *testing.T) {
	ev, err := NewCELEvaluator()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := NewContext(map[string]any{
		"user":  map[string]any{"name": "Ann", "admin": true},
		"flags": map[string]any{"promo": false},
	})

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"bool field", "ds.user.admin", true},
		{"string compare", `ds.user.name == "Ann"`, true},
		{"negation", "!ds.flags.promo", true},
		{"and", `ds.user.admin && ds.flags.promo`, false},
		{"has macro", "has(ds.user.email)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Eval(tt.expr, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCELEvaluator_Errors(t *testing.T) {
	ev, err := NewCELEvaluator()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := NewContext(map[string]any{"user": map[string]any{"name": "Ann"}})

	if _, err := ev.Eval("ds.user.name ==", ctx); !errors.Is(err, ErrConditionCompile) {
		t.Errorf("expected ErrConditionCompile, got %v", err)
	}
	if _, err := ev.Eval("ds.user.name", ctx); !errors.Is(err, ErrConditionNotBool) {
		t.Errorf("expected ErrConditionNotBool, got %v", err)
	}
	if _, err := ev.Eval("ds.cart.empty", ctx); !errors.Is(err, ErrConditionEval) {
		t.Errorf("expected ErrConditionEval, got %v", err)
	}
}

func TestCELEvaluator_Check(t *testing.T) {
	ev, err := NewCELEvaluator()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ev.Check("ds.user.admin"); err != nil {
		t.Errorf("dyn expression should pass: %v", err)
	}
	if err := ev.Check("1 + 2"); !errors.Is(err, ErrConditionNotBool) {
		t.Errorf("expected ErrConditionNotBool, got %v", err)
	}
}

func TestConditionCompiler_Evaluate(t *testing.T) {
	c, err := NewConditionCompiler()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := NewContext(map[string]any{"user": map[string]any{"admin": true, "role": "admin"}})

	node := &domain.Node{
		ID:        "n",
		Condition: "ds.user.admin",
		DisplayConds: []domain.CondGroup{{Cond: []domain.Cond{
			{Field: []string{"user", "role"}, Op: OpIs, Value: "guest"},
		}}},
	}

	got, err := c.Evaluate(node, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("both condition and displayConds must hold")
	}
	if node.CondResult != nil {
		t.Error("evaluate should not change the node")
	}

	node.DisplayConds[0].Cond[0].Value = "admin"
	if got, _ := c.Evaluate(node, ctx); !got {
		t.Error("expected visible node")
	}

	if got, _ := c.Evaluate(&domain.Node{ID: "plain"}, ctx); !got {
		t.Error("node without conditions should be visible")
	}

	if _, err := c.Evaluate(nil, ctx); !errors.Is(err, ErrNilNode) {
		t.Errorf("expected ErrNilNode, got %v", err)
	}
}
