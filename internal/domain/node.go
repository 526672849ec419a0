package domain

// Node — узел дерева страницы.
//
// Узлы образуют дерево через Items. Identity узла стабильна при пересчёте
// value bindings (тот же указатель, изменённый на месте). Пересчёт условий
// отдаёт наружу копию (Clone), каноничный узел при этом не трогается.
type Node struct {
	// ID — стабильный идентификатор узла в рамках приложения.
	ID string `json:"id" yaml:"id"`

	// Type — тип компонента: "page", "container", "text", "button" и т.д.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Name — человекочитаемое имя узла.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Props — свойства узла. Строки с выражениями {{ ... }} считаются
	// привязанными к источникам данных и вычисляются BindingCompiler.
	Props map[string]any `json:"props,omitempty" yaml:"props,omitempty"`

	// DisplayConds — группы условий отображения.
	// Группы объединяются через OR, условия внутри группы — через AND.
	DisplayConds []CondGroup `json:"displayConds,omitempty" yaml:"displayConds,omitempty"`

	// Condition — CEL выражение видимости, например: ds.user.age >= 18.0
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// CondResult — последний вычисленный результат условия.
	// nil — узел не зависит от условий (всегда включён).
	CondResult *bool `json:"condResult,omitempty" yaml:"condResult,omitempty"`

	// Items — дочерние узлы (все авторские, включая скрытые условием).
	Items []*Node `json:"items,omitempty" yaml:"items,omitempty"`

	// Bound — исходные шаблоны привязанных свойств (ключ → авторское значение).
	// Заполняется при первой компиляции, в DSL не сериализуется.
	Bound map[string]any `json:"-" yaml:"-"`
}

// CondGroup — группа условий, объединённых через AND.
type CondGroup struct {
	Cond []Cond `json:"cond" yaml:"cond"`
}

// Cond — одно условие отображения.
type Cond struct {
	// Field — путь к полю: [sourceID, key, nested_key, ...].
	Field []string `json:"field" yaml:"field"`

	// Op — оператор: "is", "not", "=", "!=", ">", ">=", "<", "<=",
	// "between", "not_between", "include", "not_include".
	Op string `json:"op" yaml:"op"`

	// Value — значение для сравнения.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Range — диапазон для between / not_between.
	Range []float64 `json:"range,omitempty" yaml:"range,omitempty"`
}

// Visible сообщает, включён ли узел в активные дочерние элементы родителя.
func (n *Node) Visible() bool {
	return n.CondResult == nil || *n.CondResult
}

// SetCondResult записывает результат условия.
func (n *Node) SetCondResult(v bool) {
	n.CondResult = &v
}

// Clone возвращает глубокую независимую копию узла вместе с потомками.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	c := &Node{
		ID:        n.ID,
		Type:      n.Type,
		Name:      n.Name,
		Condition: n.Condition,
		Props:     cloneMap(n.Props),
		Bound:     cloneMap(n.Bound),
	}

	if n.CondResult != nil {
		c.SetCondResult(*n.CondResult)
	}

	if n.DisplayConds != nil {
		c.DisplayConds = make([]CondGroup, len(n.DisplayConds))
		for i, g := range n.DisplayConds {
			c.DisplayConds[i] = g.clone()
		}
	}

	if n.Items != nil {
		c.Items = make([]*Node, len(n.Items))
		for i, child := range n.Items {
			c.Items[i] = child.Clone()
		}
	}

	return c
}

func (g CondGroup) clone() CondGroup {
	if g.Cond == nil {
		return CondGroup{}
	}
	conds := make([]Cond, len(g.Cond))
	for i, c := range g.Cond {
		conds[i] = Cond{
			Field: append([]string(nil), c.Field...),
			Op:    c.Op,
			Value: CloneValue(c.Value),
		}
		if c.Range != nil {
			conds[i].Range = append([]float64(nil), c.Range...)
		}
	}
	return CondGroup{Cond: conds}
}

// CloneValue рекурсивно копирует значения, полученные из JSON/YAML.
// Скалярные значения возвращаются как есть.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
