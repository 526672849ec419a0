package binding

import "github.com/shaiso/Pagebind/internal/domain"

// Index — индекс зависимостей узлов от источников данных.
// Строится один раз и далее только читается.
type Index struct {
	value   map[string][]string
	cond    map[string][]string
	sources []string

	valueNodes []string
	condNodes  []string
}

// NewIndex строит индекс из таблиц зависимостей. Любая из таблиц может быть nil.
func NewIndex(valueDeps, condDeps domain.DepTable) *Index {
	idx := &Index{
		value:      make(map[string][]string, len(valueDeps)),
		cond:       make(map[string][]string, len(condDeps)),
		valueNodes: valueDeps.NodeIDs(),
		condNodes:  condDeps.NodeIDs(),
	}

	seen := make(map[string]bool)
	add := func(table domain.DepTable, into map[string][]string) {
		for _, sd := range table {
			into[sd.SourceID] = sd.NodeIDs()
			if !seen[sd.SourceID] {
				seen[sd.SourceID] = true
				idx.sources = append(idx.sources, sd.SourceID)
			}
		}
	}
	add(condDeps, idx.cond)
	add(valueDeps, idx.value)

	return idx
}

// ValueNodes возвращает узлы с привязанными к источнику свойствами.
func (i *Index) ValueNodes(sourceID string) []string {
	return i.value[sourceID]
}

// ConditionNodes возвращает узлы, видимость которых зависит от источника.
func (i *Index) ConditionNodes(sourceID string) []string {
	return i.cond[sourceID]
}

// Lookup возвращает все узлы, зависящие от источника, без повторов:
// сначала условные, затем привязки значений.
// Для неизвестного источника результат пустой.
func (i *Index) Lookup(sourceID string) []string {
	cond, value := i.cond[sourceID], i.value[sourceID]
	if len(value) == 0 {
		return cond
	}
	if len(cond) == 0 {
		return value
	}

	seen := make(map[string]bool, len(cond)+len(value))
	out := make([]string, 0, len(cond)+len(value))
	for _, ids := range [][]string{cond, value} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Sources возвращает источники, упомянутые в любой из таблиц.
func (i *Index) Sources() []string {
	return append([]string(nil), i.sources...)
}

// ValueNodeIDs — объединение узлов таблицы значений.
func (i *Index) ValueNodeIDs() []string {
	return i.valueNodes
}

// ConditionNodeIDs — объединение узлов таблицы условий.
func (i *Index) ConditionNodeIDs() []string {
	return i.condNodes
}
