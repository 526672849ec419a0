// Package tree содержит операции над деревом узлов страницы.
//
// Все функции работают с каноничным деревом на месте и не копируют узлы,
// кроме ActiveTree, который строит отдельное представление для рендеринга.
package tree

import "github.com/shaiso/Pagebind/internal/domain"

// Walk обходит дерево в pre-order. Если fn возвращает false, обход
// потомков текущего узла пропускается.
func Walk(items []*domain.Node, fn func(node, parent *domain.Node) bool) {
	walk(items, nil, fn)
}

func walk(items []*domain.Node, parent *domain.Node, fn func(node, parent *domain.Node) bool) {
	for _, node := range items {
		if node == nil {
			continue
		}
		if fn(node, parent) {
			walk(node.Items, node, fn)
		}
	}
}

// Find возвращает узел по ID или nil.
func Find(items []*domain.Node, id string) *domain.Node {
	for _, node := range items {
		if node == nil {
			continue
		}
		if node.ID == id {
			return node
		}
		if found := Find(node.Items, id); found != nil {
			return found
		}
	}
	return nil
}

// FindParent возвращает родителя узла. Для корневых узлов — nil, false.
func FindParent(items []*domain.Node, id string) (*domain.Node, bool) {
	var parent *domain.Node
	found := false

	Walk(items, func(node, p *domain.Node) bool {
		if found {
			return false
		}
		if node.ID == id {
			parent = p
			found = true
			return false
		}
		return true
	})

	return parent, found && parent != nil
}

// GetNodes возвращает узлы по списку ID в том же порядке.
// ID, которых нет в дереве, пропускаются.
func GetNodes(ids []string, items []*domain.Node) []*domain.Node {
	index := make(map[string]*domain.Node)
	Walk(items, func(node, _ *domain.Node) bool {
		if _, exists := index[node.ID]; !exists {
			index[node.ID] = node
		}
		return true
	})

	nodes := make([]*domain.Node, 0, len(ids))
	for _, id := range ids {
		if node, ok := index[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// ReplaceChild ставит node в позицию узла с тем же ID.
// Узел остаётся в Items родителя независимо от CondResult: видимость
// определяется ActiveChildren. Возвращает false, если позиция не найдена.
func ReplaceChild(node *domain.Node, items []*domain.Node) bool {
	if node == nil {
		return false
	}
	for i, child := range items {
		if child == nil {
			continue
		}
		if child.ID == node.ID {
			items[i] = node
			return true
		}
		if ReplaceChild(node, child.Items) {
			return true
		}
	}
	return false
}

// ActiveChildren возвращает видимые дочерние узлы.
func ActiveChildren(items []*domain.Node) []*domain.Node {
	active := make([]*domain.Node, 0, len(items))
	for _, node := range items {
		if node != nil && node.Visible() {
			active = append(active, node)
		}
	}
	return active
}

// ActiveTree возвращает глубокую копию дерева без скрытых узлов.
func ActiveTree(items []*domain.Node) []*domain.Node {
	active := ActiveChildren(items)
	out := make([]*domain.Node, 0, len(active))
	for _, node := range active {
		c := node.Clone()
		c.Items = ActiveTree(node.Items)
		out = append(out, c)
	}
	return out
}

// Count возвращает количество узлов в дереве.
func Count(items []*domain.Node) int {
	n := 0
	Walk(items, func(_, _ *domain.Node) bool {
		n++
		return true
	})
	return n
}
