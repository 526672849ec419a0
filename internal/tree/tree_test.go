package tree

import (
	"testing"

	"github.com/shaiso/Pagebind/internal/domain"
)

// sampleTree строит:
//
//	page
//	├── header
//	│   └── title
//	└── banner
func sampleTree() []*domain.Node {
	return []*domain.Node{
		{
			ID:   "page",
			Type: "page",
			Items: []*domain.Node{
				{ID: "header", Items: []*domain.Node{{ID: "title", Props: map[string]any{"text": "Hi"}}}},
				{ID: "banner"},
			},
		},
	}
}

func TestFind(t *testing.T) {
	items := sampleTree()

	if n := Find(items, "title"); n == nil || n.Props["text"] != "Hi" {
		t.Errorf("expected to find title, got %+v", n)
	}
	if n := Find(items, "missing"); n != nil {
		t.Errorf("expected nil, got %+v", n)
	}
}

func TestFindParent(t *testing.T) {
	items := sampleTree()

	parent, ok := FindParent(items, "title")
	if !ok || parent.ID != "header" {
		t.Errorf("expected header, got %+v", parent)
	}

	if _, ok := FindParent(items, "page"); ok {
		t.Error("root node has no parent")
	}
}

func TestGetNodes(t *testing.T) {
	items := sampleTree()

	nodes := GetNodes([]string{"banner", "stale", "title"}, items)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != "banner" || nodes[1].ID != "title" {
		t.Errorf("unexpected order: %s, %s", nodes[0].ID, nodes[1].ID)
	}
}

func TestReplaceChild(t *testing.T) {
	items := sampleTree()

	replacement := &domain.Node{ID: "title", Props: map[string]any{"text": "Bye"}}
	if !ReplaceChild(replacement, items) {
		t.Fatal("expected replace to succeed")
	}
	if Find(items, "title") != replacement {
		t.Error("replacement should be placed in the tree")
	}

	if ReplaceChild(&domain.Node{ID: "nope"}, items) {
		t.Error("replace of unknown node should fail")
	}
	if ReplaceChild(nil, items) {
		t.Error("replace of nil should fail")
	}
}

func TestReplaceChild_Root(t *testing.T) {
	items := sampleTree()
	page := &domain.Node{ID: "page"}

	if !ReplaceChild(page, items) {
		t.Fatal("expected root replace to succeed")
	}
	if items[0] != page {
		t.Error("root slot should hold the new node")
	}
}

func TestActiveChildrenAndTree(t *testing.T) {
	items := sampleTree()
	banner := Find(items, "banner")
	banner.SetCondResult(false)
	header := Find(items, "header")
	header.SetCondResult(true)

	page := items[0]
	active := ActiveChildren(page.Items)
	if len(active) != 1 || active[0].ID != "header" {
		t.Fatalf("expected only header to be active, got %d", len(active))
	}

	// banner остаётся в Items
	if len(page.Items) != 2 {
		t.Error("hidden node should stay in Items")
	}

	view := ActiveTree(items)
	if Count(view) != 3 {
		t.Errorf("expected 3 visible nodes, got %d", Count(view))
	}
	if Find(view, "banner") != nil {
		t.Error("hidden node should not be in active tree")
	}
	if Find(view, "title") == Find(items, "title") {
		t.Error("active tree should be a copy")
	}
}
