package binding

import (
	"context"
	"testing"

	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/engine"
	"github.com/shaiso/Pagebind/internal/tree"
)

const shopDSL = `{
  "id": "shop",
  "items": [
    {"id": "page", "type": "page", "items": [
      {"id": "greeting", "type": "text", "props": {"text": "Hi, {{ .DS.user.name }}"}},
      {"id": "admin-panel", "type": "container",
       "displayConds": [{"cond": [{"field": ["user", "role"], "op": "is", "value": "admin"}]}]},
      {"id": "cart-badge", "type": "badge", "props": {"count": "{{ .DS.cart.count }}"},
       "condition": "ds.cart.count > 0.0"}
    ]}
  ],
  "dataSources": [
    {"id": "user", "type": "base", "fields": [
      {"name": "name", "type": "string", "defaultValue": "guest"},
      {"name": "role", "type": "string", "defaultValue": "viewer"}
    ]},
    {"id": "cart", "type": "base", "fields": [{"name": "count", "type": "number"}]}
  ],
  "dataSourceDeps": {
    "user": {"greeting": {"keys": ["text"]}},
    "cart": {"cart-badge": {"keys": ["count"]}}
  },
  "dataSourceCondDeps": {
    "user": {"admin-panel": {}},
    "cart": {"cart-badge": {}}
  }
}`

func loadShop(t *testing.T) *domain.App {
	t.Helper()
	app, err := engine.ParseApp([]byte(shopDSL))
	if err != nil {
		t.Fatalf("parse dsl: %v", err)
	}
	return app
}

func TestCreateManager_NoDataSources(t *testing.T) {
	app := &domain.App{Items: []*domain.Node{{ID: "n"}}, DataSourceDeps: deps("S1", "n")}

	b, err := CreateManager(context.Background(), app, domain.PlatformPreview, datasource.HTTPOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != nil {
		t.Error("expected nil binder without data sources")
	}

	b, err = CreateManager(context.Background(), nil, domain.PlatformPreview, datasource.HTTPOptions{})
	if b != nil || err != nil {
		t.Errorf("expected nil, nil for nil app, got %v, %v", b, err)
	}
}

func TestCreateManager_EndToEnd(t *testing.T) {
	app := loadShop(t)

	b, err := CreateManager(context.Background(), app, domain.PlatformRuntime, datasource.HTTPOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	greeting := tree.Find(app.Items, "greeting")
	if greeting.Props["text"] != "Hi, guest" {
		t.Errorf("unexpected greeting after init: %v", greeting.Props["text"])
	}
	if greeting.Bound["text"] != "Hi, {{ .DS.user.name }}" {
		t.Errorf("template should be tracked: %v", greeting.Bound)
	}
	if p := tree.Find(app.Items, "admin-panel"); p.Visible() {
		t.Error("admin panel should be hidden for viewer")
	}
	if badge := tree.Find(app.Items, "cart-badge"); badge.Visible() {
		t.Error("badge should be hidden for empty cart")
	}

	var events []datasource.UpdateEvent
	b.Manager().OnUpdate(func(_ context.Context, ev datasource.UpdateEvent) {
		events = append(events, ev)
	})

	err = b.Manager().SetData(context.Background(), "user", map[string]any{"name": "Ann", "role": "admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != datasource.UpdateKindCondition || !events[0].Nodes[0].Visible() {
		t.Errorf("admin panel copy should be visible: %+v", events[0])
	}
	if tree.Find(app.Items, "admin-panel").Visible() {
		t.Error("canonical admin panel should stay hidden")
	}
	if events[1].Nodes[0] != greeting || greeting.Props["text"] != "Hi, Ann" {
		t.Errorf("greeting should be recompiled in place: %v", greeting.Props["text"])
	}

	events = nil
	if err := b.Manager().SetValue(context.Background(), "cart", []string{"count"}, 2.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].Nodes[0].Visible() {
		t.Error("badge copy should be visible")
	}
	if events[1].Nodes[0].Props["count"] != "2" {
		t.Errorf("unexpected badge count: %v", events[1].Nodes[0].Props["count"])
	}
}

func TestCreateManager_CustomAdapters(t *testing.T) {
	app := newApp()
	app.DataSourceDeps = deps("S1", "N1")

	b, err := CreateManager(context.Background(), app, domain.PlatformPreview, datasource.HTTPOptions{},
		WithValueCompiler(resolver()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var events []datasource.UpdateEvent
	b.Manager().OnUpdate(func(_ context.Context, ev datasource.UpdateEvent) {
		events = append(events, ev)
	})

	if err := b.Manager().SetData(context.Background(), "S1", "anything"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 1 || events[0].Nodes[0].Props["text"] != "hello-resolved-resolved" {
		t.Errorf("unexpected events: %+v", events)
	}

	b.Close()
	events = nil
	if err := b.Manager().SetData(context.Background(), "S1", "again"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Error("closed binder should not react to changes")
	}
}
