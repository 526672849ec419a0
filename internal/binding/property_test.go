package binding

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/tree"
)

// fixture — случайное приложение: узлы n0..n5 на одной странице
// (часть id в таблицах ссылается на отсутствующие n6..n7),
// источники s0..s3.
type fixture struct {
	app     *domain.App
	binder  *Binder
	rec     *recorder
	visible map[string]bool
}

func buildFixture(valuePairs, condPairs []int, visibleMask uint8) (*fixture, error) {
	page := &domain.Node{ID: "page"}
	for i := 0; i < 6; i++ {
		page.Items = append(page.Items, &domain.Node{
			ID:    fmt.Sprintf("n%d", i),
			Props: map[string]any{"text": fmt.Sprintf("t%d", i)},
		})
	}

	toTable := func(pairs []int) domain.DepTable {
		var table domain.DepTable
		for _, p := range pairs {
			source := fmt.Sprintf("s%d", p%4)
			node := fmt.Sprintf("n%d", (p/4)%8)
			table = table.Add(source, domain.DepTarget{NodeID: node})
		}
		return table
	}

	f := &fixture{
		app: &domain.App{
			Items:              []*domain.Node{page},
			DataSourceDeps:     toTable(valuePairs),
			DataSourceCondDeps: toTable(condPairs),
		},
		rec:     &recorder{},
		visible: make(map[string]bool),
	}
	for i := 0; i < 8; i++ {
		f.visible[fmt.Sprintf("n%d", i)] = visibleMask&(1<<i) != 0
	}

	b, err := New(context.Background(), Config{
		App:      f.app,
		Platform: domain.PlatformPreview,
		Conditions: ConditionFunc(func(n *domain.Node) (bool, error) {
			return f.visible[n.ID], nil
		}),
		Values:  resolver(),
		Emitter: f.rec,
	})
	if err != nil {
		return nil, err
	}
	f.binder = b
	return f, nil
}

func pairsGen() gopter.Gen {
	return gen.SliceOfN(6, gen.IntRange(0, 31))
}

func TestProperty_EmissionCountAndOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("events = [condition?, value?] per declared tables", prop.ForAll(
		func(valuePairs, condPairs []int, mask uint8, source int) bool {
			f, err := buildFixture(valuePairs, condPairs, mask)
			if err != nil {
				return false
			}
			id := fmt.Sprintf("s%d", source)
			_, hasCond := f.app.DataSourceCondDeps.Get(id)
			_, hasValue := f.app.DataSourceDeps.Get(id)

			f.binder.HandleChange(context.Background(), id)

			var want []datasource.UpdateKind
			if hasCond {
				want = append(want, datasource.UpdateKindCondition)
			}
			if hasValue {
				want = append(want, datasource.UpdateKindValue)
			}

			if len(f.rec.events) != len(want) {
				return false
			}
			for i, ev := range f.rec.events {
				if ev.Kind != want[i] || ev.SourceID != id {
					return false
				}
			}
			return true
		},
		pairsGen(), pairsGen(), gen.UInt8(), gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

func TestProperty_ConditionCopiesAreDetached(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("condition payload is copies with adapter output, tree untouched", prop.ForAll(
		func(condPairs []int, initMask, changeMask uint8, source int) bool {
			f, err := buildFixture(nil, condPairs, initMask)
			if err != nil {
				return false
			}

			var before []*bool
			for _, n := range tree.Find(f.app.Items, "page").Items {
				before = append(before, n.CondResult)
			}

			for i := 0; i < 8; i++ {
				f.visible[fmt.Sprintf("n%d", i)] = changeMask&(1<<i) != 0
			}

			id := fmt.Sprintf("s%d", source)
			result := f.binder.HandleChange(context.Background(), id)
			if result.Condition == nil {
				return len(f.rec.events) == 0
			}

			wantIDs := make([]string, 0)
			for _, nid := range f.binder.Index().ConditionNodes(id) {
				if tree.Find(f.app.Items, nid) != nil {
					wantIDs = append(wantIDs, nid)
				}
			}
			if !reflect.DeepEqual(result.Condition.NodeIDs(), wantIDs) {
				return false
			}

			for _, cp := range result.Condition.Nodes {
				if cp == tree.Find(f.app.Items, cp.ID) {
					return false
				}
				if cp.CondResult == nil || *cp.CondResult != f.visible[cp.ID] {
					return false
				}
			}

			for i, n := range tree.Find(f.app.Items, "page").Items {
				if n.CondResult != before[i] {
					return false
				}
			}
			return true
		},
		pairsGen(), gen.UInt8(), gen.UInt8(), gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}

func TestProperty_ValueNodesAreCanonical(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("value payload nodes are the tree nodes, recompiled once per change", prop.ForAll(
		func(valuePairs []int, source int, repeats int) bool {
			f, err := buildFixture(valuePairs, nil, 0)
			if err != nil {
				return false
			}
			id := fmt.Sprintf("s%d", source)

			for r := 0; r < repeats; r++ {
				f.binder.HandleChange(context.Background(), id)
			}
			if len(f.rec.events) != repeats && len(f.rec.events) != 0 {
				return false
			}

			for _, ev := range f.rec.events {
				for _, n := range ev.Nodes {
					if tree.Find(f.app.Items, n.ID) != n {
						return false
					}
				}
			}

			// каждый узел перекомпилирован один раз при инициализации
			// и по разу на каждое изменение источника
			for _, n := range tree.Find(f.app.Items, "page").Items {
				count := 0
				for _, vid := range f.binder.Index().ValueNodeIDs() {
					if vid == n.ID {
						count = 1
					}
				}
				for _, vid := range f.binder.Index().ValueNodes(id) {
					if vid == n.ID {
						count += repeats
					}
				}
				want := n.ID[1:]
				want = "t" + want
				for c := 0; c < count; c++ {
					want += "-resolved"
				}
				if n.Props["text"] != want {
					return false
				}
			}
			return true
		},
		pairsGen(), gen.IntRange(0, 3), gen.IntRange(1, 3),
	))

	properties.TestingRun(t)
}
