package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Pagebind/internal/binding"
	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/engine"
	"github.com/shaiso/Pagebind/internal/telemetry"
	"github.com/shaiso/Pagebind/internal/tree"
)

// NewValidateCmd создаёт команду проверки DSL.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate an app DSL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			app, err := engine.ParseAppFile(args[0])
			if err != nil {
				return err
			}

			summary := map[string]any{
				"valid":        true,
				"nodes":        tree.Count(app.Items),
				"data_sources": len(app.DataSources),
				"value_deps":   len(app.DataSourceDeps.NodeIDs()),
				"cond_deps":    len(app.DataSourceCondDeps.NodeIDs()),
			}
			if out.JSONMode() {
				out.JSON(summary)
				return nil
			}

			out.Success(fmt.Sprintf("%s is valid: %d nodes, %d data sources",
				args[0], summary["nodes"], summary["data_sources"]))
			return nil
		},
	}
}

// depRow — строка вывода команды deps.
type depRow struct {
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"`
	NodeID   string `json:"node_id"`
	Stale    bool   `json:"stale"`
}

// NewDepsCmd создаёт команду вывода таблицы зависимостей.
func NewDepsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deps FILE",
		Short: "Show which nodes depend on which data sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			app, err := engine.ParseAppFile(args[0])
			if err != nil {
				return err
			}

			index := binding.NewIndex(app.DataSourceDeps, app.DataSourceCondDeps)
			var deps []depRow
			for _, sourceID := range index.Sources() {
				for _, id := range index.ConditionNodes(sourceID) {
					deps = append(deps, depRow{sourceID, string(datasource.UpdateKindCondition), id, tree.Find(app.Items, id) == nil})
				}
				for _, id := range index.ValueNodes(sourceID) {
					deps = append(deps, depRow{sourceID, string(datasource.UpdateKindValue), id, tree.Find(app.Items, id) == nil})
				}
			}

			rows := make([][]string, len(deps))
			for i, d := range deps {
				rows[i] = []string{d.SourceID, d.Kind, d.NodeID, strconv.FormatBool(d.Stale)}
			}
			out.Print([]string{"SOURCE", "KIND", "NODE", "STALE"}, rows, deps)
			return nil
		},
	}
}

// renderResult — результат команды render в JSON режиме.
type renderResult struct {
	Platform   string                  `json:"platform"`
	Events     []datasource.UpdateEvent `json:"events"`
	Items      []*domain.Node          `json:"items"`
	InitErrors []string                `json:"init_errors,omitempty"`
}

// NewRenderCmd создаёт команду пересчёта дерева.
//
// --set применяется по порядку: "user={...}" заменяет данные источника,
// "user.name=\"Ann\"" записывает значение по пути. Значение, которое не
// разбирается как JSON, записывается строкой.
func NewRenderCmd(outputFn func() *Output) *cobra.Command {
	var (
		platform string
		sets     []string
		active   bool
		fetch    bool
	)

	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Compile an app DSL and apply data source changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			app, err := engine.ParseAppFile(args[0])
			if err != nil {
				return err
			}

			result, err := render(ctx, app, platform, sets, fetch)
			if err != nil {
				return err
			}

			if active {
				result.Items = tree.ActiveTree(app.Items)
			} else {
				result.Items = app.Items
			}

			if out.JSONMode() {
				out.JSON(result)
				return nil
			}

			for _, msg := range result.InitErrors {
				out.Error(msg)
			}
			if len(result.Events) > 0 {
				rows := make([][]string, len(result.Events))
				for i, ev := range result.Events {
					rows[i] = []string{ev.SourceID, string(ev.Kind), strings.Join(ev.NodeIDs(), ",")}
				}
				out.Table([]string{"SOURCE", "KIND", "NODES"}, rows)
			}
			out.Table([]string{"NODE", "TYPE", "VISIBLE", "PROPS"}, treeRows(result.Items))
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", domain.PlatformPreview, "Platform: editor, preview or runtime")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Data source change: id=JSON or id.path=JSON (repeatable)")
	cmd.Flags().BoolVar(&active, "active", false, "Show only visible nodes")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Fetch http data sources with autoFetch before applying changes")

	return cmd
}

// render строит Binder над app и применяет изменения sets по порядку.
// Дерево app пересчитывается на месте.
func render(ctx context.Context, app *domain.App, platform string, sets []string, fetch bool) (*renderResult, error) {
	result := &renderResult{Platform: platform, Events: []datasource.UpdateEvent{}}

	b, err := binding.CreateManager(ctx, app, platform, datasource.HTTPOptions{}, binding.WithLogger(telemetry.Discard()))
	if err != nil {
		return nil, err
	}
	if b == nil {
		if len(sets) > 0 {
			return nil, fmt.Errorf("--set: app has no data sources")
		}
		return result, nil
	}
	defer b.Close()

	for _, err := range b.InitErrors() {
		result.InitErrors = append(result.InitErrors, err.Error())
	}

	m := b.Manager()
	m.OnUpdate(func(_ context.Context, ev datasource.UpdateEvent) {
		result.Events = append(result.Events, ev)
	})

	if fetch {
		if err := m.Init(ctx); err != nil {
			return nil, err
		}
	}

	for _, set := range sets {
		sourceID, path, value, err := parseAssignment(set)
		if err != nil {
			return nil, err
		}
		if len(path) == 0 {
			err = m.SetData(ctx, sourceID, value)
		} else {
			err = m.SetValue(ctx, sourceID, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", set, err)
		}
	}

	return result, nil
}

// parseAssignment разбирает "id[.path...]=value".
func parseAssignment(s string) (string, []string, any, error) {
	target, raw, ok := strings.Cut(s, "=")
	if !ok || target == "" {
		return "", nil, nil, fmt.Errorf("invalid --set %q: expected id=JSON", s)
	}

	parts := strings.Split(target, ".")
	for _, p := range parts {
		if p == "" {
			return "", nil, nil, fmt.Errorf("invalid --set %q: empty path segment", s)
		}
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	return parts[0], parts[1:], value, nil
}

// treeRows раскладывает дерево в строки таблицы с отступом по глубине.
func treeRows(items []*domain.Node) [][]string {
	var rows [][]string
	var walk func(nodes []*domain.Node, depth int)
	walk = func(nodes []*domain.Node, depth int) {
		for _, n := range nodes {
			props := ""
			if len(n.Props) > 0 {
				data, _ := json.Marshal(n.Props)
				props = string(data)
			}
			rows = append(rows, []string{
				strings.Repeat("  ", depth) + n.ID,
				n.Type,
				strconv.FormatBool(n.Visible()),
				props,
			})
			walk(n.Items, depth+1)
		}
	}
	walk(items, 0)
	return rows
}
