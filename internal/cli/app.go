package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Pagebind/internal/engine"
)

// NewAppCmd создаёт группу команд для приложений на сервере.
func NewAppCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "app",
		Short: "Manage apps on a pagebind-runtime server",
	}

	cmd.AddCommand(
		newAppListCmd(clientFn, outputFn),
		newAppCreateCmd(clientFn, outputFn),
		newAppShowCmd(clientFn, outputFn),
		newAppUpdateCmd(clientFn, outputFn),
		newAppDeleteCmd(clientFn, outputFn),
		newAppTreeCmd(clientFn, outputFn),
		newAppSourcesCmd(clientFn, outputFn),
		newAppSetCmd(clientFn, outputFn),
		newAppFetchCmd(clientFn, outputFn),
	)

	return cmd
}

var appHeaders = []string{"ID", "NAME", "CREATED", "UPDATED"}

func appRow(a *AppResponse) []string {
	return []string{a.ID, a.Name, a.CreatedAt, a.UpdatedAt}
}

func newAppListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all apps",
		RunE: func(cmd *cobra.Command, args []string) error {
			apps, err := clientFn().ListApps()
			if err != nil {
				return err
			}

			rows := make([][]string, len(apps))
			for i := range apps {
				rows[i] = appRow(&apps[i])
			}
			outputFn().Print(appHeaders, rows, apps)
			return nil
		},
	}
}

func newAppCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create FILE",
		Short: "Upload an app DSL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			dsl, err := readDSL(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			app, err := clientFn().CreateApp(name, dsl)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("App created: %s", app.ID))
			out.Print(appHeaders, [][]string{appRow(app)}, app)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "App name (default: file name)")
	return cmd
}

func newAppShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show app DSL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := clientFn().GetApp(args[0])
			if err != nil {
				return err
			}
			outputFn().JSON(app)
			return nil
		},
	}
}

func newAppUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "update ID FILE",
		Short: "Replace app DSL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			dsl, err := readDSL(args[1])
			if err != nil {
				return err
			}

			app, err := clientFn().UpdateApp(args[0], dsl)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("App updated: %s", app.ID))
			return nil
		},
	}
}

func newAppDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteApp(args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("App deleted: %s", args[0]))
			return nil
		},
	}
}

func newAppTreeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var active bool

	cmd := &cobra.Command{
		Use:   "tree ID",
		Short: "Show the live node tree of an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := clientFn().GetTree(args[0], active)
			if err != nil {
				return err
			}
			outputFn().Print([]string{"NODE", "TYPE", "VISIBLE", "PROPS"}, treeRows(tree.Items), tree)
			return nil
		},
	}

	cmd.Flags().BoolVar(&active, "active", false, "Show only visible nodes")
	return cmd
}

func newAppSourcesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "sources ID",
		Short: "Show data sources of a live app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := clientFn().ListDataSources(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(sources))
			for i, s := range sources {
				data, _ := json.Marshal(s.Data)
				rows[i] = []string{s.ID, s.Type, s.NextRefresh, string(data)}
			}
			outputFn().Print([]string{"ID", "TYPE", "NEXT REFRESH", "DATA"}, rows, sources)
			return nil
		},
	}
}

func newAppSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "set ID SOURCE[.PATH]=JSON",
		Short: "Change data of a live app data source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, path, value, err := parseAssignment(args[1])
			if err != nil {
				return err
			}

			req := UpdateDataSourceRequest{Data: value}
			if len(path) > 0 {
				req = UpdateDataSourceRequest{Path: path, Value: value}
			}

			change, err := clientFn().UpdateDataSource(args[0], sourceID, req)
			if err != nil {
				return err
			}
			printChange(outputFn(), change)
			return nil
		},
	}
}

func newAppFetchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch ID SOURCE",
		Short: "Reload an http data source of a live app",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			change, err := clientFn().FetchDataSource(args[0], args[1])
			if err != nil {
				return err
			}
			printChange(outputFn(), change)
			return nil
		},
	}
}

func printChange(out *Output, change *ChangeResponse) {
	rows := make([][]string, len(change.Events))
	for i, ev := range change.Events {
		ids := make([]string, len(ev.Nodes))
		for j, n := range ev.Nodes {
			ids[j] = n.ID
		}
		rows[i] = []string{ev.SourceID, ev.Kind, strings.Join(ids, ",")}
	}
	out.Print([]string{"SOURCE", "KIND", "NODES"}, rows, change)
}

// readDSL читает файл DSL и возвращает его в JSON.
// YAML файлы конвертируются с сохранением порядка таблиц зависимостей.
func readDSL(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		app, err := engine.ParseAppYAML(data)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(app)
		if err != nil {
			return nil, fmt.Errorf("failed to convert yaml: %w", err)
		}
		return out, nil
	default:
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", path)
		}
		return data, nil
	}
}
