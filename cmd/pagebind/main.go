// Pagebind CLI — проверка и пересчёт DSL приложений, управление
// приложениями на сервере pagebind-runtime.
//
// Использование:
//
//	pagebind [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	validate  Проверка файла DSL
//	deps      Таблица зависимостей узлов от источников
//	render    Пересчёт дерева с изменениями источников
//	app       Управление приложениями на сервере
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Pagebind/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "pagebind",
		Short:         "Pagebind CLI — data bindings for page DSL",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8090", "pagebind-runtime API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewValidateCmd(outputFn),
		cli.NewDepsCmd(outputFn),
		cli.NewRenderCmd(outputFn),
		cli.NewAppCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
