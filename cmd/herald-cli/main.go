// Herald CLI — инструмент командной строки для управления
// расписаниями публикаций через HTTP API.
//
// Использование:
//
//	herald [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	brand     Регистрация брендов
//	campaign  Регистрация кампаний
//	post      Регистрация постов
//	schedule  Управление schedules (create, list, show, update, trigger, attempts)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Herald/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "herald",
		Short:         "Herald CLI — campaign post scheduling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("HERALD_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL (env HERALD_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewBrandCmd(clientFn, outputFn),
		cli.NewCampaignCmd(clientFn, outputFn),
		cli.NewPostCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
