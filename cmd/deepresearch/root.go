package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/viant/deepresearch"
)

var rootFlags struct {
	config string
}

var rootCmd = &cobra.Command{
	Use:   "deepresearch",
	Short: "Queue research requests and turn them into cited reports",
	Long: `deepresearch clarifies research requests, queues them on a kanban board and
investigates one at a time across web, academic and code sources.

Commands other than serve and chat need a durable store (store.kind fs or
sqlite) so that state survives between invocations.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", os.Getenv("DEEPRESEARCH_CONFIG"), "YAML config location (file path or afs URL)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(requeueCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.Version = deepresearch.Version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
