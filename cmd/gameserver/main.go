package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "gameserver",
		Short: "gameserver - deterministic event-sourced game server",
		Long:  "A host for versioned, deterministic game modules: append actions to an ordered log, fold them into state inside a sandboxed module process, and subscribe to live query results.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, flags and env override)")

	rootCmd.AddCommand(
		daemonCmd(),
		actCmd(),
		queryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
