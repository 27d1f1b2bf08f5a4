package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	redisAddr  string
	redisPass  string
	redisDB    int
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vortexd",
		Short: "vortexd drives per-router appliance lifecycles to convergence",
		Long:  "vortexd consumes CRUD events for cloud router resources and pumps each one's automaton through boot, configure, and teardown until it matches desired state.",
	}

	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address (ingress broker and pump notifier)")
	rootCmd.PersistentFlags().StringVar(&redisPass, "redis-pass", "", "Redis password")
	rootCmd.PersistentFlags().IntVar(&redisDB, "redis-db", 0, "Redis database")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a JSON config file (optional, flags override)")

	rootCmd.AddCommand(daemonCmd(), applyCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print vortexd's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("vortexd " + version)
			return nil
		},
	}
}
