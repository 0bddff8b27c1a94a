// Package cmd implements the command-line interface for the crawler.
// It provides the root command and subcommands for running crawl
// workers and maintaining the shared discovery queue.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/mapthenet/cmd/cleanupstuck"
	"github.com/jonesrussell/mapthenet/cmd/parallelcollector"
	"github.com/jonesrussell/mapthenet/cmd/queueprocessor"
	"github.com/jonesrussell/mapthenet/cmd/wipe"
)

var (
	// cfgFile holds the --config flag value; no command reads it.
	cfgFile string

	// Debug holds the --debug flag value; no command reads it.
	Debug bool

	// rootCmd represents the root command for the crawler CLI.
	rootCmd = &cobra.Command{
		Use:   "mapthenet",
		Short: "A distributed breadth-first web crawler",
		Long:  `A distributed breadth-first web crawler that maps domains and the links between them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	_ = rootCmd.ParseFlags(os.Args[1:])

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file path (accepted but not read by any command)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "debug mode (accepted but not read by any command)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("mapthenet version 0.1.0")
		},
	})

	rootCmd.AddCommand(queueprocessor.Command())
	rootCmd.AddCommand(parallelcollector.Command())
	rootCmd.AddCommand(cleanupstuck.Command())
	rootCmd.AddCommand(wipe.Command())
}
