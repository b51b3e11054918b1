package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "enipsimd",
		Short: "EtherNet/IP device simulator",
		Long: `enipsimd is a headless EtherNet/IP (CIP) device simulator: it answers
encapsulation and CIP traffic the way a small adapter device would, for
protocol and DPI testing against real client tooling.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIdentityCmd())
	rootCmd.AddCommand(newTagsCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		// Exit code 1 for CLI/usage errors; runtime errors exit with code 2
		// from within the individual command's RunE (spec.md §6).
		os.Exit(1)
	}
}
