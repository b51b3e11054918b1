package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/config"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/svcerr"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/tagstore"
)

func newTagsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the generated tag table",
		Long: `List the symbolic tag names and positional addresses the simulator will
generate at startup. No values are printed: tag values are volatile and
refreshed on every read, so there is nothing meaningful to show here
before the server is running.`,
		Example: `  enipsimd tags --config enipsimd.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig(configPath, true)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: %v\n", svcerr.WrapConfigError(err, configPath))
				os.Exit(2)
				return nil
			}
			store := tagstore.NewStore(cfg.Tags.Count, cfg.Server.RNGSeed)
			for _, tag := range store.All() {
				fmt.Fprintf(os.Stdout, "%-16s %s\n", tag.Name, tag.PositionalAddress)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "enipsimd.yaml", "Server config file path")
	return cmd
}
