package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/config"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/svcerr"
)

func newIdentityCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print the configured Identity attributes",
		Long: `Print the configured Identity attributes, without starting a listener.
The configured serial appears on the wire only in Get_Attribute_All;
LIST_IDENTITY and Get_Attribute_Single attribute 6 report a serial of 0.`,
		Example: `  enipsimd identity --config enipsimd.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig(configPath, true)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: %v\n", svcerr.WrapConfigError(err, configPath))
				os.Exit(2)
				return nil
			}
			id := cfg.Identity
			fmt.Fprintf(os.Stdout, "vendor_id:      0x%04X\n", id.VendorID)
			fmt.Fprintf(os.Stdout, "device_type:    0x%04X\n", id.DeviceType)
			fmt.Fprintf(os.Stdout, "product_code:   0x%08X\n", id.ProductCode)
			fmt.Fprintf(os.Stdout, "revision:       %d.%d\n", id.RevMajor, id.RevMinor)
			fmt.Fprintf(os.Stdout, "status:         0x%04X\n", id.Status)
			fmt.Fprintf(os.Stdout, "serial:         0x%08X\n", id.Serial)
			fmt.Fprintf(os.Stdout, "product_name:   %s\n", id.ProductName)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "enipsimd.yaml", "Server config file path")
	return cmd
}
