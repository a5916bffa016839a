package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sevadaan/perfmon/internal/config"
)

var showConfigFormat string

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Prints the configuration file merged over the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := cfg.Encode(config.Format(showConfigFormat))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func init() {
	showConfigCmd.Flags().StringVar(&showConfigFormat, "format", string(config.TOML), "output format, toml or yaml")
	rootCmd.AddCommand(showConfigCmd)
}
