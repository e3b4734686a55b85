package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockberries/bridgeberry/config"
	"github.com/blockberries/bridgeberry/types"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration",
		Long: `Write a default config.toml under --home. Relative store paths are
resolved against the home directory.

Example:
  $ bridged init --variant claim --reporter 0x...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			variant, _ := cmd.Flags().GetString("variant")
			if _, err := types.ParseVariant(variant); err != nil {
				return err
			}
			cfg.Bridge.Variant = variant
			reporters, _ := cmd.Flags().GetStringSlice("reporter")
			cfg.Bridge.Reporters = append(cfg.Bridge.Reporters, reporters...)
			relayers, _ := cmd.Flags().GetStringSlice("relayer")
			cfg.Bridge.Relayers = append(cfg.Bridge.Relayers, relayers...)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.WriteConfigFile(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("variant", "direct", "bridge variant: direct or claim")
	cmd.Flags().StringSlice("reporter", nil, "hex address allowed to report results (repeatable)")
	cmd.Flags().StringSlice("relayer", nil, "hex address allowed to record external block roots (repeatable)")
	cmd.Flags().Bool("force", false, "overwrite an existing config")
	return cmd
}

// resolve makes a relative data path relative to home.
func resolve(home, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(home, p)
}
