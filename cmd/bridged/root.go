package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

const configFileName = "config.toml"

// NewRootCmd returns the bridged command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bridged",
		Short:         "Cross-chain oracle bridge daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("home", defaultHome(), "directory holding config.toml and data")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newQueryCmd(),
		newVerifyProofCmd(),
		newVersionCmd(),
	)
	return root
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bridged"
	}
	return filepath.Join(home, ".bridged")
}

// configPath returns the config file under --home.
func configPath(cmd *cobra.Command) (string, error) {
	home, err := cmd.Flags().GetString("home")
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
