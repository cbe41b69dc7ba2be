package cmd

import (
	"os"

	"github.com/naoina/toml"
	"github.com/spf13/cobra"

	"github.com/jmcleod/certflux/config"
	"github.com/jmcleod/certflux/prompt"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the certflux configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		path := configPath
		if path == "" {
			path = defaultConfigPath
		}

		if _, err := os.Stat(path); err == nil {
			ok, err := prompt.Confirm("Overwrite existing configuration at " + path)
			if err != nil {
				return fail(f, err)
			}
			if !ok {
				f.Info("Aborted")
				return nil
			}
		}

		if err := config.Default().Save(path); err != nil {
			return fail(f, err)
		}
		f.Success("Configuration written to %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		cfg, err := loadConfig()
		if err != nil {
			return fail(f, err)
		}

		data, err := toml.Marshal(cfg)
		if err != nil {
			return fail(f, err)
		}
		os.Stdout.Write(data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
