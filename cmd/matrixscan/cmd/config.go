package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/matrixscan/internal/config"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate configuration",
	Long: `Inspect the resolved configuration or write a file with every default.

Settings are read from flags, MATRIXSCAN_* environment variables and a
matrixscan.yaml file, in that order of precedence.`,
}

var configInitCmd = &cobra.Command{
	Use:          "init [file]",
	Short:        "Write a configuration file with every default",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			filename = args[0]
		}
		if err := config.GenerateDefaultConfigFile(filename); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", filename)
		return err
	},
}

var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the resolved configuration",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := GetConfigLoader()
		if used := loader.GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(GetConfig()); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the directories searched for matrixscan.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range config.GetConfigSearchPaths() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathsCmd)
	rootCmd.AddCommand(configCmd)
}
