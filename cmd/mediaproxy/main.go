package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/mediaproxy/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "mediaproxy",
	Short:   "HTTP media proxy in front of an object store",
	Long: `mediaproxy exposes a small JSON API to list, upload, download and delete
media objects kept in S3, a MinIO compatible store or a local directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env-file")
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}

		configFiles, _ := cmd.Flags().GetStringSlice("config")
		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// Printing the version must work without a valid configuration.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mediaproxy %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "dotenv files to load before reading the environment (default: ./.env)")
	rootCmd.PersistentFlags().String("env", "", "environment: development, production (env: MEDIAPROXY_ENV)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: MEDIAPROXY_LOG_LEVEL)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
