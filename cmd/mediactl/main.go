package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/mediaproxy/clientcli"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "mediactl",
	Version: version,
	Short:   "Client for the mediaproxy API",
	Long: `mediactl talks to a mediaproxy server.

Large files should be sent with "upload --presigned", which asks the server
for an upload URL and sends the file straight to the object store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.mediactl/config.yaml, env: MEDIACTL_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: MEDIACTL_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: "+clientcli.DefaultEndpoint+", env: MEDIACTL_ENDPOINT)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(headCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	_ = getFormatter().FormatError(os.Stderr, err)
	os.Exit(1)
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient resolves the configuration and returns a client.
func getClient() (*clientcli.Client, error) {
	cfg, err := clientcli.Resolve(cfgFile, profile, endpoint)
	if err != nil {
		return nil, err
	}
	return clientcli.New(cfg)
}

// getConfigPath returns the profile file path used by configure.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// handleError prints err and returns an exitError so it is not printed twice.
func handleError(w io.Writer, err error) error {
	_ = getFormatter().FormatError(w, err)
	return &exitError{code: 1}
}

// exitError is returned when we want to exit with a specific code
// but don't want the error printed again.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return ""
}
