package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/mediaproxy/clientcli"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <key> [key...]",
	Short: "Delete objects from the server",
	Long: `Delete one or more objects from the server.

Examples:
  mediactl delete media/2024/05/cat.png
  mediactl delete media/a.png media/b.png media/c.png
  mediactl delete -q media/tmp.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Keys: args})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}
	return nil
}
