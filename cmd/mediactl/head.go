package main

import (
	"os"

	"github.com/spf13/cobra"
)

var headCmd = &cobra.Command{
	Use:   "head <key>",
	Short: "Show object attributes and metadata",
	Long: `Show the content type, size, last modification time, ETag and
user metadata of an object without downloading it.

Examples:
  mediactl head media/2024/05/cat.png
  mediactl head --json media/2024/05/cat.png`,
	Args: cobra.ExactArgs(1),
	RunE: runHead,
}

func runHead(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	info, err := client.Head(cmd.Context(), args[0])
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatHead(os.Stdout, info)
}
