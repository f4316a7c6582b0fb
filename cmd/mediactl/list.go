package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/mediaproxy/clientcli"
)

var (
	listPrefix string
	listLimit  int
	listAll    bool
	listCursor string
)

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List objects on the server",
	Long: `List objects under a key prefix. The server defaults the prefix to "media/".

Examples:
  mediactl list
  mediactl list media/2024/
  mediactl list --prefix media/2024/05/ --limit 10
  mediactl list --all
  mediactl list --cursor "media/2024/05/abc.png"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listPrefix, "prefix", "", "filter by key prefix")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", clientcli.DefaultListLimit, "max results per page (max: 1000)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "fetch all pages")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "pagination cursor")
}

func runList(cmd *cobra.Command, args []string) error {
	prefix := listPrefix
	if len(args) > 0 {
		prefix = args[0]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(cmd.Context(), clientcli.ListOptions{
		Prefix: prefix,
		Limit:  listLimit,
		Cursor: listCursor,
		All:    listAll,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatList(os.Stdout, result)
}
