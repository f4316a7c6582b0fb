package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/mediaproxy/clientcli"
)

var (
	uploadContentType string
	uploadMeta        []string
	uploadPresigned   bool
	uploadRecursive   bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [key]",
	Short: "Upload files to the server",
	Long: `Upload files to the server.

Without --presigned the file is sent through the proxy with PUT /media/<key>
and is subject to the server's upload size limit. With --presigned the
server hands out an upload URL; when no key is given it derives one from
the file name.

Examples:
  mediactl upload ./cat.png media/cats/cat.png
  mediactl upload --presigned ./video.mp4
  mediactl upload --meta alt="a cat" --meta owner=u1 ./cat.png media/cat.png
  mediactl upload -r ./album media/album`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadContentType, "content-type", "t", "", "override content-type")
	uploadCmd.Flags().StringArrayVarP(&uploadMeta, "meta", "m", nil, "metadata entry name=value (repeatable)")
	uploadCmd.Flags().BoolVar(&uploadPresigned, "presigned", false, "upload through a presigned URL")
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload directory recursively, key is used as prefix")
}

func runUpload(cmd *cobra.Command, args []string) error {
	key := ""
	if len(args) > 1 {
		key = args[1]
	}

	metadata, err := parseMeta(uploadMeta)
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	opts := clientcli.UploadOptions{
		LocalPath:   args[0],
		Key:         key,
		ContentType: uploadContentType,
		Metadata:    metadata,
		Presigned:   uploadPresigned,
		Recursive:   uploadRecursive,
	}

	results, err := client.Upload(cmd.Context(), opts)
	if err != nil {
		return handleError(os.Stderr, err)
	}

	formatter := getFormatter()
	if err := formatter.FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return &exitError{code: 1}
		}
	}

	return nil
}

// parseMeta turns name=value pairs into a metadata map.
func parseMeta(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	md := make(map[string]string, len(entries))
	for _, e := range entries {
		name, value, ok := strings.Cut(e, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected name=value", e)
		}
		md[strings.ToLower(name)] = value
	}
	return md, nil
}
