// Package clientcli provides a client library for the mediaproxy HTTP API.
//
// It supports list, upload (direct or through a presigned URL), download,
// head and delete operations, decodes the server's JSON envelope, and turns
// error envelopes into *APIError values. Profile-based configuration manages
// connections to multiple servers.
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:3000"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath: "./cat.png",
//		Presigned: true,
//		Metadata:  map[string]string{"alt": "a cat"},
//	})
//	if errors.Is(err, clientcli.ErrUnsupportedMediaType) {
//		// the server's allow-list rejected the file type
//	}
//
// # Profile Configuration
//
// Profiles live in ~/.mediactl/config.yaml. Resolve applies the profile
// file, MEDIACTL_* environment variables and an explicit endpoint in that
// order of precedence:
//
//	cfg, err := clientcli.Resolve("", "production", "")
//	client, err := clientcli.New(cfg)
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
