// Package config provides configuration loading and validation for mediaproxy.
//
// The package handles YAML configuration files, .env files, environment variables
// and CLI flags with automatic merging and validation using go-playground/validator.
// The result is an immutable Config handed to the server at startup; nothing
// below the command layer reads the environment.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (MEDIAPROXY_ prefix, then the historical names)
//  4. CLI flags
//
// Call LoadDotEnv before Load to populate the environment from a .env file.
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with MEDIAPROXY_ prefix:
//   - server.port → MEDIAPROXY_SERVER_PORT (or PORT)
//   - upload.allowed_content_types → MEDIAPROXY_UPLOAD_ALLOWED_CONTENT_TYPES (or ALLOWED_CONTENT_TYPES)
//   - upload.max_upload_bytes → MEDIAPROXY_UPLOAD_MAX_UPLOAD_BYTES (or MAX_UPLOAD_BYTES)
//   - storage.s3.bucket → MEDIAPROXY_STORAGE_S3_BUCKET (or S3_BUCKET)
//
// Comma separated lists are trimmed and empty entries dropped.
//
// # Validation
//
// Besides field tags, the selected storage backend must carry its required
// settings: region and bucket for s3; endpoint, bucket and keys for minio;
// path and public URL for filesystem.
package config
