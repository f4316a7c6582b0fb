package http

// Error codes used in the error envelope.
const (
	CodeInvalidJSON          = "INVALID_JSON"
	CodeBadRequest           = "BAD_REQUEST"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeNotFound             = "NOT_FOUND"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeInternal             = "INTERNAL"
	CodeTimeout              = "TIMEOUT"
)

const (
	msgInternal         = "Internal server error"
	msgTimeout          = "Storage backend timed out"
	msgRouteNotFound    = "Route not found"
	msgMethodNotAllowed = "Method not allowed"
	msgFileNotFound     = "File not found"
	msgInvalidKey       = "Invalid key"
)
