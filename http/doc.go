// Package http exposes the media proxy over a JSON HTTP API.
//
// Every response except a successful download is a JSON envelope:
//
//	{"ok": true, "data": {...}}
//	{"ok": false, "error": {"code": "NOT_FOUND", "message": "File not found"}}
//
// # Routes
//
//	GET    /health            liveness probe
//	GET    /metrics           Prometheus metrics, when configured
//	GET    /media             list objects under a prefix
//	POST   /media/presign     issue a presigned PUT URL
//	GET    /media/head/{key}  object metadata
//	GET    /media/{key}       stream object content
//	PUT    /media/{key}       direct upload, metadata from x-meta-* headers
//	DELETE /media/{key}       remove an object
//
// /media/presign and /media/head/* take precedence over the /media/* catch-all.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{MaxPresignBodyBytes: 64 << 10}
//	handler := http.NewHandler(&handlerCfg, service)
//	http.ListenAndServe(":8080", handler.Router())
//
// The service parameter must implement the Service interface; *mediaproxy.Service does.
// The direct upload ceiling comes from the service's UploadPolicy.
package http
