// Package mediaproxy implements a thin HTTP-to-object-storage proxy for
// media files.
//
// The root package holds the rules that sit between the HTTP surface and the
// object store: the upload policy (content type allow-list and size ceiling),
// key derivation for new uploads, metadata normalization and the Gateway
// abstraction over the backing store.
//
// # Key Components
//
//   - Service: applies the upload rules and forwards to a Gateway
//   - Gateway: list, put, presign, get, head and delete against a store
//   - UploadPolicy: immutable allow-list and size ceiling loaded at startup
//   - KeyBuilder: media/<yyyy>/<mm>/<uuid><ext> keys for new uploads
//   - Error: tagged gateway failure (not found, forbidden, timeout, ...)
//
// # Example Usage
//
//	policy := mediaproxy.NewUploadPolicy([]string{"image/png"}, 10<<20)
//	svc, err := mediaproxy.NewService(mediaproxy.WithTimeout(gw, 30*time.Second), policy)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	grant, err := svc.Presign(ctx, mediaproxy.PresignInput{
//	    Filename:    "cat.PNG",
//	    ContentType: "image/png",
//	})
//
// Gateway implementations live in the s3store, miniostore and filesystem
// packages; the REST API is in the http package.
package mediaproxy
