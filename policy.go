package mediaproxy

import (
	"slices"
	"strings"
)

// UploadPolicy holds the upload rules loaded at startup. The zero value
// allows every content type and sets no size ceiling.
type UploadPolicy struct {
	allowed        []string
	maxUploadBytes int64
}

// NewUploadPolicy copies allowed so later changes by the caller do not leak in.
func NewUploadPolicy(allowed []string, maxUploadBytes int64) UploadPolicy {
	return UploadPolicy{
		allowed:        slices.Clone(allowed),
		maxUploadBytes: max(0, maxUploadBytes),
	}
}

// ParseContentTypes splits a comma separated allow-list, trimming entries and
// dropping empty ones.
func ParseContentTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsAllowed matches contentType exactly against the allow-list. MIME
// parameters are not stripped: "image/png; x=1" does not match "image/png".
func (p UploadPolicy) IsAllowed(contentType string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	return slices.Contains(p.allowed, contentType)
}

// MaxUploadBytes returns the direct upload ceiling, 0 meaning unlimited.
func (p UploadPolicy) MaxUploadBytes() int64 {
	return p.maxUploadBytes
}

// Exceeds reports whether an upload of size bytes breaks the ceiling.
// Unknown sizes (negative) never exceed it here.
func (p UploadPolicy) Exceeds(size int64) bool {
	return p.maxUploadBytes > 0 && size > p.maxUploadBytes
}

func (p UploadPolicy) AllowedContentTypes() []string {
	return slices.Clone(p.allowed)
}
