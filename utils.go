package mediaproxy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidKey reports whether key is safe to map onto a hierarchical store
// such as a filesystem. It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative and does not end with "/"
//   - has no "." or ".." segments and no empty segments
//   - contains no backslash
//   - is valid UTF-8 without control characters
//
// Object stores accept a wider key space; only backends that need it call this.
func IsValidKey(key string) bool {
	if key == "" || key == "/" || key == "." {
		return false
	}

	if key[0] == '/' || strings.HasSuffix(key, "/") {
		return false
	}

	if strings.Contains(key, `\`) {
		return false
	}

	if !utf8.ValidString(key) {
		return false
	}

	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range key {
		if r < 0x20 || r == 0x7f || (unicode.IsSpace(r) && r != ' ') {
			return false
		}
	}

	return true
}
