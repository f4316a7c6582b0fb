package mediaproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// MetaHeaderPrefix marks request headers carrying user metadata on direct uploads.
const MetaHeaderPrefix = "x-meta-"

// NormalizeMetadata drops nil values, lowercases keys and stringifies the
// remaining values. Numbers keep their shortest decimal form. Arrays and
// objects are JSON encoded ([1,2] stays "[1,2]", {"k":"v"} stays
// `{"k":"v"}`) rather than flattened.
func NormalizeMetadata(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToLower(k)] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// MetadataFromHeaders collects X-Meta-* headers. The prefix is stripped and
// the remainder lowercased; repeated headers are joined with ", ".
func MetadataFromHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, MetaHeaderPrefix) || len(values) == 0 {
			continue
		}
		key := strings.TrimPrefix(lower, MetaHeaderPrefix)
		if key == "" {
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// MetadataHeaders is the inverse of MetadataFromHeaders, used by clients.
func MetadataHeaders(md map[string]string) http.Header {
	h := make(http.Header, len(md))
	for k, v := range md {
		h.Set(MetaHeaderPrefix+strings.ToLower(k), v)
	}
	return h
}
