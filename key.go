package sonargate

import (
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached upstream resource. Query holds the request
// parameters in a normalized (sorted, URL-encoded) form so that logically
// identical requests always map to the same key.
type CacheKey struct {
	ResourceType string
	ResourceID   string
	Query        string
}

// NewCacheKey builds a deterministic key from a resource identity and its
// request parameters. Parameter order never affects the result.
func NewCacheKey(resourceType, resourceID string, params map[string]string) CacheKey {
	return CacheKey{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Query:        normalizeParams(params),
	}
}

// String renders the key in a human-inspectable form, e.g.
// "issues:my-project?resolved=false". It is used for logging and as the
// in-flight table key.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.ResourceType)
	b.WriteByte(':')
	b.WriteString(k.ResourceID)
	if k.Query != "" {
		b.WriteByte('?')
		b.WriteString(k.Query)
	}
	return b.String()
}

func normalizeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
