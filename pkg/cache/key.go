package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// KeyPrefix prefixes every cache key written by this package.
const KeyPrefix = "crm:page"

// pathEscaper escapes the key separator inside paths.
var pathEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// globEscaper escapes Redis MATCH pattern metacharacters.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// credentialHeaders are hashed into the key scope.
var credentialHeaders = []string{"Authorization", "Api_key", "Api-Key"}

// CacheKey represents a unique identifier for a cached page.
type CacheKey struct {
	// Method is the HTTP method (only GET is cached by the client)
	Method string

	// Path is the endpoint path relative to the backoffice base URL
	Path string

	// Query are the query parameters including page and size
	Query url.Values

	// Scope isolates tenants; see ScopeFromHeaders
	Scope string
}

// String generates a deterministic cache key string.
// Format: crm:page:METHOD:path:q1=v1:q2=v2:scope=abc
//
// Example:
//
//	crm:page:GET:contacts:page=2:size=100:scope=3f2a9c1d0b7e
func (k CacheKey) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	parts := []string{KeyPrefix, method}

	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, pathEscaper.Replace(path))
	}

	// Query params sorted for determinism; multi-valued params keep their
	// order. Names and values are query-escaped so separators stay unique.
	for _, key := range slices.Sorted(maps.Keys(k.Query)) {
		values := make([]string, len(k.Query[key]))
		for i, v := range k.Query[key] {
			values[i] = url.QueryEscape(v)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", url.QueryEscape(key), strings.Join(values, ",")))
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}

// PathPrefix returns the literal key prefix shared by every cached page of
// path. List pages always carry a size parameter, so their keys extend the
// prefix.
func PathPrefix(method, path string) string {
	return CacheKey{Method: method, Path: path}.String() + ":"
}

// matchPattern returns a Redis SCAN MATCH pattern for keys starting with the
// literal prefix.
func matchPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

// ScopeFromHeaders derives a short, non-reversible scope from the
// credential headers of a request. It returns "" for anonymous requests.
func ScopeFromHeaders(h http.Header) string {
	hash := sha256.New()
	found := false
	for _, name := range credentialHeaders {
		if v := h.Get(name); v != "" {
			hash.Write([]byte(name + "=" + v + "\n"))
			found = true
		}
	}
	if !found {
		return ""
	}
	return hex.EncodeToString(hash.Sum(nil))[:12]
}
