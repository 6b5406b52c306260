package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/educatorstribe/tribenews/internal/types"
)

// CanonicalizeURL resolves href against base and normalizes the result:
// - lowercases scheme and host
// - removes fragment
// - removes default ports (80 for http, 443 for https)
//
// Path and query are kept verbatim since publishers route on them.
func CanonicalizeURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}

	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", types.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", types.ErrInvalidURL)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// IsAbsoluteHTTP reports whether s is an absolute http(s) URL.
func IsAbsoluteHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
