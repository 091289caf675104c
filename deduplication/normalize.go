package deduplication

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/url"
	"strings"
)

// Identity normalizes a link and returns the canonical form with its SHA-256 hex hash
func Identity(link string) (canonical, hash string) {
	canonical = NormalizeURL(link)
	return canonical, IdentityHash(canonical)
}

// IdentityHash returns the lower-case hex SHA-256 digest of a canonical link
func IdentityHash(canonical string) string {
	h := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(h[:])
}

// NormalizeURL reduces a link to the canonical form used for identity.
// Normalization steps:
// - scheme: default to https, http is folded into https
// - host: lowercase, strip stacked "www." and "m." prefixes, drop default ports
// - path: collapse repeated slashes, trim a trailing slash unless root
// - query, fragment and user info are dropped
// Unparseable input falls back to the trimmed, lower-cased raw string.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	fallback := strings.ToLower(raw)

	candidate := raw
	if !hasScheme(raw) {
		candidate = "https://" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return fallback
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" {
		scheme = "https"
	}

	host := trimHostPrefixes(strings.ToLower(u.Hostname()))
	if host == "" {
		return fallback
	}
	if port := u.Port(); port != "" && !isDefaultPort(port) {
		host = net.JoinHostPort(host, port)
	}

	out := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   normalizePath(u.Path),
	}
	return out.String()
}

// trimHostPrefixes strips "www." and "m." until neither leads the host
func trimHostPrefixes(host string) string {
	for {
		switch {
		case strings.HasPrefix(host, "www."):
			host = host[len("www."):]
		case strings.HasPrefix(host, "m."):
			host = host[len("m."):]
		default:
			return host
		}
	}
}

func hasScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isDefaultPort(port string) bool {
	return port == "80" || port == "443"
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}
