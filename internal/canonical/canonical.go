// Package canonical produces the single string identity used for all
// dedup and hashing decisions in the crawler (frontier, analytics).
package canonical

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize normalizes raw into the crawler's canonical URL form:
// fragment stripped, scheme and host lowercased, default ports dropped,
// IPv6 hosts bracketed, everything else preserved byte-for-byte.
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("canonical: parse %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if host != "" && strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}

	port := u.Port()
	dropPort := (scheme == "http" && port == "80") || (scheme == "https" && port == "443")

	var hostPort string
	if port != "" && !dropPort {
		hostPort = host + ":" + port
	} else {
		hostPort = host
	}

	out := &url.URL{
		Scheme:     scheme,
		Opaque:     u.Opaque,
		User:       u.User,
		Host:       hostPort,
		Path:       u.Path,
		RawPath:    u.RawPath,
		ForceQuery: u.ForceQuery,
		RawQuery:   u.RawQuery,
	}

	return out.String(), nil
}

// Hash returns the SHA-256 digest of the canonical form of raw, the
// primary key used for frontier and analytics dedup.
func Hash(raw string) ([32]byte, error) {
	canon, err := Canonicalize(raw)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256([]byte(canon)), nil
}

// HashHex is Hash with its result formatted as a lowercase hex string,
// convenient as a SQLite primary key.
func HashHex(raw string) (string, error) {
	h, err := Hash(raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h), nil
}

// Host returns the lowercased hostname of a canonical (or any) URL, or
// "" if the URL cannot be parsed.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
