// Package fingerprint derives the dedup key that guards the pipeline
// against publishing the same story twice. The key is a hash of the
// canonicalized URL and the normalized headline, so the same story
// picked up from two feeds (tracking parameters, casing or whitespace
// differences aside) collapses to one fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL lower-cases the scheme and host, strips query string,
// fragment and default ports, and trims a trailing slash from the path.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	path := u.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	return scheme + "://" + host + path, nil
}

// NormalizeHeadline case-folds the headline and collapses runs of
// whitespace to single spaces.
func NormalizeHeadline(headline string) string {
	return strings.ToLower(strings.Join(strings.Fields(headline), " "))
}

// Derive computes the fingerprint for a canonical URL and headline pair.
// Both inputs are normalized here; callers pass the raw values.
func Derive(rawURL, headline string) (string, error) {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical + "\n" + NormalizeHeadline(headline)))
	return hex.EncodeToString(sum[:]), nil
}
