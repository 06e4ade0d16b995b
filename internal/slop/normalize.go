package slop

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/idna"
)

// Batch maps a domain name to the sorted, distinct paths submitted for it.
// A domain with no paths is a domain-only submission.
type Batch map[string][]string

// Domains returns the batch's domain names in sorted order.
func (b Batch) Domains() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// PathCount returns the number of distinct (domain, path) pairs in the batch.
func (b Batch) PathCount() int {
	n := 0
	for _, paths := range b {
		n += len(paths)
	}

	return n
}

// Normalize parses raw URLs into a Batch.
// - Hosts are lowercased, IDNA-encoded, stripped of port and trailing dot
// - Paths keep their query, drop the fragment and any trailing slash
// - "" and "/" are domain-only submissions
//
// A single URL without a usable host rejects the whole batch with ErrInvalidURL.
func Normalize(rawURLs []string) (Batch, error) {
	sets := make(map[string]map[string]struct{}, len(rawURLs))

	for _, raw := range rawURLs {
		domain, path, err := NormalizeURL(raw)
		if err != nil {
			return nil, err
		}

		paths, ok := sets[domain]
		if !ok {
			paths = make(map[string]struct{})
			sets[domain] = paths
		}

		if path != "" {
			paths[path] = struct{}{}
		}
	}

	batch := make(Batch, len(sets))

	for domain, paths := range sets {
		values := make([]string, 0, len(paths))
		for p := range paths {
			values = append(values, p)
		}

		slices.Sort(values)
		batch[domain] = values
	}

	return batch, nil
}

// NormalizeURL splits a single raw URL into its domain and path.
func NormalizeURL(raw string) (domain, path string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %w", ErrInvalidURL, raw, err)
	}

	domain, err = normalizeHost(u.Hostname())
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %w", ErrInvalidURL, raw, err)
	}

	path = u.EscapedPath()
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	if u.RawQuery != "" {
		if path == "" {
			path = "/"
		}

		return domain, path + "?" + u.RawQuery, nil
	}

	if path == "/" {
		path = ""
	}

	return domain, path, nil
}

var errMissingHost = errors.New("missing host")

// hostProfile maps like lookup but allows underscores and other non-STD3
// characters that real hostnames carry.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.StrictDomainName(false),
)

func normalizeHost(host string) (string, error) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", errMissingHost
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", err
	}

	return ascii, nil
}
