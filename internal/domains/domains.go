// Package domains canonicalizes hostnames and decides whether a domain
// belongs to a brand.
package domains

import "strings"

// NormalizeDomain reduces a URL or hostname to its bare lowercase host:
// scheme, leading "www." and any path are removed.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, "/")
}

// IsBrandDomain reports whether domain equals one of brandDomains or is a
// subdomain of one. Empty values never match.
func IsBrandDomain(domain string, brandDomains []string) bool {
	d := NormalizeDomain(domain)
	if d == "" {
		return false
	}
	for _, b := range brandDomains {
		bd := NormalizeDomain(b)
		if bd == "" {
			continue
		}
		if d == bd || strings.HasSuffix(d, "."+bd) {
			return true
		}
	}
	return false
}

// NormalizeAll normalizes every entry and drops empties and duplicates,
// keeping first-seen order.
func NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		d := NormalizeDomain(r)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
