package httpx

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RedirectAllowlist decides where the browser may be sent after logout.
// Entries are exact origins (https://app.example.com) or domain suffixes
// (.example.com, https only). A suffix that is itself a public suffix is refused.
type RedirectAllowlist struct {
	base     *url.URL
	origins  map[string]struct{}
	suffixes []string
}

// NewRedirectAllowlist builds an allowlist. The baseURL origin is always allowed
// and relative targets are resolved against it.
func NewRedirectAllowlist(baseURL string, entries []string) (*RedirectAllowlist, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	a := &RedirectAllowlist{base: base, origins: map[string]struct{}{origin(base): {}}}

	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if strings.HasPrefix(e, ".") {
			domain := strings.TrimPrefix(e, ".")
			if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
				return nil, fmt.Errorf("redirect suffix %q is too broad: %w", e, err)
			}
			a.suffixes = append(a.suffixes, e)
			continue
		}
		u, err := url.Parse(e)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid redirect origin %q", e)
		}
		a.origins[origin(u)] = struct{}{}
	}
	return a, nil
}

// Default is where the browser goes when no acceptable target was given.
func (a *RedirectAllowlist) Default() string {
	return a.base.ResolveReference(&url.URL{Path: "/"}).String()
}

// Resolve returns the absolute target for raw when it is allowed.
func (a *RedirectAllowlist) Resolve(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.User != nil {
		return "", false
	}
	if !u.IsAbs() {
		// Relative paths only; "//host" is scheme-relative and not ours.
		if u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(raw, "//") {
			return "", false
		}
		u = a.base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if _, ok := a.origins[origin(u)]; ok {
		return u.String(), true
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range a.suffixes {
		if u.Scheme == "https" && (strings.HasSuffix(host, s) || host == s[1:]) {
			return u.String(), true
		}
	}
	return "", false
}

// ResolveOrDefault resolves raw, falling back to Default.
func (a *RedirectAllowlist) ResolveOrDefault(raw string) string {
	if target, ok := a.Resolve(raw); ok {
		return target
	}
	return a.Default()
}

func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// safeReturnPath accepts only same-origin relative paths starting with "/".
// Returns "" when candidate is unusable.
func safeReturnPath(candidate string) string {
	if candidate == "" || strings.HasPrefix(candidate, "//") || strings.Contains(candidate, `\`) {
		return ""
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return ""
	}
	return candidate
}
