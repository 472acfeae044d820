package security

import (
	"fmt"
	"net/url"
	"strings"
)

// dangerousSchemes are URI schemes that must never appear in a redirect URI.
var dangerousSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"file":       true,
	"vbscript":   true,
	"about":      true,
}

// RedirectPattern is a parsed redirect URI pattern. A pattern is an absolute
// URI whose port may be the wildcard "*", which matches any port. This
// covers loopback redirects where the client binds an ephemeral port
// (RFC 8252 section 7.3), e.g. "http://localhost:*" or
// "http://127.0.0.1:*/callback".
//
// Matching is deliberately a comparison over this small closed grammar
// (scheme, host, port, path) rather than a regular expression, so the
// security-critical comparison stays auditable.
type RedirectPattern struct {
	// Scheme is the lowercase URI scheme
	Scheme string

	// Host is the lowercase host without port
	Host string

	// Port is the literal port, empty when the pattern has none
	Port string

	// WildcardPort is true when the pattern port is "*"
	WildcardPort bool

	// Path is the literal path, empty matches any path
	Path string

	// raw is the original pattern string, used for exact matching
	raw string
}

// ParseRedirectPattern parses a redirect URI pattern.
func ParseRedirectPattern(pattern string) (*RedirectPattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty redirect pattern")
	}

	schemeEnd := strings.Index(pattern, "://")
	if schemeEnd <= 0 {
		return nil, fmt.Errorf("redirect pattern %q has no scheme", pattern)
	}
	scheme := strings.ToLower(pattern[:schemeEnd])
	rest := pattern[schemeEnd+3:]

	hostPort := rest
	path := ""
	if slash := strings.Index(rest, "/"); slash >= 0 {
		hostPort = rest[:slash]
		path = rest[slash:]
	}
	if hostPort == "" {
		return nil, fmt.Errorf("redirect pattern %q has no host", pattern)
	}
	if strings.ContainsAny(hostPort, "?#@") || strings.ContainsAny(path, "?#") {
		return nil, fmt.Errorf("redirect pattern %q must not contain query, fragment, or userinfo", pattern)
	}

	host := hostPort
	port := ""
	wildcard := false
	if strings.HasPrefix(hostPort, "[") {
		// Bracketed IPv6 literal, e.g. [::1]:8080
		end := strings.Index(hostPort, "]")
		if end < 0 {
			return nil, fmt.Errorf("redirect pattern %q has unterminated IPv6 host", pattern)
		}
		host = hostPort[1:end]
		rest := hostPort[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return nil, fmt.Errorf("redirect pattern %q has invalid host", pattern)
			}
			port = rest[1:]
			if port == "" {
				return nil, fmt.Errorf("redirect pattern %q has empty port", pattern)
			}
			if port == "*" {
				wildcard = true
			} else {
				for _, c := range port {
					if c < '0' || c > '9' {
						return nil, fmt.Errorf("redirect pattern %q has invalid port %q", pattern, port)
					}
				}
			}
		}
		if host == "" {
			return nil, fmt.Errorf("redirect pattern %q has no host", pattern)
		}
		return &RedirectPattern{
			Scheme:       scheme,
			Host:         strings.ToLower(host),
			Port:         port,
			WildcardPort: wildcard,
			Path:         path,
			raw:          pattern,
		}, nil
	}
	if colon := strings.LastIndex(hostPort, ":"); colon >= 0 {
		host = hostPort[:colon]
		port = hostPort[colon+1:]
		if port == "" {
			return nil, fmt.Errorf("redirect pattern %q has empty port", pattern)
		}
		if port == "*" {
			wildcard = true
		} else {
			for _, c := range port {
				if c < '0' || c > '9' {
					return nil, fmt.Errorf("redirect pattern %q has invalid port %q", pattern, port)
				}
			}
		}
	}
	if host == "" {
		return nil, fmt.Errorf("redirect pattern %q has no host", pattern)
	}

	return &RedirectPattern{
		Scheme:       scheme,
		Host:         strings.ToLower(host),
		Port:         port,
		WildcardPort: wildcard,
		Path:         path,
		raw:          pattern,
	}, nil
}

// Match reports whether a redirect URI matches the pattern. A pattern
// without a wildcard port matches only the exact URI string. A wildcard
// pattern matches when scheme and host are equal, any port is present,
// and the path is equal (an empty pattern path matches any path). Query
// strings and fragments never match a pattern.
func (p *RedirectPattern) Match(redirectURI string) bool {
	if !p.WildcardPort {
		return redirectURI == p.raw
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	if u.Fragment != "" || u.RawQuery != "" || u.User != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, p.Scheme) {
		return false
	}
	if !strings.EqualFold(u.Hostname(), p.Host) {
		return false
	}
	if u.Port() == "" {
		return false
	}
	if p.Path != "" && u.Path != p.Path {
		return false
	}
	return true
}

// MatchesAnyPattern reports whether the redirect URI matches at least one
// of the given patterns. Unparseable patterns never match.
func MatchesAnyPattern(patterns []string, redirectURI string) bool {
	for _, raw := range patterns {
		p, err := ParseRedirectPattern(raw)
		if err != nil {
			continue
		}
		if p.Match(redirectURI) {
			return true
		}
	}
	return false
}

// ValidateRedirectURI performs structural security checks on a redirect URI:
// it must be an absolute URI without a fragment, must not use a dangerous
// scheme, and http/https URIs must carry a host.
func ValidateRedirectURI(redirectURI string) error {
	if redirectURI == "" {
		return fmt.Errorf("redirect URI is empty")
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("redirect URI is not a valid URI: %w", err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("redirect URI must be absolute")
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect URI must not contain a fragment")
	}
	if dangerousSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("redirect URI scheme %q is not allowed", u.Scheme)
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return fmt.Errorf("redirect URI must contain a host")
	}

	return nil
}
