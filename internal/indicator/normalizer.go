package indicator

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var schemePrefix = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

// Browsers drop ASCII tab and newline anywhere in a URL before parsing.
var tabNewline = strings.NewReplacer("\t", "", "\r", "", "\n", "")

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// Decompose takes one suspicious URL as an analyst would paste it (wrapped
// in quotes or brackets, defanged, scheme missing) and breaks it into parts.
// The result carries the normalized form, the multi-round decoded form and
// the structural flags. Defanging for display is left to the caller.
func Decompose(raw string) (*URLAnalysis, error) {
	return DecomposeRounds(raw, DefaultDecodeRounds)
}

// DecomposeRounds is Decompose with an explicit MultiDecode bound.
func DecomposeRounds(raw string, rounds int) (*URLAnalysis, error) {
	input := stripWrappers(raw)
	if input == "" {
		return nil, ErrEmptyInput
	}

	u, err := parseURL(ensureScheme(Refang(input)))
	if err != nil {
		return nil, &ParseError{Input: input, Err: err}
	}

	normalized := u.String()
	decoded := MultiDecode(normalized, rounds)

	comps := URLComponents{
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Path:     u.EscapedPath(),
		Query:    u.RawQuery,
		Fragment: u.EscapedFragment(),
		Params:   parseParams(u.RawQuery, rounds),
	}

	a := &URLAnalysis{
		Input:      input,
		Components: comps,
		Normalized: normalized,
		Decoded:    decoded,
		Flags:      StructuralFlags(comps, input, normalized, decoded),
	}

	if strings.Contains(comps.Host, "xn--") {
		if uni, err := idna.ToUnicode(comps.Host); err == nil && uni != comps.Host {
			a.HostUnicode = uni
		}
	}
	a.RegistrableDomain = RegistrableDomain(comps.Host)

	return a, nil
}

// stripWrappers trims the punctuation analysts paste around links.
func stripWrappers(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, `"'<([`)
	return strings.TrimRight(s, `"'>)]`)
}

func ensureScheme(s string) string {
	if schemePrefix.MatchString(s) {
		return s
	}
	return "https://" + s
}

// parseURL parses s and canonicalizes it the way a browser would print it:
// lowercase scheme and host, punycode for IDN hosts, default port dropped,
// "/" for an empty path.
func parseURL(s string) (*url.URL, error) {
	u, err := url.Parse(escapeStrayPercents(tabNewline.Replace(s)))
	if err != nil {
		return nil, err
	}
	if u.Opaque != "" || u.Host == "" {
		return nil, errors.New("empty host")
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}

	port := u.Port()
	if port == defaultPorts[u.Scheme] {
		port = ""
	}

	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u, nil
}

// hostOf returns the normalized hostname of a candidate URL found in text.
func hostOf(rawURL string) (string, bool) {
	u, err := parseURL(Refang(rawURL))
	if err != nil {
		return "", false
	}
	return u.Hostname(), true
}

func normalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)

	// Drop trailing dot: "example.com." → "example.com".
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("empty host")
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	if isASCII(host) {
		return asciiLower(host), nil
	}

	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("idna: %w", err)
	}
	return strings.ToLower(asciiHost), nil
}

// RegistrableDomain returns the eTLD+1 of host, or "" for IP literals and
// hosts without a known public suffix.
func RegistrableDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return d
}

// parseParams splits a raw query into ordered pairs and decodes each side
// for display. Empty segments ("a=1&&b=2") are skipped.
func parseParams(rawQuery string, rounds int) []Param {
	params := []Param{}
	for _, seg := range strings.Split(rawQuery, "&") {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		params = append(params, Param{
			Key:   MultiDecode(decodeFormComponent(k), rounds),
			Value: MultiDecode(decodeFormComponent(v), rounds),
		})
	}
	return params
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// asciiLower lowercases ASCII letters only, so byte offsets stay valid.
func asciiLower(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
