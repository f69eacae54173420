package indicator

import (
	"regexp"
	"strings"
)

// Structural flag messages, in evaluation order.
const (
	FlagPunycode    = "Punycode hostname detected (often used for lookalike domains)."
	FlagIPHost      = "Hostname is an IP address (common in phishing/malware links)."
	FlagLongURL     = "Very long URL (can hide intent in parameters)."
	FlagUserinfo    = "Contains '@' in the authority part (userinfo trick can mislead)."
	FlagManyParams  = "Many query parameters (tracking or hiding payloads)."
	FlagPercentEnc  = "Percent-encoding present (obfuscation or normal URL encoding)."
	FlagDoubleExt   = "Double file extension pattern in path (can be deceptive)."
	FlagNestedURL   = "Decoded content contains nested URL(s) (redirect chain behavior)."
	NoFlagsMessage  = "No obvious red flags from structure alone (still verify reputation/logs)."
	LongURLLimit    = 140
	ManyParamsLimit = 6
)

var doubleExt = regexp.MustCompile(`(?i)\.[a-z0-9]{1,6}\.[a-z0-9]{1,6}(?:$|\?)`)

// FlagSet is an ordered list of observations. A set without findings holds
// only NoFlagsMessage.
type FlagSet []string

// Count is the number of real findings; the sentinel counts as zero.
func (f FlagSet) Count() int {
	if len(f) == 1 && f[0] == NoFlagsMessage {
		return 0
	}
	return len(f)
}

// StructuralFlags runs every check against one decomposed URL. raw is the
// input before refanging, normalized and decoded are the serialized forms.
func StructuralFlags(c URLComponents, raw, normalized, decoded string) FlagSet {
	var flags FlagSet

	host := strings.ToLower(c.Host)
	if strings.Contains(host, "xn--") {
		flags = append(flags, FlagPunycode)
	}
	if IsIPv4(host) {
		flags = append(flags, FlagIPHost)
	}
	if len(normalized) > LongURLLimit {
		flags = append(flags, FlagLongURL)
	}
	if strings.Contains(authority(normalized), "@") {
		flags = append(flags, FlagUserinfo)
	}
	if len(c.Params) >= ManyParamsLimit {
		flags = append(flags, FlagManyParams)
	}
	if hasPercentEscape(raw) {
		flags = append(flags, FlagPercentEnc)
	}
	if doubleExt.MatchString(c.Path) {
		flags = append(flags, FlagDoubleExt)
	}
	if decoded != normalized && hasEmbeddedURL(decoded) {
		flags = append(flags, FlagNestedURL)
	}

	if len(flags) == 0 {
		flags = FlagSet{NoFlagsMessage}
	}
	return flags
}

// authority returns the part between "://" and the first "/", "?" or "#".
func authority(s string) string {
	_, rest, ok := strings.Cut(s, "://")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// hasEmbeddedURL reports an http(s):// occurrence anywhere in s, the
// leading scheme included.
func hasEmbeddedURL(s string) bool {
	return strings.Contains(s, "http://") || strings.Contains(s, "https://")
}
