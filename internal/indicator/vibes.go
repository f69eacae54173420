package indicator

import "strings"

const (
	VibePunycode       = "punycode"
	VibeIPInURL        = "IP-in-URL"
	VibeLongLink       = "long link"
	VibeUserinfo       = "userinfo trick"
	VibeManySubdomains = "many subdomains"

	longLinkLimit     = 120
	manySubdomainsMin = 4
)

// Vibe returns a short tag for a listed url or domain, or "" when nothing
// stands out. Checks run in priority order and only the first hit counts.
// Values may arrive defanged; they are refanged before checking.
func Vibe(kind Kind, value string) string {
	v := strings.ToLower(Refang(value))

	switch kind {
	case KindURL:
		if strings.Contains(v, "xn--") {
			return VibePunycode
		}
		if IsIPv4(urlHost(v)) {
			return VibeIPInURL
		}
		if len(v) > longLinkLimit {
			return VibeLongLink
		}
		if strings.Contains(v, "@") {
			return VibeUserinfo
		}
	case KindDomain:
		if strings.Contains(v, "xn--") {
			return VibePunycode
		}
		if len(strings.Split(v, ".")) >= manySubdomainsMin {
			return VibeManySubdomains
		}
	}
	return ""
}

// Vibes tags every url and domain of s. Untagged values are omitted.
func Vibes(s IndicatorSet) map[string]string {
	out := make(map[string]string)
	for _, k := range []Kind{KindURL, KindDomain} {
		for _, v := range s.Values(k) {
			if tag := Vibe(k, v); tag != "" {
				out[v] = tag
			}
		}
	}
	return out
}

// urlHost pulls the host out of an http(s) URL without a full parse.
func urlHost(v string) string {
	a := authority(v)
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return ""
	}
	if at := strings.LastIndexByte(a, '@'); at != -1 {
		a = a[at+1:]
	}
	if colon := strings.LastIndexByte(a, ':'); colon != -1 {
		a = a[:colon]
	}
	return a
}
