package indicator

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// DefaultDecodeRounds bounds MultiDecode for callers without an opinion.
const DefaultDecodeRounds = 3

// Scheme substitution runs before the dot substitution.
var (
	defanger = strings.NewReplacer("http://", "hxxp://", "https://", "hxxps://")
	refanger = strings.NewReplacer("hxxp://", "http://", "hxxps://", "https://", "[.]", ".")
)

// Defang obfuscates s so it cannot be clicked: http(s):// becomes hxxp(s)://
// and every dot becomes "[.]".
func Defang(s string) string {
	return DefangDots(defanger.Replace(s))
}

// DefangDots only brackets dots. Used for bare hosts and domains.
func DefangDots(s string) string {
	return strings.ReplaceAll(s, ".", "[.]")
}

// Refang is the inverse of Defang.
func Refang(s string) string {
	return refanger.Replace(s)
}

// MultiDecode percent-decodes s up to rounds times. It stops early when a
// round changes nothing or the input holds a malformed escape, and then
// returns the last good value.
func MultiDecode(s string, rounds int) string {
	out := s
	for i := 0; i < rounds; i++ {
		dec, ok := percentDecode(out)
		if !ok || dec == out {
			break
		}
		out = dec
	}
	return out
}

// percentDecode decodes every %XX escape. Malformed escapes and escapes that
// produce invalid UTF-8 are failures.
func percentDecode(s string) (string, bool) {
	if !strings.Contains(s, "%") {
		return s, true
	}
	dec, err := url.PathUnescape(s)
	if err != nil || !utf8.ValidString(dec) {
		return s, false
	}
	return dec, true
}

// decodeFormComponent decodes one key or value of a query string the way
// form parsers do: "+" is a space and malformed escapes stay literal.
func decodeFormComponent(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if !strings.Contains(s, "%") {
		return s
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		buf = append(buf, s[i])
	}
	return strings.ToValidUTF8(string(buf), "�")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// hasPercentEscape reports whether s holds at least one well-formed %XX.
func hasPercentEscape(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == '%' && isHex(s[i+1]) && isHex(s[i+2]) {
			return true
		}
	}
	return false
}

// escapeStrayPercents rewrites a "%" that does not start a valid escape as
// "%25", so net/url accepts text that browsers tolerate.
func escapeStrayPercents(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
