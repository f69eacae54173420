package indicator

import "regexp"

// Pattern finds raw candidates of one category in free text.
// The expressions are pragmatic, not RFC grammars.
type Pattern struct {
	Kind Kind
	re   *regexp.Regexp
}

func newPattern(kind Kind, expr string) Pattern {
	return Pattern{Kind: kind, re: regexp.MustCompile(expr)}
}

// FindAll returns every match in order of appearance.
func (p Pattern) FindAll(text string) []string {
	return p.re.FindAllString(text, -1)
}

const octet = `(?:25[0-5]|2[0-4]\d|1?\d?\d)`

var (
	// http/https plus the hxxp/hxxps defanged schemes.
	urlPattern = newPattern(KindURL, `(?i)\b(?:https?://|hxxps?://)[^\s\v<>"')\]]+`)

	ipPattern = newPattern(KindIP, `\b(?:`+octet+`\.){3}`+octet+`\b`)

	// MD5, SHA-1 and SHA-256 lengths only.
	hashPattern = newPattern(KindHash, `(?i)\b(?:[a-f0-9]{32}|[a-f0-9]{40}|[a-f0-9]{64})\b`)

	// Literal dots only: "cdn[.]example[.]net" does not match.
	domainPattern = newPattern(KindDomain, `(?i)\b(?:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)\.)+(?:[a-z]{2,63})\b`)

	dottedQuad = regexp.MustCompile(`^(?:` + octet + `\.){3}` + octet + `$`)
)

var patterns = map[Kind]Pattern{
	KindURL:    urlPattern,
	KindIP:     ipPattern,
	KindHash:   hashPattern,
	KindDomain: domainPattern,
}

// PatternFor returns the pattern registered for kind.
func PatternFor(kind Kind) (Pattern, bool) {
	p, ok := patterns[kind]
	return p, ok
}

// Match runs the pattern of kind over text. Unknown kinds match nothing.
func Match(kind Kind, text string) []string {
	p, ok := patterns[kind]
	if !ok {
		return nil
	}
	return p.FindAll(text)
}

// IsIPv4 reports whether s is exactly one dotted-quad address.
func IsIPv4(s string) bool {
	return dottedQuad.MatchString(s)
}
