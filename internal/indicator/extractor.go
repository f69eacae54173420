package indicator

import (
	"sort"
	"strings"
)

// Extract pulls urls, domains, IPv4 addresses and hashes out of free text.
// Patterns run over the untouched input: defanged hxxp(s) links match the
// url pattern, bracket-defanged domains do not match the domain pattern.
// The result is deterministic for a given text.
func Extract(text string) IndicatorSet {
	urls := trimAll(Match(KindURL, text))
	ips := trimAll(Match(KindIP, text))

	hashes := trimAll(Match(KindHash, text))
	for i, h := range hashes {
		hashes[i] = strings.ToLower(h)
	}

	return IndicatorSet{
		URLs:    uniqueSorted(urls),
		Domains: uniqueSorted(domainsOf(text, urls)),
		IPs:     uniqueSorted(ips),
		Hashes:  uniqueSorted(hashes),
	}
}

// domainsOf builds the domain list: pattern candidates minus the ones that
// sit inside an email address, plus the hosts of every url found.
func domainsOf(text string, urls []string) []string {
	var domains []string
	for _, d := range trimAll(Match(KindDomain, text)) {
		if IsEmailLikeDomain(text, d) {
			continue
		}
		domains = append(domains, d)
	}

	for _, u := range urls {
		if host, ok := hostOf(u); ok {
			domains = append(domains, host)
		}
	}

	out := domains[:0]
	for _, d := range domains {
		if !strings.Contains(d, ".") {
			continue
		}
		out = append(out, strings.ToLower(d))
	}
	return out
}

// IsEmailLikeDomain reports whether the first case-insensitive occurrence
// of domain in text is preceded by "@". Later occurrences are not looked at,
// so a domain seen in an email anywhere first is dropped entirely.
func IsEmailLikeDomain(text, domain string) bool {
	if domain == "" {
		return false
	}
	idx := strings.Index(asciiLower(text), asciiLower(domain))
	if idx <= 0 {
		return false
	}
	return text[idx-1] == '@'
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// uniqueSorted returns a new sorted, duplicate-free slice. Never nil.
func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
