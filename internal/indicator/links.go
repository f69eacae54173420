package indicator

import (
	"net/url"
	"strings"
)

const (
	virusTotalSearch = "https://www.virustotal.com/gui/search/"
	abuseIPDBCheck   = "https://www.abuseipdb.com/check/"
	abuseIPDBHome    = "https://www.abuseipdb.com/"
)

// Links are third-party lookup pages for one indicator. They are only
// built here, never fetched.
type Links struct {
	VirusTotal string `json:"virusTotal"`
	AbuseIPDB  string `json:"abuseIPDB"`
}

// InvestigateLinks builds lookup links for a possibly defanged value.
// AbuseIPDB only gets a direct check link for IPs.
func InvestigateLinks(kind Kind, value string) Links {
	q := escapeComponent(Refang(value))
	l := Links{
		VirusTotal: virusTotalSearch + q,
		AbuseIPDB:  abuseIPDBHome,
	}
	if kind == KindIP {
		l.AbuseIPDB = abuseIPDBCheck + q
	}
	return l
}

// componentUnescaper undoes the QueryEscape choices that differ from
// JavaScript's encodeURIComponent: space as "+" and escaped !'()*.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent encodes s for use as one URL path or query component.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
