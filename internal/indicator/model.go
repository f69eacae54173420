package indicator

import (
	"errors"
	"fmt"
	"net/url"
)

// Kind is an indicator category. The string value is what export rows carry.
type Kind string

const (
	KindURL    Kind = "url"
	KindDomain Kind = "domain"
	KindIP     Kind = "ip"
	KindHash   Kind = "hash"
)

// Kinds lists the categories in presentation order.
var Kinds = []Kind{KindURL, KindDomain, KindIP, KindHash}

// IndicatorSet is the result of Extract. Every list is sorted and duplicate-free.
type IndicatorSet struct {
	URLs    []string `json:"urls"`
	Domains []string `json:"domains"`
	IPs     []string `json:"ips"`
	Hashes  []string `json:"hashes"`
}

// Values returns the list for kind.
func (s IndicatorSet) Values(kind Kind) []string {
	switch kind {
	case KindURL:
		return s.URLs
	case KindDomain:
		return s.Domains
	case KindIP:
		return s.IPs
	case KindHash:
		return s.Hashes
	}
	return nil
}

func (s IndicatorSet) Total() int {
	return len(s.URLs) + len(s.Domains) + len(s.IPs) + len(s.Hashes)
}

// DefaultKind is the first non-empty category, falling back to urls.
func (s IndicatorSet) DefaultKind() Kind {
	for _, k := range Kinds {
		if len(s.Values(k)) > 0 {
			return k
		}
	}
	return KindURL
}

// Param is one query pair. Duplicate keys are kept in appearance order.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// URLComponents holds the parts of a single parsed URL.
type URLComponents struct {
	Scheme   string  // "https"
	Host     string  // lowercase, punycode for IDN
	Port     string  // empty for default ports
	Path     string  // escaped path, "/" at minimum
	Query    string  // raw query without "?"
	Fragment string  // escaped fragment without "#"
	Params   []Param // decoded for display
}

// URLAnalysis is the result of Decompose.
type URLAnalysis struct {
	Input      string // raw input after wrapper stripping
	Components URLComponents
	Normalized string
	Decoded    string
	Flags      FlagSet

	HostUnicode       string // set only when Host carries punycode labels
	RegistrableDomain string // eTLD+1, empty for IPs and unknown suffixes
}

// ErrEmptyInput is returned when there is nothing to analyze.
var ErrEmptyInput = errors.New("empty input")

// ParseError reports that a URL could not be parsed even after scheme insertion.
type ParseError struct {
	Input string
	Err   error
}

// Error avoids repeating the input when Err is a *url.Error, which already
// names it.
func (e *ParseError) Error() string {
	var ue *url.Error
	if errors.As(e.Err, &ue) {
		return ue.Error()
	}
	return fmt.Sprintf("parse %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
