package indicator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// isoMillis matches the ISO-8601 form browsers print for timestamps.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t as ISO-8601 in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// Defanged returns a copy of s safe to display: urls are fully defanged,
// domains get bracketed dots, ips and hashes are left alone.
func (s IndicatorSet) Defanged() IndicatorSet {
	out := IndicatorSet{
		URLs:    make([]string, len(s.URLs)),
		Domains: make([]string, len(s.Domains)),
		IPs:     append([]string{}, s.IPs...),
		Hashes:  append([]string{}, s.Hashes...),
	}
	for i, u := range s.URLs {
		out.URLs[i] = Defang(u)
	}
	for i, d := range s.Domains {
		out.Domains[i] = DefangDots(d)
	}
	return out
}

// ExtractionExport is the JSON document for an extraction.
type ExtractionExport struct {
	CreatedAt string `json:"createdAt"`
	Defanged  bool   `json:"defanged"`
	IndicatorSet
}

func NewExtractionExport(s IndicatorSet, defang bool, now time.Time) ExtractionExport {
	if defang {
		s = s.Defanged()
	}
	return ExtractionExport{CreatedAt: Timestamp(now), Defanged: defang, IndicatorSet: s}
}

// WriteCSV writes a "type,value" table, one row per indicator.
func WriteCSV(w io.Writer, s IndicatorSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"type", "value"}); err != nil {
		return err
	}
	for _, k := range Kinds {
		for _, v := range s.Values(k) {
			if err := cw.Write([]string{string(k), v}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

var sectionTitles = map[Kind]string{
	KindURL:    "[URLs]",
	KindDomain: "[Domains]",
	KindIP:     "[IPs]",
	KindHash:   "[Hashes]",
}

// Sections renders s as titled blocks for pasting into tickets.
// Empty categories are left out; an empty set renders as "".
func Sections(s IndicatorSet) string {
	var lines []string
	for _, k := range Kinds {
		vals := s.Values(k)
		if len(vals) == 0 {
			continue
		}
		lines = append(lines, sectionTitles[k])
		lines = append(lines, vals...)
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// Report is the JSON document for one URL analysis.
type Report struct {
	CreatedAt  string           `json:"createdAt"`
	Normalized string           `json:"normalized"`
	Decoded    string           `json:"decoded"`
	Components ReportComponents `json:"components"`
	Params     []Param          `json:"params"`
	Flags      []string         `json:"flags"`
}

type ReportComponents struct {
	Scheme   string `json:"scheme"`
	Host     string `json:"host"`
	Path     string `json:"path"`
	Query    string `json:"query"`
	Fragment string `json:"fragment"`
}

// NewReport builds the export document for a. When defang is set the
// normalized and decoded strings are defanged and the host gets bracketed
// dots; nothing else is touched.
func NewReport(a *URLAnalysis, defang bool, now time.Time) Report {
	r := Report{
		CreatedAt:  Timestamp(now),
		Normalized: a.Normalized,
		Decoded:    a.Decoded,
		Components: ReportComponents{
			Scheme:   a.Components.Scheme,
			Host:     a.Components.Host,
			Path:     a.Components.Path,
			Query:    prefixed("?", a.Components.Query),
			Fragment: prefixed("#", a.Components.Fragment),
		},
		Params: append([]Param{}, a.Components.Params...),
		Flags:  append([]string{}, a.Flags...),
	}
	if defang {
		r.Normalized = Defang(r.Normalized)
		r.Decoded = Defang(r.Decoded)
		r.Components.Host = DefangDots(r.Components.Host)
	}
	return r
}

func prefixed(p, s string) string {
	if s == "" {
		return ""
	}
	return p + s
}
