package http

import (
	"bytes"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ioclens/internal/history"
	"ioclens/internal/indicator"
)

func (g *Gateway) exportJSON(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defang, err := g.defangParam(r)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.attach(w, "iocs.json")
	g.write(w, indicator.NewExtractionExport(g.lastExtraction(r), defang, g.now()))
}

func (g *Gateway) exportCSV(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	set, err := g.lastSet(r)
	if err != nil {
		g.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := indicator.WriteCSV(&buf, set); err != nil {
		g.log.Error("write csv", zap.Error(err))
		g.fail(w, r, status.Error(codes.Internal, "csv export failed"))
		return
	}
	g.attach(w, "iocs.csv")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (g *Gateway) exportText(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	set, err := g.lastSet(r)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indicator.Sections(set)))
}

func (g *Gateway) exportAnalysis(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defang, err := g.defangParam(r)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	var (
		last *history.Analysis
		ok   bool
	)
	if h, found := g.store.Lookup(requestSession(r)); found {
		last, ok = h.Analysis()
	}
	if !ok {
		g.fail(w, r, status.Error(codes.NotFound, "no url analysis yet"))
		return
	}
	g.attach(w, "url-analysis.json")
	g.write(w, indicator.NewReport(&last.Result, defang, last.At))
}

// lastExtraction returns the session's most recent extraction, or an empty
// set for a request without a known session.
func (g *Gateway) lastExtraction(r *http.Request) indicator.IndicatorSet {
	h, ok := g.store.Lookup(requestSession(r))
	if !ok {
		return indicator.Extract("")
	}
	return h.Extraction().Set
}

// lastSet returns the session's most recent extraction, defanged when
// requested.
func (g *Gateway) lastSet(r *http.Request) (indicator.IndicatorSet, error) {
	defang, err := g.defangParam(r)
	if err != nil {
		return indicator.IndicatorSet{}, err
	}
	set := g.lastExtraction(r)
	if defang {
		set = set.Defanged()
	}
	return set, nil
}

func (g *Gateway) attach(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}
