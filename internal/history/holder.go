package history

import (
	"sync/atomic"
	"time"

	"ioclens/internal/indicator"
)

type Extraction struct {
	Set indicator.IndicatorSet
	At  time.Time
}

type Analysis struct {
	Result indicator.URLAnalysis
	At     time.Time
}

// Holder keeps the most recent extraction and URL analysis. Readers never
// block writers; each Set replaces the previous value wholesale.
type Holder struct {
	extraction atomic.Pointer[Extraction]
	analysis   atomic.Pointer[Analysis]
}

func NewHolder() *Holder {
	h := &Holder{}
	h.extraction.Store(&Extraction{Set: indicator.Extract("")})
	return h
}

func (h *Holder) Extraction() *Extraction {
	return h.extraction.Load()
}

func (h *Holder) SetExtraction(s indicator.IndicatorSet, at time.Time) {
	h.extraction.Store(&Extraction{Set: s, At: at})
}

// Analysis returns false until the first successful analysis.
func (h *Holder) Analysis() (*Analysis, bool) {
	a := h.analysis.Load()
	return a, a != nil
}

func (h *Holder) SetAnalysis(a indicator.URLAnalysis, at time.Time) {
	h.analysis.Store(&Analysis{Result: a, At: at})
}
