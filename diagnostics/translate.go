package diagnostics

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultThreshold is the similarity a source line must reach to be chosen
// by the fuzzy strategy.
const DefaultThreshold = 0.5

// Translator maps compiler errors onto original source lines.
//
// With a LineMap it subtracts the known offset. Without one it scores every
// original line against the compiled line the error points at and picks the
// best; ties go to the lowest line number and scores below Threshold fall
// back to line 1. Output depends only on the inputs.
type Translator struct {
	Threshold float64

	swg *metrics.SmithWatermanGotoh
	lev *metrics.Levenshtein
}

// NewTranslator returns a translator using DefaultThreshold.
func NewTranslator() *Translator {
	swg := metrics.NewSmithWatermanGotoh()
	swg.CaseSensitive = true
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = true
	return &Translator{Threshold: DefaultThreshold, swg: swg, lev: lev}
}

// Translate picks the exact strategy when lines is non-nil and the fuzzy one
// otherwise.
func (t *Translator) Translate(errs []CompilerError, source, compiled string, lines *LineMap) []Marker {
	if lines != nil {
		return t.Exact(errs, source, *lines)
	}
	return t.Fuzzy(errs, source, compiled)
}

// Exact maps errors through a fixed insertion offset.
func (t *Translator) Exact(errs []CompilerError, source string, m LineMap) []Marker {
	n := len(splitLines(source))
	markers := make([]Marker, 0, len(errs))
	for _, e := range errs {
		line := 1
		if e.Line > 0 {
			line = clamp(m.Original(e.Line), 1, n)
		}
		markers = append(markers, Marker{Line: line, Message: rewriteLine(e.Message, line)})
	}
	return markers
}

// Fuzzy maps errors by matching line content.
func (t *Translator) Fuzzy(errs []CompilerError, source, compiled string) []Marker {
	sourceLines := splitLines(source)
	compiledLines := splitLines(compiled)
	markers := make([]Marker, 0, len(errs))
	for _, e := range errs {
		line := 1
		if e.Line >= 1 && e.Line <= len(compiledLines) {
			line = t.bestMatch(sourceLines, compiledLines[e.Line-1])
		}
		markers = append(markers, Marker{Line: line, Message: rewriteLine(e.Message, line)})
	}
	return markers
}

func (t *Translator) bestMatch(sourceLines []string, target string) int {
	best, bestScore := 1, -1.0
	for i, line := range sourceLines {
		if s := t.Score(line, target); s > bestScore {
			best, bestScore = i+1, s
		}
	}
	if bestScore < t.threshold() {
		return 1
	}
	return best
}

// Score rates how well an original line matches a compiled line, in [0, 1].
// It averages a local alignment score, which rewards partial matches, with
// a normalized edit distance, which penalizes length differences. Blank
// lines never match.
func (t *Translator) Score(original, compiled string) float64 {
	a, b := strings.TrimSpace(original), strings.TrimSpace(compiled)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	swg, lev := t.swg, t.lev
	if swg == nil || lev == nil {
		d := NewTranslator()
		swg, lev = d.swg, d.lev
	}
	return (strutil.Similarity(a, b, swg) + strutil.Similarity(a, b, lev)) / 2
}

func (t *Translator) threshold() float64 {
	if t.Threshold <= 0 {
		return DefaultThreshold
	}
	return t.Threshold
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}
