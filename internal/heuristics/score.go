// Package heuristics computes a continuous evidence score from comment text
// and fuses it with an external model confidence.
package heuristics

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/trustlens/evidence-verifier/internal/models"
)

const (
	strongWeight   = 0.35
	generalWeight  = 0.10
	negativeWeight = 0.25
	proximityBonus = 0.15

	maxStrong   = 3
	maxGeneral  = 5
	maxNegative = 3

	// proximityWindow is measured in characters from the start of a URL
	proximityWindow = 80

	maxTips         = 3
	maxEvidenceHits = 5
	maxNegativeHits = 3
)

// Rules are the regular expression families the scorer counts
type Rules struct {
	Strong   []*regexp.Regexp
	Citation []*regexp.Regexp
	Common   []*regexp.Regexp
	Stats    []*regexp.Regexp
	Linky    []*regexp.Regexp
	Hearsay  []*regexp.Regexp
}

var (
	urlPattern       = regexp.MustCompile(`(?i)https?://[^\s)]+`)
	quotesPattern    = regexp.MustCompile("(?m)\"[^\"]+\"|`[^`]+`|^> .*$")
	punctRunsPattern = regexp.MustCompile(`!{3,}|\?{3,}|\.{3,}|,{3,}`)
	profanityPattern = regexp.MustCompile(`(?i)\b(idiot|stupid|moron|trash|loser|shut up)\b`)
)

// DefaultRules returns the standard evidence, citation and hearsay families
func DefaultRules() Rules {
	return Rules{
		Strong: compileAll(
			`(?i)\bdoi:\s*\d{2}\.\d{4,9}/\S+`,
			`(?i)\barXiv:\s*\d{4}\.\d{4,5}(?:v\d+)?\b`,
			`(?i)\bpmid:\s*\d{5,9}\b`,
			`(?i)\bclinicaltrials\.gov/(?:ct2/show/)?(?:NCT)?\d{8}\b`,
			`(?i)\b(preprint|peer[-\s]?reviewed|systematic review|meta[-\s]?analysis)\b`,
			`(?i)\b(randomized controlled trial|rct)\b`,
			`(?i)\bwhite[-\s]?paper|technical report\b`,
		),
		Citation: compileAll(
			`(?i)\baccording to (the )?(study|report|paper|data|official|guidelines|meta[-\s]?analysis)\b`,
			`(?i)\b(as (reported|cited|noted|published) (by|in))\b`,
			`(?i)\b(source|sources?)\s*[:\-]\s*`,
			`(?i)\b(ref(?:erence)?s?)\s*[:#]\s*`,
			`(?i)\bvia\s+[A-Z][\w.&-]+`,
			`(?i)\bcited (by|in)\b`,
			`(?i)\bfact\s*sheet|press\s*release|policy (brief|note)\b`,
			`(?i)\bguideline(s)?|recommendation(s)?\b`,
		),
		Common: compileAll(
			`(?i)\bdata (from|shows?|suggests?|indicates?)\b`,
			`(?i)\b(evidence|backed|supported) (by|with)\b`,
			`(?i)\b(as per|per)\b`,
			`(?i)\bper (the )?(study|paper|report|docs?)\b`,
			`(?i)\bthe (numbers|stats|figures) (show|say|suggest)\b`,
			`(?i)\b(sources?|citations?) (available|included|below|in comments?)\b`,
			`(?i)\b(for reference|for context)\b`,
			`(?i)\bmethod(s|ology)?|protocol\b`,
			`(?i)\bappendix|supplementary (info|material|materials?)\b`,
			`(?i)\b(in|per) (Table|Fig(?:ure)?)\s*[A-Z]?\d+\b`,
			`(?i)\b(un|non)[-\s]?biased (source|data)\b`,
		),
		Stats: compileAll(
			`(?i)\bp\s*[<=>]\s*0?\.?\d+\b`,
			`(?i)\bn\s*=\s*\d{2,}\b`,
			`(?i)\b95%\s*ci\b`,
			`(?i)\bconfidence interval\b`,
			`(?i)\bodds ratio\b`,
			`(?i)\bhazard ratio\b`,
			`(?i)\br[-\s]?squared|r\^2\b`,
			`(?i)\bsample size\b`,
			`(?i)\bstatistically (significant|insignificant)\b`,
		),
		Linky: compileAll(
			`(?i)https?://[^\s)]+`,
			`(?i)\b\S+\.pdf\b`,
			`(?i)\((?:pdf|preprint)\)`,
		),
		Hearsay: compileAll(
			`(?i)\baccording to (me|my (friend|mom|dad|buddy)|someone|some (guy|dude|rando))\b`,
			`(?i)\bsource:\s*(trust me|just trust me|bro)\b`,
			`(?i)\b(i (think|guess)|imo|imho|to me)\b`,
			`(?i)\bi (heard|read somewhere)\b`,
			`(?i)\beveryone (knows|says)\b`,
		),
	}
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}

// Scorer computes heuristic evidence scores. It holds no mutable state and is
// safe for concurrent use.
type Scorer struct {
	rules Rules
}

// NewScorer creates a scorer using the default rules
func NewScorer() *Scorer {
	return &Scorer{rules: DefaultRules()}
}

// NewScorerWithRules creates a scorer using custom rule families
func NewScorerWithRules(rules Rules) *Scorer {
	return &Scorer{rules: rules}
}

// Score evaluates text. Strong anchors count every occurrence; general
// positives and hearsay count unique matched strings. General positives come
// only from the citation, common, statistical and link-like families, so
// adding evidence never lowers the score.
func (s *Scorer) Score(text string) models.HeuristicScore {
	capsPct := capRatio(text)
	punctRuns := len(punctRunsPattern.FindAllStringIndex(text, -1))
	quoteChars := 0
	for _, q := range quotesPattern.FindAllString(text, -1) {
		quoteChars += utf8.RuneCountInString(q)
	}
	textLen := utf8.RuneCountInString(text)
	quotePct := float64(quoteChars) / float64(max(1, textLen))
	profHits := len(profanityPattern.FindAllStringIndex(text, -1))

	urlStarts := make([]int, 0)
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		urlStarts = append(urlStarts, runeOffset(text, loc[0]))
	}
	linksCount := len(urlStarts)

	evidence := make(map[string]bool)
	strongCount := 0
	for _, rx := range s.rules.Strong {
		for _, m := range rx.FindAllString(text, -1) {
			strongCount++
			evidence[m] = true
		}
	}

	general := make(map[string]bool)
	for _, family := range [][]*regexp.Regexp{s.rules.Citation, s.rules.Common, s.rules.Stats, s.rules.Linky} {
		for _, rx := range family {
			for _, m := range rx.FindAllString(text, -1) {
				general[m] = true
				evidence[m] = true
			}
		}
	}

	negative := make(map[string]bool)
	for _, rx := range s.rules.Hearsay {
		for _, m := range rx.FindAllString(text, -1) {
			negative[m] = true
		}
	}

	score := float64(min(strongCount, maxStrong))*strongWeight +
		float64(min(len(general), maxGeneral))*generalWeight -
		float64(min(len(negative), maxNegative))*negativeWeight

	if s.nearURL(text, urlStarts) {
		score += proximityBonus
	}

	features := map[string]float64{
		"capsPct":   clamp01(capsPct),
		"punctRuns": float64(min(punctRuns, 5)) / 5.0,
		"quotePct":  clamp01(quotePct),
		"profRate":  float64(min(profHits, 5)) / 5.0,
		"urlCount":  float64(min(linksCount, 5)) / 5.0,
	}

	tips := make([]string, 0, maxTips)
	if strongCount > 0 {
		tips = append(tips, fmt.Sprintf("Strong anchors (%d).", strongCount))
	}
	if features["quotePct"] >= 0.15 {
		tips = append(tips, "Includes quotes/citations.")
	}
	if linksCount >= 1 {
		tips = append(tips, fmt.Sprintf("%d link(s).", linksCount))
	}
	if profHits >= 1 {
		tips = append(tips, fmt.Sprintf("%d profane term(s).", profHits))
	}
	if features["capsPct"] >= 0.35 {
		tips = append(tips, "High ALL-CAPS.")
	}
	if punctRuns >= 1 {
		tips = append(tips, "Repeated punctuation.")
	}
	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}

	return models.HeuristicScore{
		Score:        clamp01(score),
		Features:     features,
		Tips:         tips,
		EvidenceHits: firstSorted(evidence, maxEvidenceHits),
		NegativeHits: firstSorted(negative, maxNegativeHits),
		Raw: map[string]int{
			"linksCount":    linksCount,
			"quoteChars":    quoteChars,
			"strongCount":   strongCount,
			"generalCount":  len(general),
			"negativeCount": len(negative),
		},
	}
}

// nearURL reports whether the first match of any citation, common or
// statistical rule starts within proximityWindow characters of a URL.
func (s *Scorer) nearURL(text string, urlStarts []int) bool {
	if len(urlStarts) == 0 {
		return false
	}

	for _, family := range [][]*regexp.Regexp{s.rules.Citation, s.rules.Common, s.rules.Stats} {
		for _, rx := range family {
			loc := rx.FindStringIndex(text)
			if loc == nil {
				continue
			}
			start := runeOffset(text, loc[0])
			for _, u := range urlStarts {
				if absInt(start-u) <= proximityWindow {
					return true
				}
			}
		}
	}
	return false
}

// Fuse blends a model credibility with a heuristic score, weighted toward
// the model.
func Fuse(modelConfidence, heuristicScore float64) float64 {
	return clamp01(0.70*modelConfidence + 0.30*heuristicScore)
}

// BadgeFromFinal maps a fused score to a badge color
func BadgeFromFinal(final float64) models.BadgeColor {
	switch {
	case final >= 0.75:
		return models.BadgeGreen
	case final >= 0.45:
		return models.BadgeYellow
	default:
		return models.BadgeRed
	}
}

func capRatio(text string) float64 {
	letters, upper := 0, 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'A' && c <= 'Z':
			letters++
			upper++
		case c >= 'a' && c <= 'z':
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func firstSorted(set map[string]bool, limit int) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func runeOffset(text string, byteOffset int) int {
	return utf8.RuneCountInString(text[:byteOffset])
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
