package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/trustlens/evidence-verifier/internal/models"
)

type compiledSentence struct {
	SentencePattern
	rx *regexp.Regexp
}

type compiledCredibility struct {
	kind string
	rx   *regexp.Regexp
}

// Detector finds evidence cues in text. It is safe for concurrent use.
type Detector struct {
	keywords      []string
	keywordIndex  *ahocorasick.Matcher
	phrases       []string
	phraseIndex   *ahocorasick.Matcher
	sentences     []compiledSentence
	credibilities []compiledCredibility
}

// NewDetector compiles catalog into a detector
func NewDetector(catalog Catalog) (*Detector, error) {
	d := &Detector{
		keywords: normalizeTerms(catalog.Keywords),
		phrases:  normalizeTerms(catalog.Phrases),
	}

	if len(d.keywords) > 0 {
		d.keywordIndex = ahocorasick.NewStringMatcher(d.keywords)
	}
	if len(d.phrases) > 0 {
		d.phraseIndex = ahocorasick.NewStringMatcher(d.phrases)
	}

	for _, p := range catalog.SentencePatterns {
		rx, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid sentence pattern %q: %w", p.Name, err)
		}
		d.sentences = append(d.sentences, compiledSentence{SentencePattern: p, rx: rx})
	}

	for _, c := range catalog.Credibility {
		rx, err := regexp.Compile(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid credibility indicator %q: %w", c.Type, err)
		}
		d.credibilities = append(d.credibilities, compiledCredibility{kind: c.Type, rx: rx})
	}

	return d, nil
}

// Detect reports every evidence cue found in text along with an overall
// confidence. Empty text yields no matches.
func (d *Detector) Detect(text string) models.PatternDetection {
	result := models.PatternDetection{
		KeywordMatches:         []string{},
		SentencePatternMatches: []models.SentencePatternMatch{},
		PhraseMatches:          []string{},
		CredibilityMatches:     []models.CredibilityMatch{},
		Confidence:             models.PatternConfidenceNone,
	}
	if strings.TrimSpace(text) == "" {
		return result
	}

	lowered := []byte(strings.ToLower(text))
	result.KeywordMatches = matchTerms(d.keywordIndex, d.keywords, lowered)
	result.PhraseMatches = matchTerms(d.phraseIndex, d.phrases, lowered)

	for _, s := range d.sentences {
		if match := s.rx.FindString(text); match != "" {
			result.SentencePatternMatches = append(result.SentencePatternMatches, models.SentencePatternMatch{
				Pattern:     s.Name,
				Description: s.Description,
				Match:       strings.TrimSpace(match),
			})
		}
	}

	seen := make(map[string]bool)
	for _, c := range d.credibilities {
		for _, match := range c.rx.FindAllString(text, -1) {
			indicator := strings.TrimRight(strings.TrimSpace(match), ",")
			key := c.kind + "|" + strings.ToLower(indicator)
			if seen[key] {
				continue
			}
			seen[key] = true
			result.CredibilityMatches = append(result.CredibilityMatches, models.CredibilityMatch{
				Type:      c.kind,
				Indicator: indicator,
			})
		}
	}

	result.Confidence = Confidence(result)
	result.HasEvidencePatterns = result.Confidence != models.PatternConfidenceNone
	return result
}

// Confidence buckets a detection: high for two citation shapes, an academic
// phrase or two credibility cues; medium for a single citation shape; low for
// any other cue.
func Confidence(d models.PatternDetection) models.PatternConfidence {
	sentences := len(d.SentencePatternMatches)
	phrases := len(d.PhraseMatches)
	credibility := len(d.CredibilityMatches)

	switch {
	case sentences >= 2 || phrases >= 1 || credibility >= 2:
		return models.PatternConfidenceHigh
	case sentences >= 1:
		return models.PatternConfidenceMedium
	case len(d.KeywordMatches) > 0 || credibility > 0:
		return models.PatternConfidenceLow
	default:
		return models.PatternConfidenceNone
	}
}

func matchTerms(index *ahocorasick.Matcher, terms []string, text []byte) []string {
	if index == nil {
		return []string{}
	}

	hits := index.MatchThreadSafe(text)
	sort.Ints(hits)

	out := make([]string, 0, len(hits))
	seen := make(map[int]bool, len(hits))
	for _, hit := range hits {
		if hit < 0 || hit >= len(terms) || seen[hit] {
			continue
		}
		seen[hit] = true
		out = append(out, terms[hit])
	}
	return out
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}
