package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trustlens/evidence-verifier/internal/models"
)

func result(domain string, verified bool) models.VerificationResult {
	return models.VerificationResult{InputURL: "https://" + domain + "/x", Domain: domain, Verified: verified}
}

func withPatterns() models.PatternDetection {
	return models.PatternDetection{
		HasEvidencePatterns:    true,
		SentencePatternMatches: []models.SentencePatternMatch{{Pattern: "a"}, {Pattern: "b"}},
		PhraseMatches:          []string{"peer-reviewed"},
		CredibilityMatches:     []models.CredibilityMatch{{Type: "statistical_claim", Indicator: "75%"}},
		Confidence:             models.PatternConfidenceHigh,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		results []models.VerificationResult
		pattern models.PatternDetection
		status  models.EvidenceStatus
		short   string
		detail  string
	}{
		{
			name:    "all verified",
			results: []models.VerificationResult{result("nih.gov", true), result("bbc.co.uk", true), result("nih.gov", true)},
			status:  models.StatusVerified,
			short:   "Verified source",
			detail:  "Verified source: nih.gov, bbc.co.uk",
		},
		{
			name:    "mixed",
			results: []models.VerificationResult{result("bbc.com", true), result("fakeblog123.xyz", false)},
			status:  models.StatusMixed,
			short:   "Mixed evidence",
			detail:  "Mixed evidence: 1 verified (bbc.com), 1 unverified (fakeblog123.xyz)",
		},
		{
			name:    "none verified",
			results: []models.VerificationResult{result("dead.example", false)},
			status:  models.StatusUnverified,
			short:   "Unverified source ⚠️",
			detail:  "Unverified source: dead.example",
		},
		{
			name:    "unverified without domains",
			results: []models.VerificationResult{{Verified: false}},
			status:  models.StatusUnverified,
			short:   "Unverified source ⚠️",
			detail:  "Unverified: links unreachable or error",
		},
		{
			name:    "links outrank patterns",
			results: []models.VerificationResult{result("dead.example", false)},
			pattern: withPatterns(),
			status:  models.StatusUnverified,
			short:   "Unverified source ⚠️",
			detail:  "Unverified source: dead.example",
		},
		{
			name:    "patterns without links",
			pattern: withPatterns(),
			status:  models.StatusEvidencePresentUnverified,
			short:   "Evidence present, unverified",
			detail:  "Evidence cues detected (2 citation patterns, 1 academic phrases, 1 credibility indicators) but no verifiable sources linked",
		},
		{
			name: "keywords only",
			pattern: models.PatternDetection{
				HasEvidencePatterns: true,
				KeywordMatches:      []string{"according to"},
				Confidence:          models.PatternConfidenceLow,
			},
			status: models.StatusEvidencePresentUnverified,
			short:  "Evidence present, unverified",
			detail: "Evidence cues detected (1 keywords) but no verifiable sources linked",
		},
		{
			name:   "nothing",
			status: models.StatusNone,
			short:  "No evidence detected",
			detail: "Opinion only; no evidence detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := Decide(tt.results, tt.pattern)

			assert.Equal(t, tt.status, verdict.Status)
			assert.Equal(t, tt.short, verdict.TooltipShort)
			assert.Equal(t, tt.detail, verdict.TooltipDetail)
		})
	}
}

func TestDecideBadge(t *testing.T) {
	statuses := []models.EvidenceStatus{
		models.StatusVerified,
		models.StatusMixed,
		models.StatusUnverified,
		models.StatusEvidencePresentUnverified,
		models.StatusNone,
	}

	expected := map[models.Tone]map[models.EvidenceStatus]models.BadgeColor{
		models.ToneToxic: {
			models.StatusVerified:                  models.BadgeRed,
			models.StatusMixed:                     models.BadgeRed,
			models.StatusUnverified:                models.BadgeRed,
			models.StatusEvidencePresentUnverified: models.BadgeRed,
			models.StatusNone:                      models.BadgeRed,
		},
		models.ToneMild: {
			models.StatusVerified:                  models.BadgeYellow,
			models.StatusMixed:                     models.BadgeYellow,
			models.StatusUnverified:                models.BadgeYellow,
			models.StatusEvidencePresentUnverified: models.BadgeYellow,
			models.StatusNone:                      models.BadgeYellow,
		},
		models.ToneNeutral: {
			models.StatusVerified:                  models.BadgeGreen,
			models.StatusMixed:                     models.BadgeYellow,
			models.StatusUnverified:                models.BadgeYellow,
			models.StatusEvidencePresentUnverified: models.BadgeYellow,
			models.StatusNone:                      models.BadgeGreen,
		},
	}

	for tone, byStatus := range expected {
		for _, status := range statuses {
			decision := DecideBadge(tone, status)
			assert.Equal(t, byStatus[status], decision.Color, "tone=%s status=%s", tone, status)
		}
	}
}

func TestDecideBadge_UnknownToneIsNeutral(t *testing.T) {
	decision := DecideBadge(models.Tone("purple"), models.StatusNone)

	assert.Equal(t, models.BadgeGreen, decision.Color)
	assert.Equal(t, LevelNeutral, decision.ToxicityLevel)
}

func TestDecideBadge_Fields(t *testing.T) {
	tests := []struct {
		tone     models.Tone
		status   models.EvidenceStatus
		level    string
		present  string
		verified string
		summary  string
	}{
		{models.ToneToxic, models.StatusVerified, "Toxic", "Yes", "Yes", "Strong language, verifiable evidence present"},
		{models.ToneToxic, models.StatusMixed, "Toxic", "Yes", "Partial", "Strong language, unverifiable evidence"},
		{models.ToneToxic, models.StatusNone, "Toxic", "No", "N/A", "Strong language, no evidence"},
		{models.ToneMild, models.StatusVerified, "Mild", "Yes", "Yes", "Slightly strong language, verifiable evidence"},
		{models.ToneMild, models.StatusEvidencePresentUnverified, "Mild", "Yes", "No", "Slightly strong language, unverifiable evidence"},
		{models.ToneMild, models.StatusNone, "Mild", "No", "N/A", "Slightly strong language, no evidence"},
		{models.ToneNeutral, models.StatusVerified, "Neutral", "Yes", "Yes", "Balanced or neutral tone, verifiable evidence"},
		{models.ToneNeutral, models.StatusUnverified, "Neutral", "Yes", "No", "Balanced or neutral tone, unverifiable evidence"},
		{models.ToneNeutral, models.StatusNone, "Neutral", "No", "N/A", "Balanced or neutral tone, no evidence"},
	}

	for _, tt := range tests {
		decision := DecideBadge(tt.tone, tt.status)

		assert.Equal(t, tt.level, decision.ToxicityLevel)
		assert.Equal(t, tt.present, decision.EvidencePresent)
		assert.Equal(t, tt.verified, decision.EvidenceVerified)
		assert.Equal(t, tt.summary, decision.Summary)
	}
}
