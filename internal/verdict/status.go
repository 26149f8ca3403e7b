// Package verdict fuses per-URL verification results and pattern detection
// into a comment-level evidence status, and combines that status with a
// toxicity tone into the badge shown to readers.
package verdict

import (
	"fmt"
	"strings"

	"github.com/trustlens/evidence-verifier/internal/models"
)

// Short tooltip texts
const (
	TooltipVerified        = "Verified source"
	TooltipMixed           = "Mixed evidence"
	TooltipUnverified      = "Unverified source ⚠️"
	TooltipEvidencePresent = "Evidence present, unverified"
	TooltipNone            = "No evidence detected"
)

// statusRule returns a status when it applies. Rules are evaluated in order.
type statusRule func(results []models.VerificationResult, detection models.PatternDetection) (models.EvidenceStatus, bool)

var statusRules = []statusRule{
	func(results []models.VerificationResult, _ models.PatternDetection) (models.EvidenceStatus, bool) {
		return models.StatusVerified, len(results) > 0 && countVerified(results) == len(results)
	},
	func(results []models.VerificationResult, _ models.PatternDetection) (models.EvidenceStatus, bool) {
		return models.StatusMixed, countVerified(results) > 0
	},
	func(results []models.VerificationResult, _ models.PatternDetection) (models.EvidenceStatus, bool) {
		return models.StatusUnverified, len(results) > 0
	},
	func(_ []models.VerificationResult, detection models.PatternDetection) (models.EvidenceStatus, bool) {
		return models.StatusEvidencePresentUnverified, detection.HasEvidencePatterns
	},
}

// Status returns the evidence status for a comment. Linked sources always
// take precedence over citation-like language.
func Status(results []models.VerificationResult, detection models.PatternDetection) models.EvidenceStatus {
	for _, rule := range statusRules {
		if status, ok := rule(results, detection); ok {
			return status
		}
	}
	return models.StatusNone
}

// Decide returns the evidence status together with its short and detailed
// tooltips
func Decide(results []models.VerificationResult, detection models.PatternDetection) models.CommentVerdict {
	status := Status(results, detection)
	verdict := models.CommentVerdict{Status: status}

	switch status {
	case models.StatusVerified:
		verdict.TooltipShort = TooltipVerified
		verdict.TooltipDetail = TooltipVerified
		if domains := domainsWhere(results, true); len(domains) > 0 {
			verdict.TooltipDetail = fmt.Sprintf("Verified source: %s", strings.Join(domains, ", "))
		}
	case models.StatusMixed:
		verified := countVerified(results)
		verdict.TooltipShort = TooltipMixed
		verdict.TooltipDetail = fmt.Sprintf("Mixed evidence: %d verified (%s), %d unverified (%s)",
			verified, strings.Join(domainsWhere(results, true), ", "),
			len(results)-verified, strings.Join(domainsWhere(results, false), ", "))
	case models.StatusUnverified:
		verdict.TooltipShort = TooltipUnverified
		verdict.TooltipDetail = "Unverified: links unreachable or error"
		if domains := domainsWhere(results, false); len(domains) > 0 {
			verdict.TooltipDetail = fmt.Sprintf("Unverified source: %s", strings.Join(domains, ", "))
		}
	case models.StatusEvidencePresentUnverified:
		verdict.TooltipShort = TooltipEvidencePresent
		verdict.TooltipDetail = fmt.Sprintf("Evidence cues detected (%s) but no verifiable sources linked", cueSummary(detection))
	default:
		verdict.TooltipShort = TooltipNone
		verdict.TooltipDetail = "Opinion only; no evidence detected"
	}

	return verdict
}

func countVerified(results []models.VerificationResult) int {
	n := 0
	for _, r := range results {
		if r.Verified {
			n++
		}
	}
	return n
}

// domainsWhere lists unique domains of results with the given verified flag,
// in first-seen order. Results without a domain fall back to their URL.
func domainsWhere(results []models.VerificationResult, verified bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		if r.Verified != verified {
			continue
		}
		label := r.Domain
		if label == "" {
			label = r.InputURL
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func cueSummary(detection models.PatternDetection) string {
	var parts []string
	if n := len(detection.SentencePatternMatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d citation patterns", n))
	}
	if n := len(detection.PhraseMatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d academic phrases", n))
	}
	if n := len(detection.CredibilityMatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d credibility indicators", n))
	}
	if n := len(detection.KeywordMatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d keywords", n))
	}
	return strings.Join(parts, ", ")
}
