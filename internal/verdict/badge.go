package verdict

import (
	"github.com/trustlens/evidence-verifier/internal/models"
)

// Toxicity levels reported alongside a badge
const (
	LevelToxic   = "Toxic"
	LevelMild    = "Mild"
	LevelNeutral = "Neutral"
)

// ToxicityLevel maps a tone to its level. Unknown tones are neutral.
func ToxicityLevel(tone models.Tone) string {
	switch tone {
	case models.ToneToxic:
		return LevelToxic
	case models.ToneMild:
		return LevelMild
	default:
		return LevelNeutral
	}
}

// EvidenceFields maps a status to its evidence present and verified fields
func EvidenceFields(status models.EvidenceStatus) (present, verified string) {
	switch status {
	case models.StatusVerified:
		return "Yes", "Yes"
	case models.StatusMixed:
		return "Yes", "Partial"
	case models.StatusUnverified, models.StatusEvidencePresentUnverified:
		return "Yes", "No"
	default:
		return "No", "N/A"
	}
}

// DecideBadge combines a toxicity tone with an evidence status. Toxic and
// mild tones decide the color on their own; a neutral tone stays green only
// when evidence is verified or absent.
func DecideBadge(tone models.Tone, status models.EvidenceStatus) models.BadgeDecision {
	level := ToxicityLevel(tone)
	present, verified := EvidenceFields(status)

	var color models.BadgeColor
	switch level {
	case LevelToxic:
		color = models.BadgeRed
	case LevelMild:
		color = models.BadgeYellow
	default:
		if status == models.StatusVerified || status == models.StatusNone {
			color = models.BadgeGreen
		} else {
			color = models.BadgeYellow
		}
	}

	return models.BadgeDecision{
		Color:            color,
		ToxicityLevel:    level,
		EvidencePresent:  present,
		EvidenceVerified: verified,
		Summary:          Summary(level, present, verified),
	}
}

// Summary is the one-line description of tone and evidence shown with a badge
func Summary(level, present, verified string) string {
	var tone, evidence string

	switch level {
	case LevelToxic:
		tone = "Strong language"
	case LevelMild:
		tone = "Slightly strong language"
	default:
		tone = "Balanced or neutral tone"
	}

	switch {
	case present == "Yes" && verified == "Yes":
		evidence = "verifiable evidence"
		if level == LevelToxic {
			evidence = "verifiable evidence present"
		}
	case present == "Yes" && (verified == "No" || verified == "Partial"):
		evidence = "unverifiable evidence"
	default:
		evidence = "no evidence"
	}

	return tone + ", " + evidence
}
