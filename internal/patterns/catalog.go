// Package patterns detects citation-like language in comments that carry no
// links: evidence keywords, citation sentence shapes, academic phrases and
// credibility indicators.
package patterns

// SentencePattern is a regular expression describing a citation shape
type SentencePattern struct {
	Name        string
	Description string
	Expr        string
}

// CredibilityIndicator is a typed regular expression for a credibility cue
type CredibilityIndicator struct {
	Type string
	Expr string
}

// Catalog is the full set of evidence cues a Detector looks for. Keywords and
// phrases are matched case-insensitively as substrings, so they should stay
// multi-word to avoid firing on ordinary opinion text.
type Catalog struct {
	Keywords         []string
	SentencePatterns []SentencePattern
	Phrases          []string
	Credibility      []CredibilityIndicator
}

// Credibility indicator types
const (
	CredibilityExpert        = "expert_attribution"
	CredibilityInstitutional = "institutional_source"
	CredibilityStatistical   = "statistical_claim"
	CredibilityResearch      = "research_reference"
)

// DefaultCatalog returns the cues used by the analysis service
func DefaultCatalog() Catalog {
	return Catalog{
		Keywords: []string{
			"according to",
			"research shows",
			"research suggests",
			"studies show",
			"study shows",
			"studies found",
			"study found",
			"data shows",
			"data indicates",
			"evidence suggests",
			"evidence shows",
			"researchers found",
			"scientists found",
			"survey found",
			"published in",
			"et al.",
		},
		SentencePatterns: []SentencePattern{
			{
				Name:        "according_to_source",
				Description: "Attributes a claim to a study, report or data",
				Expr:        `(?i)\baccording to (?:a |an |the |recent |new |this |that )*(?:study|studies|research|report|survey|analysis|data|paper|researchers|scientists|experts|statistics)\b`,
			},
			{
				Name:        "research_finding",
				Description: "States what research or a study found",
				Expr:        `(?i)\b(?:research|studies|a study|the study|experiments?|trials?|surveys?|researchers|scientists)\s+(?:shows?|found|finds|suggests?|indicates?|demonstrates?|confirms?|reveals?|proves?)\b`,
			},
			{
				Name:        "data_finding",
				Description: "States what data or statistics show",
				Expr:        `(?i)\b(?:data|numbers|statistics|figures|stats)\s+(?:shows?|indicates?|suggests?|reveals?|confirms?)\b`,
			},
			{
				Name:        "percentage_claim",
				Description: "Quantified share of a population",
				Expr:        `\b\d+(?:\.\d+)?\s?%\s+of\b`,
			},
			{
				Name:        "author_year_citation",
				Description: "Parenthetical author-year citation",
				Expr:        `\([A-Z][A-Za-z'-]+(?:\s+et al\.?|\s+(?:and|&)\s+[A-Z][A-Za-z'-]+)?,?\s+(?:19|20)\d{2}[a-z]?\)`,
			},
			{
				Name:        "publication_reference",
				Description: "Refers to where a finding was published",
				Expr:        `(?i)\bpublished (?:in|by)\b`,
			},
			{
				Name:        "named_expert",
				Description: "Attributes a claim to a titled expert",
				Expr:        `\b(?:Dr|Prof)\.?\s+[A-Z][a-z]+`,
			},
			{
				Name:        "study_reference",
				Description: "Refers to a specific study",
				Expr:        `(?i)\ba (?:recent |new |large |major )?study (?:published|conducted|by|from|in)\b`,
			},
			{
				Name:        "identifier_citation",
				Description: "DOI or arXiv identifier",
				Expr:        `(?i)\b(?:doi:\s*10\.\d{4,9}/\S+|arxiv:\s*\d{4}\.\d{4,5})`,
			},
		},
		Phrases: []string{
			"peer-reviewed",
			"peer reviewed",
			"systematic review",
			"meta-analysis",
			"meta analysis",
			"randomized controlled trial",
			"randomised controlled trial",
			"clinical trial",
			"double-blind",
			"double blind",
			"statistically significant",
			"longitudinal study",
			"cohort study",
			"control group",
			"sample size",
			"confidence interval",
			"empirical evidence",
			"literature review",
			"conducted at",
			"conducted by",
			"white paper",
			"technical report",
		},
		Credibility: []CredibilityIndicator{
			{
				Type: CredibilityExpert,
				Expr: `(?i)\b(?:dr\.|prof\.|professor|researchers?|scientists?|epidemiologists?|economists?|physicians?)(?:\s|,|$)`,
			},
			{
				Type: CredibilityInstitutional,
				Expr: `(?i)\b(?:university|universities|institute|academy of|laboratory|national institutes?)\b`,
			},
			{
				Type: CredibilityInstitutional,
				Expr: `\b(?:MIT|Stanford|Harvard|Oxford|Cambridge|WHO|CDC|NIH|FDA|NASA|OECD|IMF)\b`,
			},
			{
				Type: CredibilityStatistical,
				Expr: `(?i)(?:\b\d+(?:\.\d+)?\s?%|\bp\s*[<=]\s*0?\.\d+\b|\bn\s*=\s*\d{2,}\b)`,
			},
			{
				Type: CredibilityResearch,
				Expr: `(?i)\b(?:journal|study|studies|paper|survey|report|dataset)\s+(?:published|conducted|found|finds|shows?|suggests?|from|by)\b`,
			},
		},
	}
}
