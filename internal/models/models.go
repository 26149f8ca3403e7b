package models

import "time"

// Comment is a single piece of user text to analyze
type Comment struct {
	ID   string `json:"comment_id"`
	Text string `json:"text"`
	Tone Tone   `json:"tone,omitempty"` // optional externally supplied toxicity tone
}

// NetworkVerdict is the outcome of resolving one hostname through the network guard
type NetworkVerdict struct {
	Host        string   `json:"host"`
	ResolvedIPs []string `json:"resolved_ips"`
	PublicDNSOK bool     `json:"public_dns_ok"`
	ErrorReason string   `json:"error_reason,omitempty"`
}

// VerificationResult describes one extracted URL after guard, fetch and classification
type VerificationResult struct {
	InputURL      string                 `json:"input_url"`
	NormalizedURL string                 `json:"normalized_url,omitempty"`
	FinalURL      string                 `json:"final_url,omitempty"`
	Domain        string                 `json:"domain,omitempty"`
	IPs           []string               `json:"ips"`
	PublicDNSOK   bool                   `json:"public_dns_ok"`
	HTTPOK        bool                   `json:"http_ok"`
	StatusCode    int                    `json:"status,omitempty"`
	ContentType   string                 `json:"content_type,omitempty"`
	Category      string                 `json:"category,omitempty"`
	Confidence    float64                `json:"confidence"`
	Signals       map[string]interface{} `json:"signals"`
	Verified      bool                   `json:"verified"`
	Reason        string                 `json:"reason"`
}

// PatternConfidence buckets how strongly a text reads like it cites evidence
type PatternConfidence string

const (
	PatternConfidenceNone   PatternConfidence = "none"
	PatternConfidenceLow    PatternConfidence = "low"
	PatternConfidenceMedium PatternConfidence = "medium"
	PatternConfidenceHigh   PatternConfidence = "high"
)

// SentencePatternMatch is a regex-level citation cue found in text
type SentencePatternMatch struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	Match       string `json:"match"`
}

// CredibilityMatch is a typed credibility indicator found in text
type CredibilityMatch struct {
	Type      string `json:"type"`
	Indicator string `json:"indicator"`
}

// PatternDetection holds evidence-like language detected without any links
type PatternDetection struct {
	HasEvidencePatterns    bool                   `json:"has_evidence_patterns"`
	KeywordMatches         []string               `json:"simple_keyword_matches"`
	SentencePatternMatches []SentencePatternMatch `json:"sentence_pattern_matches"`
	PhraseMatches          []string               `json:"phrase_matches"`
	CredibilityMatches     []CredibilityMatch     `json:"credibility_matches"`
	Confidence             PatternConfidence      `json:"confidence"`
}

// HeuristicScore is the continuous evidence score computed from text alone
type HeuristicScore struct {
	Score        float64            `json:"heur_score"`
	Features     map[string]float64 `json:"features"`
	Tips         []string           `json:"tips"`
	EvidenceHits []string           `json:"evidence_hits"`
	NegativeHits []string           `json:"negative_hits"`
	Raw          map[string]int     `json:"raw"`
}

// EvidenceStatus is the comment-level evidence verdict
type EvidenceStatus string

const (
	StatusVerified                  EvidenceStatus = "Verified"
	StatusMixed                     EvidenceStatus = "Mixed"
	StatusUnverified                EvidenceStatus = "Unverified"
	StatusEvidencePresentUnverified EvidenceStatus = "Evidence present, unverified"
	StatusNone                      EvidenceStatus = "None"
)

// CommentVerdict is the evidence status plus its TL2/TL3 rationale
type CommentVerdict struct {
	Status        EvidenceStatus `json:"status"`
	TooltipShort  string         `json:"TL2_tooltip"`
	TooltipDetail string         `json:"TL3_detail"`
}

// Tone is the toxicity band supplied by the external scorer
type Tone string

const (
	ToneToxic   Tone = "red"
	ToneMild    Tone = "yellow"
	ToneNeutral Tone = "green"
)

// BadgeColor is the final color surfaced to the end user
type BadgeColor string

const (
	BadgeRed    BadgeColor = "red"
	BadgeYellow BadgeColor = "yellow"
	BadgeGreen  BadgeColor = "green"
)

// BadgeDecision combines toxicity tone and evidence status
type BadgeDecision struct {
	Color            BadgeColor `json:"badge_color"`
	ToxicityLevel    string     `json:"toxicity_level"`    // "Toxic", "Mild", "Neutral"
	EvidencePresent  string     `json:"evidence_present"`  // "Yes", "No"
	EvidenceVerified string     `json:"evidence_verified"` // "Yes", "No", "Partial", "N/A"
	Summary          string     `json:"summary"`
}

// ToxicityScore is the external scorer's answer for one text
type ToxicityScore struct {
	Labels  map[string]float64 `json:"scores"`
	MaxProb float64            `json:"max_prob"`
	Tone    Tone               `json:"toxicity_color"`
}

// CommentAnalysis is the full per-comment output of the pipeline
type CommentAnalysis struct {
	CommentID        string               `json:"comment_id"`
	Text             string               `json:"text"`
	URLs             []string             `json:"urls"`
	Status           EvidenceStatus       `json:"status"`
	EvidencePresent  bool                 `json:"evidence_present"`
	Verified         bool                 `json:"verified"`
	PatternDetection PatternDetection     `json:"pattern_detection"`
	Heuristics       HeuristicScore       `json:"heuristics"`
	Results          []VerificationResult `json:"results"`
	TooltipShort     string               `json:"TL2_tooltip"`
	TooltipDetail    string               `json:"TL3_detail"`
	Toxicity         *ToxicityScore       `json:"toxicity,omitempty"`
	Badge            *BadgeDecision       `json:"badge,omitempty"`
}

// ReportSummary aggregates counts over a batch
type ReportSummary struct {
	StatusCounts  map[EvidenceStatus]int `json:"status_counts"`
	BadgeCounts   map[BadgeColor]int     `json:"badge_counts"`
	URLsChecked   int                    `json:"urls_checked"`
	URLsVerified  int                    `json:"urls_verified"`
	TopCategories []string               `json:"top_categories"`
}

// Report is a persisted batch analysis
type Report struct {
	ID            string            `json:"id"`
	Source        string            `json:"source"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Duration      string            `json:"duration"`
	TotalComments int               `json:"total_comments"`
	Comments      []CommentAnalysis `json:"comments"`
	Summary       ReportSummary     `json:"summary"`
}

// OperationStats summarizes a rolling latency window
type OperationStats struct {
	Operation      string  `json:"operation"`
	SampleSize     int     `json:"sample_size"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	MedianLatency  float64 `json:"median_latency_ms"`
	MinLatencyMs   float64 `json:"min_latency_ms"`
	MaxLatencyMs   float64 `json:"max_latency_ms"`
	StdDevMs       float64 `json:"std_dev_ms"`
	ThroughputOpsS float64 `json:"throughput_ops_per_sec"`
}

// PerformanceStats is a snapshot of the telemetry monitor
type PerformanceStats struct {
	Timestamp               time.Time                 `json:"timestamp"`
	SessionDurationSeconds  float64                   `json:"session_duration_seconds"`
	TotalCommentsProcessed  int                       `json:"total_comments_processed"`
	TotalURLsVerified       int                       `json:"total_urls_verified"`
	SuccessfulVerifications int                       `json:"successful_verifications"`
	FailedVerifications     int                       `json:"failed_verifications"`
	VerificationSuccessRate float64                   `json:"verification_success_rate"`
	CommentsPerSecond       float64                   `json:"overall_throughput_comments_per_sec"`
	Operations              map[string]OperationStats `json:"operations"`
}
