// Package analysis runs the evidence pipeline over comments and assembles,
// stores and announces batch reports.
package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/heuristics"
	"github.com/trustlens/evidence-verifier/internal/models"
	"github.com/trustlens/evidence-verifier/internal/notifications"
	"github.com/trustlens/evidence-verifier/internal/patterns"
	"github.com/trustlens/evidence-verifier/internal/sources"
	"github.com/trustlens/evidence-verifier/internal/storage"
	"github.com/trustlens/evidence-verifier/internal/telemetry"
	"github.com/trustlens/evidence-verifier/internal/urls"
	"github.com/trustlens/evidence-verifier/internal/verdict"
	"golang.org/x/sync/errgroup"
)

const topCategoryCount = 5

// Verifier checks a comment's URLs
type Verifier interface {
	VerifyAll(ctx context.Context, targets []string) []models.VerificationResult
}

// ToxicityScorer assigns a tone to texts
type ToxicityScorer interface {
	IsEnabled() bool
	Score(ctx context.Context, texts []string) ([]models.ToxicityScore, error)
}

// Service runs the evidence pipeline
type Service struct {
	config              *config.Config
	detector            *patterns.Detector
	scorer              *heuristics.Scorer
	verifier            Verifier
	toxicity            ToxicityScorer
	monitor             *telemetry.Monitor
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	sources             map[string]sources.Source
	metrics             *Metrics
	mu                  sync.RWMutex
}

// Metrics describes the batches the service has run
type Metrics struct {
	TotalReports    int                           `json:"total_reports"`
	TotalComments   int                           `json:"total_comments"`
	LastRun         time.Time                     `json:"last_run"`
	LastRunDuration string                        `json:"last_run_duration"`
	LastReportID    string                        `json:"last_report_id,omitempty"`
	StatusBreakdown map[models.EvidenceStatus]int `json:"status_breakdown"`
	ErrorCount      int                           `json:"error_count"`
	LastError       string                        `json:"last_error,omitempty"`
}

// Option configures optional collaborators of a Service
type Option func(*Service)

// WithToxicity sets the scorer used for comments that carry no tone
func WithToxicity(scorer ToxicityScorer) Option {
	return func(s *Service) {
		s.toxicity = scorer
	}
}

// WithStorage persists batch reports and telemetry snapshots
func WithStorage(store storage.StorageInterface) Option {
	return func(s *Service) {
		s.storage = store
	}
}

// WithNotifications announces every batch report
func WithNotifications(notifier notifications.NotificationInterface) Option {
	return func(s *Service) {
		s.notificationService = notifier
	}
}

// WithSources registers the comment sources available to Ingest
func WithSources(list ...sources.Source) Option {
	return func(s *Service) {
		for _, src := range list {
			s.sources[src.GetName()] = src
		}
	}
}

// WithMonitor replaces the service's telemetry monitor
func WithMonitor(monitor *telemetry.Monitor) Option {
	return func(s *Service) {
		s.monitor = monitor
	}
}

// WithCatalog replaces the default evidence cue catalog
func WithCatalog(catalog patterns.Catalog) Option {
	return func(s *Service) {
		detector, err := patterns.NewDetector(catalog)
		if err != nil {
			logrus.Errorf("Ignoring invalid pattern catalog: %v", err)
			return
		}
		s.detector = detector
	}
}

// NewService creates a new analysis service
func NewService(cfg *config.Config, verifier Verifier, opts ...Option) (*Service, error) {
	detector, err := patterns.NewDetector(patterns.DefaultCatalog())
	if err != nil {
		return nil, fmt.Errorf("failed to build pattern detector: %w", err)
	}

	s := &Service{
		config:   cfg,
		detector: detector,
		scorer:   heuristics.NewScorer(),
		verifier: verifier,
		sources:  make(map[string]sources.Source),
		metrics: &Metrics{
			StatusBreakdown: make(map[models.EvidenceStatus]int),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.monitor == nil {
		s.monitor = telemetry.NewMonitor(telemetry.DefaultWindowSize)
	}

	return s, nil
}

// Monitor returns the service's telemetry monitor
func (s *Service) Monitor() *telemetry.Monitor {
	return s.monitor
}

// Detector returns the pattern detector used by the pipeline
func (s *Service) Detector() *patterns.Detector {
	return s.detector
}

// Scorer returns the heuristic scorer used by the pipeline
func (s *Service) Scorer() *heuristics.Scorer {
	return s.scorer
}

// AnalyzeComment runs pattern detection, URL extraction and verification and
// heuristic scoring on one comment, then fuses them into a verdict. A badge
// is attached only when the comment carries a tone.
func (s *Service) AnalyzeComment(ctx context.Context, comment models.Comment) models.CommentAnalysis {
	defer s.monitor.Measure(telemetry.OpFullAnalysis)()

	done := s.monitor.Measure(telemetry.OpPatternDetection)
	detection := s.detector.Detect(comment.Text)
	done()

	done = s.monitor.Measure(telemetry.OpURLExtraction)
	found := urls.ExtractURLs(comment.Text)
	done()
	if found == nil {
		found = []string{}
	}

	results := s.verifier.VerifyAll(ctx, found)

	done = s.monitor.Measure(telemetry.OpHeuristics)
	heur := s.scorer.Score(comment.Text)
	done()

	v := verdict.Decide(results, detection)

	analysis := models.CommentAnalysis{
		CommentID:        comment.ID,
		Text:             comment.Text,
		URLs:             found,
		Status:           v.Status,
		EvidencePresent:  len(found) > 0 || detection.HasEvidencePatterns,
		Verified:         v.Status == models.StatusVerified,
		PatternDetection: detection,
		Heuristics:       heur,
		Results:          results,
		TooltipShort:     v.TooltipShort,
		TooltipDetail:    v.TooltipDetail,
	}

	if comment.Tone != "" {
		badge := verdict.DecideBadge(comment.Tone, v.Status)
		analysis.Badge = &badge
	}

	s.monitor.RecordCommentProcessed()
	return analysis
}

// AnalyzeComments analyzes comments concurrently, bounded by the configured
// comment concurrency, and returns the analyses in input order. Comments
// without an ID are given one.
func (s *Service) AnalyzeComments(ctx context.Context, comments []models.Comment) ([]models.CommentAnalysis, error) {
	analyses := make([]models.CommentAnalysis, len(comments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.config.CommentConcurrency))

	for i := range comments {
		i := i
		comment := comments[i]
		if comment.ID == "" {
			comment.ID = uuid.NewString()
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analyses[i] = s.AnalyzeComment(gctx, comment)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}

	return analyses, nil
}

// ApplyToxicity attaches a badge to every analysis. tones holds the tone each
// comment arrived with; missing tones are requested from the toxicity scorer
// and fall back to neutral when it is unavailable.
func (s *Service) ApplyToxicity(ctx context.Context, analyses []models.CommentAnalysis, tones []models.Tone) {
	resolved := make([]models.Tone, len(analyses))
	copy(resolved, tones)

	var missing []int
	for i := range analyses {
		if resolved[i] == "" {
			missing = append(missing, i)
		}
	}

	if len(missing) > 0 && s.toxicity != nil && s.toxicity.IsEnabled() {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = analyses[i].Text
		}

		scores, err := s.toxicity.Score(ctx, texts)
		if err != nil {
			logrus.Warnf("Toxicity scoring failed, treating %d comments as neutral: %v", len(missing), err)
		} else {
			for j, i := range missing {
				if j >= len(scores) {
					break
				}
				score := scores[j]
				analyses[i].Toxicity = &score
				resolved[i] = score.Tone
			}
		}
	}

	for i := range analyses {
		tone := resolved[i]
		if tone == "" {
			tone = models.ToneNeutral
		}
		badge := verdict.DecideBadge(tone, analyses[i].Status)
		analyses[i].Badge = &badge
	}
}

// RunBatch analyzes comments, attaches badges and produces a report that is
// stored and announced when storage and notifications are configured.
func (s *Service) RunBatch(ctx context.Context, source string, comments []models.Comment) (*models.Report, error) {
	start := time.Now()
	logrus.Infof("Starting batch analysis of %d comments from %s", len(comments), source)

	analyses, err := s.AnalyzeComments(ctx, comments)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	tones := make([]models.Tone, len(comments))
	for i, c := range comments {
		tones[i] = c.Tone
	}
	s.ApplyToxicity(ctx, analyses, tones)

	report := s.generateReport(source, analyses, time.Since(start))

	if s.storage != nil {
		if err := s.storeReport(report); err != nil {
			s.recordError(err)
			return nil, fmt.Errorf("failed to store report: %w", err)
		}
	}

	if s.notificationService != nil {
		if err := s.notificationService.SendReport(report); err != nil {
			// The report is already stored; a failed announcement does not fail the batch
			logrus.Errorf("Failed to send report %s: %v", report.ID, err)
			s.recordError(err)
		}
	}

	s.updateMetrics(report, time.Since(start))

	logrus.Infof("Batch %s completed: %d comments, %d/%d URLs verified, took %v",
		report.ID, report.TotalComments, report.Summary.URLsVerified, report.Summary.URLsChecked, time.Since(start))

	return report, nil
}

// Ingest fetches a thread from a registered source and runs it as a batch
func (s *Service) Ingest(ctx context.Context, sourceName, target string, limit int) (*models.Report, error) {
	src, ok := s.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceName)
	}
	if !src.IsEnabled() {
		return nil, fmt.Errorf("source %q is disabled", sourceName)
	}

	if limit <= 0 || limit > s.config.MaxSourceComments {
		limit = s.config.MaxSourceComments
	}

	comments, err := src.FetchComments(ctx, target, limit)
	if err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("failed to fetch comments from %s: %w", sourceName, err)
	}

	return s.RunBatch(ctx, sourceName, comments)
}

// SourceNames lists the registered sources
func (s *Service) SourceNames() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SnapshotStats persists the current telemetry snapshot
func (s *Service) SnapshotStats() error {
	if s.storage == nil {
		return fmt.Errorf("no storage configured")
	}

	stats := s.monitor.Snapshot()
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal performance stats: %w", err)
	}

	name := fmt.Sprintf("stats/performance-%s.json", stats.Timestamp.UTC().Format("2006-01-02-15-04-05"))
	if err := s.storage.Store(name, data); err != nil {
		return fmt.Errorf("failed to store performance stats: %w", err)
	}

	logrus.Infof("Stored performance snapshot %s (%d comments processed)", name, stats.TotalCommentsProcessed)
	return nil
}

// LoadReport reads a stored report by ID
func (s *Service) LoadReport(id string) (*models.Report, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("no storage configured")
	}

	names, err := s.storage.List("reports/")
	if err != nil {
		return nil, err
	}

	suffix := "-" + id + ".json"
	for _, name := range names {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		data, err := s.storage.Retrieve(name)
		if err != nil {
			return nil, err
		}
		var report models.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("failed to decode report %s: %w", name, err)
		}
		return &report, nil
	}

	return nil, fmt.Errorf("%w: report %s", storage.ErrNotFound, id)
}

func (s *Service) generateReport(source string, analyses []models.CommentAnalysis, duration time.Duration) *models.Report {
	summary := models.ReportSummary{
		StatusCounts:  make(map[models.EvidenceStatus]int),
		BadgeCounts:   make(map[models.BadgeColor]int),
		TopCategories: []string{},
	}

	categoryCount := make(map[string]int)
	for _, a := range analyses {
		summary.StatusCounts[a.Status]++
		if a.Badge != nil {
			summary.BadgeCounts[a.Badge.Color]++
		}
		for _, r := range a.Results {
			summary.URLsChecked++
			if r.Verified {
				summary.URLsVerified++
				categoryCount[r.Category]++
			}
		}
	}
	summary.TopCategories = getTopCategories(categoryCount)

	if source == "" {
		source = "adhoc"
	}

	return &models.Report{
		ID:            uuid.NewString(),
		Source:        source,
		GeneratedAt:   time.Now().UTC(),
		Duration:      duration.Round(time.Millisecond).String(),
		TotalComments: len(analyses),
		Comments:      analyses,
		Summary:       summary,
	}
}

func getTopCategories(categoryCount map[string]int) []string {
	type categoryScore struct {
		category string
		count    int
	}

	scores := make([]categoryScore, 0, len(categoryCount))
	for category, count := range categoryCount {
		scores = append(scores, categoryScore{category, count})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].count != scores[j].count {
			return scores[i].count > scores[j].count
		}
		return scores[i].category < scores[j].category
	})

	top := []string{}
	for i, score := range scores {
		if i >= topCategoryCount {
			break
		}
		top = append(top, fmt.Sprintf("%s (%d)", score.category, score.count))
	}
	return top
}

// storeReport writes the full report as JSON and a per-comment CSV digest
func (s *Service) storeReport(report *models.Report) error {
	base := fmt.Sprintf("reports/report-%s-%s", report.GeneratedAt.Format("2006-01-02-15-04-05"), report.ID)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := s.storage.Store(base+".json", data); err != nil {
		return err
	}

	digest, err := reportCSV(report)
	if err != nil {
		return fmt.Errorf("failed to build report digest: %w", err)
	}
	return s.storage.Store(base+".csv", digest)
}

var csvHeader = []string{
	"comment_id", "status", "badge_color", "toxicity_color", "max_prob",
	"urls", "urls_verified", "heur_score", "TL2_tooltip", "text",
}

func reportCSV(report *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, a := range report.Comments {
		verified := 0
		for _, r := range a.Results {
			if r.Verified {
				verified++
			}
		}

		badge, tone, maxProb := "", "", ""
		if a.Badge != nil {
			badge = string(a.Badge.Color)
		}
		if a.Toxicity != nil {
			tone = string(a.Toxicity.Tone)
			maxProb = strconv.FormatFloat(a.Toxicity.MaxProb, 'f', 4, 64)
		}

		row := []string{
			a.CommentID,
			string(a.Status),
			badge,
			tone,
			maxProb,
			strconv.Itoa(len(a.URLs)),
			strconv.Itoa(verified),
			strconv.FormatFloat(a.Heuristics.Score, 'f', 3, 64),
			a.TooltipShort,
			a.Text,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func (s *Service) updateMetrics(report *models.Report, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalReports++
	s.metrics.TotalComments += report.TotalComments
	s.metrics.LastRun = report.GeneratedAt
	s.metrics.LastRunDuration = duration.String()
	s.metrics.LastReportID = report.ID

	for status, count := range report.Summary.StatusCounts {
		s.metrics.StatusBreakdown[status] += count
	}
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.ErrorCount++
	s.metrics.LastError = err.Error()
}

// GetMetrics returns current batch metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// VerifyURLs verifies URLs outside of any comment
func (s *Service) VerifyURLs(ctx context.Context, targets []string) []models.VerificationResult {
	return s.verifier.VerifyAll(ctx, targets)
}
