// Package verify turns extracted URLs into verification results by running
// them through the network guard, the fetcher and the classifier.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/fetch"
	"github.com/trustlens/evidence-verifier/internal/models"
	"github.com/trustlens/evidence-verifier/internal/urls"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Verification reasons not produced by the guard or the fetcher
const (
	ReasonBadURL      = "bad_scheme_or_parse"
	ReasonReachable   = "reachable"
	ReasonUnreachable = "unreachable"
)

// Guard decides whether a host may be contacted
type Guard interface {
	Check(ctx context.Context, host string) models.NetworkVerdict
}

// Fetcher retrieves a page
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*fetch.Page, error)
}

// Classifier assigns a category to a fetched page
type Classifier interface {
	Classify(page *fetch.Page) fetch.Classification
}

// Verifier checks that linked evidence exists and is publicly reachable
type Verifier struct {
	guard      Guard
	fetcher    Fetcher
	classifier Classifier
	limiter    *rate.Limiter
	workers    int
	observe    func(result models.VerificationResult, elapsed time.Duration)
}

// Option customizes a Verifier
type Option func(*Verifier)

// WithWorkers bounds the number of URLs verified at once
func WithWorkers(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithRateLimit caps outbound verifications per second. Zero disables it.
func WithRateLimit(perSecond float64) Option {
	return func(v *Verifier) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			v.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithObserver registers fn to be called after every URL VerifyAll checks
func WithObserver(fn func(result models.VerificationResult, elapsed time.Duration)) Option {
	return func(v *Verifier) {
		v.observe = fn
	}
}

// NewVerifier creates a verifier
func NewVerifier(guard Guard, fetcher Fetcher, classifier Classifier, opts ...Option) *Verifier {
	v := &Verifier{
		guard:      guard,
		fetcher:    fetcher,
		classifier: classifier,
		workers:    8,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify normalizes rawURL, checks its host, fetches it and classifies the
// page. Failures are recorded on the result's Reason; it never returns an
// error.
func (v *Verifier) Verify(ctx context.Context, rawURL string) models.VerificationResult {
	result := models.VerificationResult{
		InputURL: rawURL,
		IPs:      []string{},
		Signals:  map[string]interface{}{},
	}

	normalized, ok := urls.NormalizeURL(rawURL)
	if !ok {
		result.Reason = ReasonBadURL
		return result
	}
	result.NormalizedURL = normalized

	host := urls.Hostname(normalized)
	result.Domain = RegisteredDomain(host)

	verdict := v.guard.Check(ctx, host)
	result.IPs = verdict.ResolvedIPs
	if result.IPs == nil {
		result.IPs = []string{}
	}
	if !verdict.PublicDNSOK {
		result.Reason = verdict.ErrorReason
		if result.Reason == "" {
			result.Reason = "dns_failure"
		}
		return result
	}
	result.PublicDNSOK = true

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			result.Reason = fetch.ReasonTimeout
			return result
		}
	}

	page, err := v.fetcher.Fetch(ctx, normalized)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			result.Reason = fetchErr.Reason
		} else {
			result.Reason = fetch.ReasonHTTPError + ":request"
		}
		return result
	}

	result.StatusCode = page.Status
	if page.Status >= 400 {
		result.Reason = fmt.Sprintf("http_status_%d", page.Status)
		return result
	}

	result.HTTPOK = true
	result.FinalURL = page.FinalURL
	result.ContentType = page.ContentType

	classification := v.classifier.Classify(page)
	result.Category = classification.Category
	result.Confidence = classification.Confidence
	if classification.Signals != nil {
		result.Signals = classification.Signals
	}

	if result.PublicDNSOK && result.HTTPOK && result.StatusCode > 0 && result.StatusCode < 400 {
		result.Verified = true
		result.Reason = ReasonReachable
	} else {
		result.Reason = ReasonUnreachable
	}

	logrus.WithFields(logrus.Fields{
		"url":        normalized,
		"status":     result.StatusCode,
		"category":   result.Category,
		"confidence": result.Confidence,
	}).Debug("Verified URL")

	return result
}

// VerifyAll verifies every URL using a bounded pool of workers. Results are
// returned in input order and one failing URL never affects the others.
func (v *Verifier) VerifyAll(ctx context.Context, targets []string) []models.VerificationResult {
	results := make([]models.VerificationResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	workers := v.workers
	if workers > len(targets) {
		workers = len(targets)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				results[i] = v.Verify(ctx, targets[i])
				if v.observe != nil {
					v.observe(results[i], time.Since(start))
				}
			}
		}()
	}

	for i := range targets {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// RegisteredDomain returns the registrable domain of host, or host itself
// when it has none (IP literals, bare public suffixes).
func RegisteredDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// DomainOf is RegisteredDomain applied to a URL
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return RegisteredDomain(u.Hostname())
}
