package verify

import (
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/fetch"
	"github.com/trustlens/evidence-verifier/internal/netguard"
)

// NewFromConfig wires the production verifier: system DNS behind the network
// guard, a fetcher that re-checks every redirect hop and, when
// StrictDialGuard is set, every connect address.
func NewFromConfig(cfg *config.Config, opts ...Option) *Verifier {
	guard := netguard.NewGuard(nil)

	fetchOpts := fetch.Options{
		Timeout:       cfg.VerifyTimeout,
		UserAgent:     cfg.UserAgent,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		MaxRedirects:  cfg.MaxRedirects,
		CheckRedirect: guard.CheckRedirect,
	}
	if cfg.StrictDialGuard {
		fetchOpts.DialControl = guard.DialControl
	}

	base := []Option{
		WithWorkers(cfg.VerifyWorkers),
		WithRateLimit(cfg.VerifyRateLimit),
	}

	return NewVerifier(guard, fetch.NewFetcher(fetchOpts), fetch.NewClassifier(), append(base, opts...)...)
}
