package sources

import (
	"context"

	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/models"
)

// Source fetches the comments of one discussion thread
type Source interface {
	GetName() string
	FetchComments(ctx context.Context, target string, limit int) ([]models.Comment, error)
	IsEnabled() bool
}

// FromConfig returns every source the configuration enables
func FromConfig(cfg *config.Config) []Source {
	all := []Source{
		NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret),
		NewHackerNewsSource(),
	}

	enabled := make([]Source, 0, len(all))
	for _, s := range all {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled
}
