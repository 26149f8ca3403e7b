// Package toxicity talks to the external toxicity scorer and bands its
// per-label probabilities into a tone.
package toxicity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/models"
)

// Banding holds the probability cut points for each tone
type Banding struct {
	Red    float64
	Yellow float64
}

// DefaultBanding is red at 0.7 and yellow at 0.3
func DefaultBanding() Banding {
	return Banding{Red: 0.7, Yellow: 0.3}
}

// Tone bands the highest label probability
func (b Banding) Tone(maxProb float64) models.Tone {
	switch {
	case maxProb >= b.Red:
		return models.ToneToxic
	case maxProb >= b.Yellow:
		return models.ToneMild
	default:
		return models.ToneNeutral
	}
}

// Score builds a toxicity score from per-label probabilities
func (b Banding) Score(labels map[string]float64) models.ToxicityScore {
	maxProb := 0.0
	for _, p := range labels {
		if p > maxProb {
			maxProb = p
		}
	}
	if labels == nil {
		labels = map[string]float64{}
	}
	return models.ToxicityScore{
		Labels:  labels,
		MaxProb: maxProb,
		Tone:    b.Tone(maxProb),
	}
}

type predictRequest struct {
	Texts []string `json:"texts"`
}

type predictResponse struct {
	Labels        []string    `json:"labels"`
	Probabilities [][]float64 `json:"probabilities"`
	Detailed      []struct {
		Scores map[string]float64 `json:"scores"`
	} `json:"detailed"`
}

// Client calls the scorer's predict endpoint
type Client struct {
	endpoint string
	banding  Banding
	client   *resty.Client
}

// NewClient creates a client for endpoint. An empty endpoint disables it.
func NewClient(endpoint string, timeout time.Duration, banding Banding) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		banding:  banding,
		client:   resty.New().SetTimeout(timeout),
	}
}

// IsEnabled reports whether a scorer endpoint is configured
func (c *Client) IsEnabled() bool {
	return c.endpoint != ""
}

// Score returns one toxicity score per text, in input order
func (c *Client) Score(ctx context.Context, texts []string) ([]models.ToxicityScore, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("toxicity scorer is not configured")
	}
	if len(texts) == 0 {
		return []models.ToxicityScore{}, nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(predictRequest{Texts: texts}).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("toxicity request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("toxicity scorer returned status %d", resp.StatusCode())
	}

	var predictions predictResponse
	if err := json.Unmarshal(resp.Body(), &predictions); err != nil {
		return nil, fmt.Errorf("failed to decode toxicity response: %w", err)
	}

	scores := make([]models.ToxicityScore, 0, len(texts))
	for i := range texts {
		scores = append(scores, c.banding.Score(predictions.labelsAt(i)))
	}

	logrus.WithFields(logrus.Fields{
		"texts":    len(texts),
		"endpoint": c.endpoint,
	}).Debug("Scored toxicity")

	return scores, nil
}

// labelsAt prefers the detailed per-label map and falls back to zipping the
// label names with the probability row. Missing rows score as neutral.
func (p predictResponse) labelsAt(i int) map[string]float64 {
	if i < len(p.Detailed) && len(p.Detailed[i].Scores) > 0 {
		return p.Detailed[i].Scores
	}

	labels := map[string]float64{}
	if i >= len(p.Probabilities) {
		return labels
	}
	for j, prob := range p.Probabilities[i] {
		name := fmt.Sprintf("label_%d", j)
		if j < len(p.Labels) {
			name = p.Labels[j]
		}
		labels[name] = prob
	}
	return labels
}
