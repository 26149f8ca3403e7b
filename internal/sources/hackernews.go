package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/models"
)

// HackerNewsSource reads the comment tree of an item from the Firebase API
type HackerNewsSource struct {
	client  *resty.Client
	baseURL string
}

type hackerNewsItem struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Text    string `json:"text"`
	Kids    []int  `json:"kids"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource() *HackerNewsSource {
	return &HackerNewsSource{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "TL-Verifier/1.0 (+evidence-check)"),
		baseURL: "https://hacker-news.firebaseio.com/v0",
	}
}

func (h *HackerNewsSource) GetName() string {
	return "hackernews"
}

func (h *HackerNewsSource) IsEnabled() bool {
	return true // Hacker News API doesn't require authentication
}

// FetchComments walks the comment tree under the item named by target (an ID
// or a news.ycombinator.com item URL) depth first and returns up to limit
// live comments.
func (h *HackerNewsSource) FetchComments(ctx context.Context, target string, limit int) ([]models.Comment, error) {
	rootID, err := hackerNewsItemID(target)
	if err != nil {
		return nil, err
	}

	root, err := h.getItem(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", rootID, err)
	}

	comments := []models.Comment{}
	stack := reversed(root.Kids)

	for len(stack) > 0 {
		if limit > 0 && len(comments) >= limit {
			break
		}

		select {
		case <-ctx.Done():
			return comments, ctx.Err()
		default:
		}

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		item, err := h.getItem(ctx, id)
		if err != nil {
			logrus.Debugf("Failed to get HN item %d: %v", id, err)
			continue
		}

		if item.Type == "comment" && !item.Deleted && !item.Dead {
			if text := CleanText(item.Text); text != "" {
				comments = append(comments, models.Comment{
					ID:   fmt.Sprintf("hackernews_%d", item.ID),
					Text: text,
				})
			}
		}

		stack = append(stack, reversed(item.Kids)...)
	}

	logrus.Infof("Fetched %d comments from hacker news item %d", len(comments), rootID)
	return comments, nil
}

func (h *HackerNewsSource) getItem(ctx context.Context, itemID int) (*hackerNewsItem, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/item/%d.json", h.baseURL, itemID))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d for item %d", resp.StatusCode(), itemID)
	}

	var item hackerNewsItem
	if err := json.Unmarshal(resp.Body(), &item); err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, fmt.Errorf("item %d not found", itemID)
	}

	return &item, nil
}

func hackerNewsItemID(target string) (int, error) {
	target = strings.TrimSpace(target)
	if i := strings.Index(target, "id="); i >= 0 {
		target = target[i+3:]
		if j := strings.IndexByte(target, '&'); j >= 0 {
			target = target[:j]
		}
	}

	id, err := strconv.Atoi(target)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid hacker news item %q", target)
	}
	return id, nil
}

func reversed(ids []int) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
