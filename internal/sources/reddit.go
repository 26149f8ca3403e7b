package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/models"
)

const redditUserAgent = "TL-Verifier/1.0 (+evidence-check)"

// RedditSource reads thread comments through the public JSON listing, or the
// OAuth API when application credentials are configured.
type RedditSource struct {
	clientID     string
	clientSecret string
	client       *resty.Client

	publicURL string
	oauthURL  string
	tokenURL  string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string        `json:"kind"`
	Data redditComment `json:"data"`
}

type redditComment struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Body    string `json:"body"`
	// Replies is an empty string when a comment has none
	Replies json.RawMessage `json:"replies"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(clientID, clientSecret string) *RedditSource {
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", redditUserAgent),
		publicURL: "https://www.reddit.com",
		oauthURL:  "https://oauth.reddit.com",
		tokenURL:  "https://www.reddit.com/api/v1/access_token",
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

// IsEnabled is always true; public listings need no credentials
func (r *RedditSource) IsEnabled() bool {
	return true
}

func (r *RedditSource) authenticated() bool {
	return r.clientID != "" && r.clientSecret != ""
}

// FetchComments returns up to limit comments of the thread named by target,
// which is a thread URL, a permalink path or a bare post ID. Deferred
// "load more" stubs are not expanded.
func (r *RedditSource) FetchComments(ctx context.Context, target string, limit int) ([]models.Comment, error) {
	threadPath, err := redditThreadPath(target)
	if err != nil {
		return nil, err
	}

	base := r.publicURL
	req := r.client.R().SetContext(ctx)
	if r.authenticated() {
		token, err := r.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("reddit authentication failed: %w", err)
		}
		base = r.oauthURL
		req.SetHeader("Authorization", "Bearer "+token)
	}

	req.SetQueryParam("raw_json", "1")
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get(base + threadPath + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reddit thread: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	var listings []redditListing
	if err := json.Unmarshal(resp.Body(), &listings); err != nil {
		return nil, fmt.Errorf("failed to decode reddit thread: %w", err)
	}

	// The first listing is the post itself, the second its comment tree
	if len(listings) < 2 {
		return []models.Comment{}, nil
	}

	comments := flattenRedditTree(listings[1].Data.Children, []models.Comment{})
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}

	logrus.Infof("Fetched %d comments from reddit thread %s", len(comments), threadPath)
	return comments, nil
}

func (r *RedditSource) token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.expiresAt) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.tokenURL)
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	r.accessToken = authResp.AccessToken
	// Refresh a minute early
	r.expiresAt = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}

func flattenRedditTree(children []redditThing, out []models.Comment) []models.Comment {
	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}

		if text := CleanText(child.Data.Body); text != "" && text != "[deleted]" && text != "[removed]" {
			out = append(out, models.Comment{
				ID:   "reddit_" + child.Data.ID,
				Text: text,
			})
		}

		replies := bytes.TrimSpace(child.Data.Replies)
		if len(replies) == 0 || replies[0] != '{' {
			continue
		}
		var listing redditListing
		if err := json.Unmarshal(replies, &listing); err != nil {
			logrus.Debugf("Skipping malformed replies of reddit comment %s: %v", child.Data.ID, err)
			continue
		}
		out = flattenRedditTree(listing.Data.Children, out)
	}
	return out
}

// redditThreadPath turns a thread URL, permalink or post ID into the path of
// its comment listing.
func redditThreadPath(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("reddit thread is required")
	}

	if !strings.Contains(target, "/") {
		return "/comments/" + url.PathEscape(target), nil
	}

	p := target
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid reddit thread URL: %w", err)
		}
		host := strings.ToLower(u.Hostname())
		if host != "reddit.com" && !strings.HasSuffix(host, ".reddit.com") {
			return "", fmt.Errorf("not a reddit URL: %s", target)
		}
		p = u.Path
	}

	p = strings.TrimSuffix(strings.TrimSuffix(p, "/"), ".json")
	if !strings.Contains(p, "/comments/") {
		return "", fmt.Errorf("not a reddit thread: %s", target)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p, nil
}
