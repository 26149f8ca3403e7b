package sources

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/trustlens/evidence-verifier/internal/models"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	// <https://...> autolinks would otherwise be parsed as tags
	autolinkPattern = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9+.-]*://[^\s<>]+)>`)
)

// ThreadPayload is the nested comment tree posted by the browser extension
type ThreadPayload struct {
	Data struct {
		Comments []PayloadComment `json:"comments"`
	} `json:"data"`
}

// PayloadComment is one comment with its replies
type PayloadComment struct {
	ID      string           `json:"id,omitempty"`
	Body    string           `json:"body"`
	Replies []PayloadComment `json:"replies,omitempty"`
}

// Flatten decodes a thread payload and returns its comments depth first
func Flatten(payload []byte) ([]models.Comment, error) {
	var thread ThreadPayload
	if err := json.Unmarshal(payload, &thread); err != nil {
		return nil, fmt.Errorf("failed to decode thread payload: %w", err)
	}
	return thread.Comments(), nil
}

// Comments returns the payload's comments depth first, skipping blank bodies
func (p ThreadPayload) Comments() []models.Comment {
	out := []models.Comment{}

	var walk func(items []PayloadComment)
	walk = func(items []PayloadComment) {
		for _, item := range items {
			if text := CleanText(item.Body); text != "" {
				out = append(out, models.Comment{ID: item.ID, Text: text})
			}
			walk(item.Replies)
		}
	}
	walk(p.Data.Comments)

	return out
}

// CleanText strips markup from a comment body and decodes HTML entities.
// Link targets survive as plain text so their evidence can be verified.
func CleanText(body string) string {
	body = strings.ReplaceAll(body, "<p>", "\n\n")
	body = autolinkPattern.ReplaceAllStringFunc(body, func(m string) string {
		return html.EscapeString(m[1 : len(m)-1])
	})
	body = inlineLinks(body)
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(body)))
}

// inlineLinks replaces every anchor with its target URL. Anchor text that is
// not just a (possibly truncated) copy of the target is kept in front of it.
func inlineLinks(body string) string {
	if !strings.Contains(strings.ToLower(body), "<a") {
		return body
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		text := strings.TrimSpace(s.Text())

		lower := strings.ToLower(href)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			s.ReplaceWithHtml(html.EscapeString(text))
			return
		}

		replacement := href
		if prefix := strings.TrimSuffix(text, "..."); prefix != "" && !strings.HasPrefix(href, prefix) {
			replacement = text + " " + href
		}
		s.ReplaceWithHtml(html.EscapeString(replacement))
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return body
	}
	return out
}
