package fetch

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlPage(finalURL, body string) *Page {
	return &Page{Status: 200, FinalURL: finalURL, ContentType: "text/html", HTML: body}
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name       string
		page       *Page
		category   string
		confidence float64
		signal     string
	}{
		{
			name:       "pdf",
			page:       &Page{FinalURL: "https://example.com/paper.pdf", ContentType: "application/pdf"},
			category:   CategoryPDF,
			confidence: 0.95,
			signal:     "content_type",
		},
		{
			name:       "non html",
			page:       &Page{FinalURL: "https://example.com/data.json", ContentType: "application/json"},
			category:   CategoryWebsite,
			confidence: 0.5,
			signal:     "content_type",
		},
		{
			name:       "government suffix",
			page:       htmlPage("https://www.cdc.gov/flu/index.html", "<html></html>"),
			category:   CategoryGovernment,
			confidence: 0.9,
			signal:     "tld",
		},
		{
			name:       "uk government suffix",
			page:       htmlPage("https://www.ons.gov.uk/economy", "<html></html>"),
			category:   CategoryGovernment,
			confidence: 0.9,
			signal:     "tld",
		},
		{
			name:       "education suffix",
			page:       htmlPage("https://news.mit.edu/2024/story", "<html></html>"),
			category:   CategoryEducation,
			confidence: 0.85,
			signal:     "tld",
		},
		{
			name: "json-ld news beats article",
			page: htmlPage("https://example.com/story", `<html><head>
				<script type="application/ld+json">[{"@type":"Article"},{"@type":"NewsArticle"}]</script>
				</head></html>`),
			category:   CategoryNews,
			confidence: 0.88,
			signal:     "jsonld",
		},
		{
			name: "json-ld graph blog posting",
			page: htmlPage("https://example.com/post", `<script type="application/ld+json">
				{"@context":"https://schema.org","@graph":[{"@type":"WebSite"},{"@type":["BlogPosting"]}]}
				</script>`),
			category:   CategoryBlog,
			confidence: 0.8,
			signal:     "jsonld",
		},
		{
			name: "json-ld type is case insensitive",
			page: htmlPage("https://example.com/paper", `<script type="application/ld+json">{"@type":"scholarlyarticle"}</script>`),
			category:   CategoryEducation,
			confidence: 0.88,
			signal:     "jsonld",
		},
		{
			name: "malformed json-ld falls through to og:type",
			page: htmlPage("https://example.com/watch", `<script type="application/ld+json">{not json</script>
				<meta property="og:type" content="video.other">`),
			category:   CategoryVideo,
			confidence: 0.8,
			signal:     "og:type",
		},
		{
			name:       "og article",
			page:       htmlPage("https://example.com/a", `<meta property="og:type" content="Article">`),
			category:   CategoryArticle,
			confidence: 0.7,
			signal:     "og:type",
		},
		{
			name:       "og profile",
			page:       htmlPage("https://example.com/u/me", `<meta property="og:type" content="profile">`),
			category:   CategoryProfile,
			confidence: 0.75,
			signal:     "og:type",
		},
		{
			name:       "docs path",
			page:       htmlPage("https://example.com/Docs/getting-started", "<p>intro</p>"),
			category:   CategoryDocs,
			confidence: 0.7,
			signal:     "path_hint",
		},
		{
			name:       "add to cart",
			page:       htmlPage("https://shop.example.com/item/42", "<button>Add to Cart</button>"),
			category:   CategoryEcommerce,
			confidence: 0.7,
			signal:     "content_hint",
		},
		{
			name:       "sku as word only",
			page:       htmlPage("https://example.com/risky", "<p>The whiskey was fine.</p>"),
			category:   CategoryWebsite,
			confidence: 0.55,
			signal:     "fallback",
		},
		{
			name:       "fallback",
			page:       htmlPage("https://example.com/", "<p>Hello</p>"),
			category:   CategoryWebsite,
			confidence: 0.55,
			signal:     "fallback",
		},
	}

	classifier := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(tt.page)

			assert.Equal(t, tt.category, result.Category)
			assert.InDelta(t, tt.confidence, result.Confidence, 1e-9)
			assert.Contains(t, result.Signals, tt.signal)
		})
	}
}

func TestClassifier_NilPage(t *testing.T) {
	result := NewClassifier().Classify(nil)
	assert.Equal(t, CategoryWebsite, result.Category)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
	assert.Equal(t, "unknown", result.Signals["content_type"])
}

func TestJSONLDTypes(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<script type="application/ld+json">{"@type":["schema:Report","Report"]}</script>
		<script type="application/ld+json">{"@type":"http://schema.org/Organization"}</script>
		<script type="application/ld+json">[]</script>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"report", "organization"}, JSONLDTypes(doc))
}
