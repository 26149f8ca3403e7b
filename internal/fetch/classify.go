package fetch

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// Source categories
const (
	CategoryPDF        = "document/pdf"
	CategoryWebsite    = "website"
	CategoryGovernment = "government"
	CategoryEducation  = "education"
	CategoryNews       = "news"
	CategoryReport     = "report"
	CategoryDocs       = "docs"
	CategoryBlog       = "blog"
	CategoryArticle    = "article"
	CategoryVideo      = "video"
	CategoryQnA        = "qna"
	CategoryEcommerce  = "ecommerce"
	CategoryOrg        = "org"
	CategoryProfile    = "profile"
)

// schemaCategories maps lowercased schema.org types to categories
var schemaCategories = map[string]string{
	"newsarticle":      CategoryNews,
	"article":          CategoryArticle,
	"blogposting":      CategoryBlog,
	"scholarlyarticle": CategoryEducation,
	"techarticle":      CategoryDocs,
	"report":           CategoryReport,
	"videoobject":      CategoryVideo,
	"faqpage":          CategoryDocs,
	"qapage":           CategoryQnA,
	"profilepage":      CategoryProfile,
	"product":          CategoryEcommerce,
	"organization":     CategoryOrg,
	"website":          CategoryWebsite,
	"webpage":          CategoryWebsite,
}

// jsonLDPriority picks the most valuable category when a page declares several
var jsonLDPriority = []string{
	CategoryEducation,
	CategoryNews,
	CategoryReport,
	CategoryDocs,
	CategoryBlog,
	CategoryArticle,
	CategoryVideo,
	CategoryQnA,
	CategoryEcommerce,
	CategoryWebsite,
	CategoryOrg,
	CategoryProfile,
}

var (
	docsPathHints = []string{"/docs", "/documentation", "/api", "/developer"}
	skuPattern    = regexp.MustCompile(`\bsku\b`)
)

// Classification is the category assigned to a fetched page
type Classification struct {
	Category   string
	Confidence float64
	Signals    map[string]interface{}
}

// pageView holds lazily parsed views of a fetched page shared between rules
type pageView struct {
	*Page
	host   string
	path   string
	doc    *goquery.Document
	parsed bool
}

func (p *pageView) document() *goquery.Document {
	if p.parsed {
		return p.doc
	}
	p.parsed = true

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		logrus.WithError(err).Debug("Failed to parse page HTML")
		return nil
	}
	p.doc = doc
	return doc
}

// rule returns a classification and true when it applies
type rule func(p *pageView) (Classification, bool)

// Classifier assigns a category from content type, public suffix and page
// metadata. Rules are evaluated in order and the first match wins.
type Classifier struct {
	rules []rule
}

// NewClassifier creates a classifier with the standard rule order
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []rule{
			pdfRule,
			nonHTMLRule,
			publicSuffixRule,
			jsonLDRule,
			openGraphRule,
			docsPathRule,
			ecommerceRule,
		},
	}
}

// Classify returns the category of fetched. It never fails: pages that no
// rule recognizes are generic websites.
func (c *Classifier) Classify(fetched *Page) Classification {
	if fetched == nil {
		fetched = &Page{}
	}

	p := &pageView{Page: fetched}
	if u, err := url.Parse(fetched.FinalURL); err == nil {
		p.host = strings.ToLower(u.Hostname())
		p.path = strings.ToLower(u.Path)
	}

	for _, r := range c.rules {
		if result, ok := r(p); ok {
			return result
		}
	}

	return Classification{
		Category:   CategoryWebsite,
		Confidence: 0.55,
		Signals:    map[string]interface{}{"fallback": "generic"},
	}
}

func pdfRule(p *pageView) (Classification, bool) {
	if p.ContentType != "application/pdf" {
		return Classification{}, false
	}
	return Classification{
		Category:   CategoryPDF,
		Confidence: 0.95,
		Signals:    map[string]interface{}{"content_type": "pdf"},
	}, true
}

func nonHTMLRule(p *pageView) (Classification, bool) {
	if strings.Contains(p.ContentType, "text/html") {
		return Classification{}, false
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = "unknown"
	}
	return Classification{
		Category:   CategoryWebsite,
		Confidence: 0.5,
		Signals:    map[string]interface{}{"content_type": contentType},
	}, true
}

func publicSuffixRule(p *pageView) (Classification, bool) {
	if p.host == "" {
		return Classification{}, false
	}

	suffix, _ := publicsuffix.PublicSuffix(p.host)
	switch {
	case strings.HasSuffix(suffix, "gov") || strings.HasSuffix(suffix, "gov.uk"):
		return Classification{
			Category:   CategoryGovernment,
			Confidence: 0.9,
			Signals:    map[string]interface{}{"tld": "gov"},
		}, true
	case strings.HasSuffix(suffix, "edu"):
		return Classification{
			Category:   CategoryEducation,
			Confidence: 0.85,
			Signals:    map[string]interface{}{"tld": "edu"},
		}, true
	}
	return Classification{}, false
}

func jsonLDRule(p *pageView) (Classification, bool) {
	doc := p.document()
	if doc == nil {
		return Classification{}, false
	}

	found := make(map[string]bool)
	for _, schemaType := range JSONLDTypes(doc) {
		if category, ok := schemaCategories[schemaType]; ok {
			found[category] = true
		}
	}
	if len(found) == 0 {
		return Classification{}, false
	}

	mapped := make([]string, 0, len(found))
	for category := range found {
		mapped = append(mapped, category)
	}
	sort.Strings(mapped)

	for _, category := range jsonLDPriority {
		if !found[category] {
			continue
		}
		confidence := 0.8
		switch category {
		case CategoryEducation, CategoryNews, CategoryReport, CategoryDocs:
			confidence = 0.88
		}
		return Classification{
			Category:   category,
			Confidence: confidence,
			Signals:    map[string]interface{}{"jsonld": mapped},
		}, true
	}
	return Classification{}, false
}

func openGraphRule(p *pageView) (Classification, bool) {
	doc := p.document()
	if doc == nil {
		return Classification{}, false
	}

	ogType := strings.ToLower(strings.TrimSpace(doc.Find(`meta[property="og:type"]`).First().AttrOr("content", "")))
	if ogType == "" {
		return Classification{}, false
	}

	signals := map[string]interface{}{"og:type": ogType}
	switch {
	case strings.Contains(ogType, "video"):
		return Classification{Category: CategoryVideo, Confidence: 0.8, Signals: signals}, true
	case ogType == "article":
		return Classification{Category: CategoryArticle, Confidence: 0.7, Signals: signals}, true
	case strings.Contains(ogType, "profile"):
		return Classification{Category: CategoryProfile, Confidence: 0.75, Signals: signals}, true
	}
	return Classification{}, false
}

func docsPathRule(p *pageView) (Classification, bool) {
	for _, hint := range docsPathHints {
		if strings.Contains(p.path, hint) {
			return Classification{
				Category:   CategoryDocs,
				Confidence: 0.7,
				Signals:    map[string]interface{}{"path_hint": "docs"},
			}, true
		}
	}
	return Classification{}, false
}

func ecommerceRule(p *pageView) (Classification, bool) {
	product := strings.Contains(p.path, "/product")
	if !product {
		if doc := p.document(); doc != nil {
			text := strings.ToLower(doc.Text())
			product = strings.Contains(text, "add to cart") || skuPattern.MatchString(text)
		}
	}
	if !product {
		return Classification{}, false
	}
	return Classification{
		Category:   CategoryEcommerce,
		Confidence: 0.7,
		Signals:    map[string]interface{}{"content_hint": "product"},
	}, true
}

// JSONLDTypes returns the unique lowercased schema.org @type values declared
// in the page's JSON-LD blocks, including nodes nested under @graph.
// Malformed blocks are skipped.
func JSONLDTypes(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var types []string

	var visit func(node interface{})
	visit = func(node interface{}) {
		switch v := node.(type) {
		case []interface{}:
			for _, item := range v {
				visit(item)
			}
		case map[string]interface{}:
			switch t := v["@type"].(type) {
			case string:
				addType(t, seen, &types)
			case []interface{}:
				for _, item := range t {
					if s, ok := item.(string); ok {
						addType(s, seen, &types)
					}
				}
			}
			if graph, ok := v["@graph"]; ok {
				visit(graph)
			}
		}
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return
		}
		visit(data)
	})

	return types
}

func addType(t string, seen map[string]bool, types *[]string) {
	t = strings.ToLower(strings.TrimSpace(t))
	// Compact IRIs such as "schema:Article" or full schema.org URLs
	if i := strings.LastIndexAny(t, ":/"); i >= 0 {
		t = t[i+1:]
	}
	if t == "" || seen[t] {
		return
	}
	seen[t] = true
	*types = append(*types, t)
}
