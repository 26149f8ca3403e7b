package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustlens/evidence-verifier/internal/analysis"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/models"
	"github.com/trustlens/evidence-verifier/internal/storage"
)

// stubVerifier verifies URLs on cdc.gov and fails everything else
type stubVerifier struct{}

func (stubVerifier) VerifyAll(_ context.Context, targets []string) []models.VerificationResult {
	results := make([]models.VerificationResult, 0, len(targets))
	for _, target := range targets {
		r := models.VerificationResult{InputURL: target, IPs: []string{}, Signals: map[string]interface{}{}}
		if strings.Contains(target, "cdc.gov") {
			r.Domain = "cdc.gov"
			r.Verified = true
			r.StatusCode = 200
			r.Category = "government"
			r.Reason = "reachable"
		} else {
			r.Reason = "dns_failure:no such host"
		}
		results = append(results, r)
	}
	return results
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.Default()
	cfg.AllowedOrigins = []string{"chrome-extension://abc"}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	service, err := analysis.NewService(cfg, stubVerifier{}, analysis.WithStorage(store))
	require.NoError(t, err)

	return NewServer(cfg, service).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestAnalyzeEvidence(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		body   string
		status models.EvidenceStatus
		badge  models.BadgeColor
	}{
		{
			name:   "Verified link with neutral tone",
			body:   `{"text": "See https://www.cdc.gov/flu"}`,
			status: models.StatusVerified,
			badge:  models.BadgeGreen,
		},
		{
			name:   "Unverified link",
			body:   `{"text": "Proof: https://nope.example/x"}`,
			status: models.StatusUnverified,
			badge:  models.BadgeYellow,
		},
		{
			name:   "Toxic opinion",
			body:   `{"text": "whatever", "tone": "red"}`,
			status: models.StatusNone,
			badge:  models.BadgeRed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/analyze-evidence", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.status), resp["status"])
			assert.Equal(t, string(tt.badge), resp["badge_color"])
			assert.NotEmpty(t, resp["TL2_tooltip"])
			assert.NotEmpty(t, resp["TL3_detail"])
			assert.Contains(t, resp, "evidence")
		})
	}
}

func TestAnalyzeEvidence_BadJSON(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/analyze-evidence", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON body")
}

func TestAnalyze(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/analyze", `{
		"source": "test",
		"comments": [{"comment_id": "a", "text": "https://www.cdc.gov/flu", "tone": "green"}],
		"texts": ["I think so"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "test", report.Source)
	assert.Equal(t, 2, report.TotalComments)
	assert.Equal(t, "a", report.Comments[0].CommentID)
	assert.Equal(t, 1, report.Summary.URLsVerified)

	rec = doJSON(t, router, http.MethodGet, "/reports/"+report.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), report.ID)

	rec = doJSON(t, router, http.MethodPost, "/analyze", `{"comments": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_Payload(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ingest", `{
		"filename": "thread.json",
		"data": {"comments": [
			{"body": "Top https://www.cdc.gov/flu", "replies": [{"body": "reply"}]},
			{"body": "second"}
		]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "thread.json", resp.Source)
	assert.Equal(t, 3, resp.Counts["comments"])
	assert.Equal(t, []models.BadgeColor{models.BadgeGreen, models.BadgeGreen, models.BadgeGreen}, resp.BadgeColors)
}

func TestIngest_Errors(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ingest", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/ingest", `{"source": "myspace", "target": "x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestVerify(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/verify", `{"url": "https://www.cdc.gov/flu", "urls": ["https://nope.example"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int                         `json:"count"`
		Results []models.VerificationResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.True(t, resp.Results[0].Verified)
	assert.False(t, resp.Results[1].Verified)

	rec = doJSON(t, router, http.MethodPost, "/verify", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeuristics(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/heuristics", `{"texts": ["A peer-reviewed meta-analysis", "trust me bro"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			Text  string  `json:"text"`
			Score float64 `json:"heur_score"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "A peer-reviewed meta-analysis", resp.Results[0].Text)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestPredictBadge(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/predict-badge", `{"text": "", "model_confidence": 1.0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictBadgeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 0.70, resp.FinalScore, 1e-9)
	assert.Equal(t, models.BadgeYellow, resp.BadgeColor)

	rec = doJSON(t, router, http.MethodPost, "/predict-badge", `{"text": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/predict-badge", `{"text": "x", "model_confidence": 1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/analyze-evidence", `{"text": "hello"}`)

	rec := doJSON(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Performance models.PerformanceStats `json:"performance"`
		Batches     map[string]interface{}  `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Performance.TotalCommentsProcessed)
	assert.Contains(t, resp.Batches, "total_reports")

	rec = doJSON(t, router, http.MethodGet, "/metrics/prometheus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trustlens_evidence_comments_processed_total 1")
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/analyze-evidence", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodPost, "/heuristics", bytes.NewBufferString(`{"text": "hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "chrome-extension://abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
