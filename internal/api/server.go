// Package api exposes the evidence pipeline over HTTP
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/analysis"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/heuristics"
	"github.com/trustlens/evidence-verifier/internal/models"
	"github.com/trustlens/evidence-verifier/internal/sources"
)

const (
	maxRequestBytes = 4 << 20
	maxBatchTexts   = 1000
)

// Server holds the HTTP handlers
type Server struct {
	config  *config.Config
	service *analysis.Service
}

// NewServer creates the HTTP layer over service
func NewServer(cfg *config.Config, service *analysis.Service) *Server {
	return &Server{config: cfg, service: service}
}

// Router returns the routes wrapped in the CORS policy for AllowedOrigins
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", s.metricsHandler).Methods("GET")
	router.Handle("/metrics/prometheus", s.service.Monitor().Handler()).Methods("GET")
	router.HandleFunc("/reports/{id}", s.reportHandler).Methods("GET")

	router.HandleFunc("/analyze-evidence", s.analyzeEvidenceHandler).Methods("POST")
	router.HandleFunc("/analyze", s.analyzeHandler).Methods("POST")
	router.HandleFunc("/ingest", s.ingestHandler).Methods("POST")
	router.HandleFunc("/verify", s.verifyHandler).Methods("POST")
	router.HandleFunc("/heuristics", s.heuristicsHandler).Methods("POST")
	router.HandleFunc("/predict-badge", s.predictBadgeHandler).Methods("POST")

	return cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"performance": s.service.Monitor().Snapshot(),
		"batches":     json.RawMessage(s.service.GetMetrics()),
	})
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.LoadReport(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type commentRequest struct {
	CommentID string      `json:"comment_id"`
	Text      string      `json:"text"`
	Tone      models.Tone `json:"tone,omitempty"`
}

type evidenceBlock struct {
	URLs    []string                    `json:"urls"`
	Results []models.VerificationResult `json:"results"`
}

// evidenceResponse is the single-comment analysis plus the flat fields the
// browser badge reads
type evidenceResponse struct {
	models.CommentAnalysis
	BadgeColor    models.BadgeColor `json:"badge_color"`
	ToxicityColor models.Tone       `json:"toxicity_color,omitempty"`
	Evidence      evidenceBlock     `json:"evidence"`
}

func (s *Server) analyzeEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	analyses := []models.CommentAnalysis{
		s.service.AnalyzeComment(r.Context(), models.Comment{ID: req.CommentID, Text: req.Text}),
	}
	s.service.ApplyToxicity(r.Context(), analyses, []models.Tone{req.Tone})
	a := analyses[0]

	resp := evidenceResponse{
		CommentAnalysis: a,
		BadgeColor:      a.Badge.Color,
		ToxicityColor:   req.Tone,
		Evidence:        evidenceBlock{URLs: a.URLs, Results: a.Results},
	}
	if a.Toxicity != nil {
		resp.ToxicityColor = a.Toxicity.Tone
	}

	writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	Source   string           `json:"source,omitempty"`
	Comments []commentRequest `json:"comments"`
	Texts    []string         `json:"texts,omitempty"`
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comments := make([]models.Comment, 0, len(req.Comments)+len(req.Texts))
	for _, c := range req.Comments {
		comments = append(comments, models.Comment{ID: c.CommentID, Text: c.Text, Tone: c.Tone})
	}
	for _, text := range req.Texts {
		comments = append(comments, models.Comment{Text: text})
	}
	if len(comments) == 0 {
		writeError(w, http.StatusBadRequest, "no comments to analyze")
		return
	}
	if len(comments) > maxBatchTexts {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d comments per batch", maxBatchTexts))
		return
	}

	report, err := s.service.RunBatch(r.Context(), req.Source, comments)
	if err != nil {
		logrus.Errorf("Batch analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ingestRequest is either a posted thread payload or a source thread to fetch
type ingestRequest struct {
	Filename string          `json:"filename,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Source   string          `json:"source,omitempty"`
	Target   string          `json:"target,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

type ingestResponse struct {
	Status      string              `json:"status"`
	ReportID    string              `json:"report_id"`
	Source      string              `json:"source"`
	Counts      map[string]int      `json:"counts"`
	BadgeColors []models.BadgeColor `json:"badge_colors"`
}

func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		report *models.Report
		err    error
	)

	switch {
	case req.Source != "":
		report, err = s.service.Ingest(r.Context(), req.Source, req.Target, req.Limit)
	case len(req.Data) > 0:
		var thread sources.ThreadPayload
		if err := json.Unmarshal(req.Data, &thread.Data); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid thread payload: %v", err))
			return
		}
		source := "ingest"
		if req.Filename != "" {
			source = req.Filename
		}
		report, err = s.service.RunBatch(r.Context(), source, thread.Comments())
	default:
		writeError(w, http.StatusBadRequest, "either data or source is required")
		return
	}

	if err != nil {
		logrus.Errorf("Ingest failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "message": err.Error()})
		return
	}

	resp := ingestResponse{
		Status:      "ok",
		ReportID:    report.ID,
		Source:      report.Source,
		Counts:      map[string]int{"comments": report.TotalComments, "urls": report.Summary.URLsChecked},
		BadgeColors: make([]models.BadgeColor, 0, len(report.Comments)),
	}
	for _, c := range report.Comments {
		if c.Badge != nil {
			resp.BadgeColors = append(resp.BadgeColors, c.Badge.Color)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type verifyRequest struct {
	URL  string   `json:"url,omitempty"`
	URLs []string `json:"urls,omitempty"`
}

func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	targets := req.URLs
	if req.URL != "" {
		targets = append([]string{req.URL}, targets...)
	}
	if len(targets) == 0 {
		writeError(w, http.StatusBadRequest, "url or urls is required")
		return
	}
	if len(targets) > maxBatchTexts {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d urls per request", maxBatchTexts))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(targets),
		"results": s.service.VerifyURLs(r.Context(), targets),
	})
}

type heuristicsRequest struct {
	Text  string   `json:"text,omitempty"`
	Texts []string `json:"texts,omitempty"`
}

type heuristicsResult struct {
	Text string `json:"text"`
	models.HeuristicScore
}

func (s *Server) heuristicsHandler(w http.ResponseWriter, r *http.Request) {
	var req heuristicsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	texts := req.Texts
	if req.Text != "" {
		texts = append([]string{req.Text}, texts...)
	}
	if len(texts) > maxBatchTexts {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d texts per request", maxBatchTexts))
		return
	}

	results := make([]heuristicsResult, 0, len(texts))
	for _, text := range texts {
		results = append(results, heuristicsResult{Text: text, HeuristicScore: s.service.Scorer().Score(text)})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

type predictBadgeRequest struct {
	Text            string   `json:"text"`
	ModelConfidence *float64 `json:"model_confidence"`
}

type predictBadgeResponse struct {
	Heuristics      models.HeuristicScore `json:"heuristics"`
	ModelConfidence float64               `json:"model_confidence"`
	FinalScore      float64               `json:"final_score"`
	BadgeColor      models.BadgeColor     `json:"badge_color"`
}

func (s *Server) predictBadgeHandler(w http.ResponseWriter, r *http.Request) {
	var req predictBadgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ModelConfidence == nil {
		writeError(w, http.StatusBadRequest, "model_confidence is required")
		return
	}
	if *req.ModelConfidence < 0 || *req.ModelConfidence > 1 {
		writeError(w, http.StatusBadRequest, "model_confidence must be between 0 and 1")
		return
	}

	heur := s.service.Scorer().Score(req.Text)
	final := heuristics.Fuse(*req.ModelConfidence, heur.Score)

	writeJSON(w, http.StatusOK, predictBadgeResponse{
		Heuristics:      heur,
		ModelConfidence: *req.ModelConfidence,
		FinalScore:      final,
		BadgeColor:      heuristics.BadgeFromFinal(final),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
