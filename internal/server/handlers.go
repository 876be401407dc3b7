package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/rag"
)

// Request defaults when k is omitted
const (
	defaultSearchK = 5
	defaultAnswerK = 3

	searchContentChars = 500
)

// SearchRequest is the body of POST /search
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=1000"`
	K     *int   `json:"k" validate:"omitnil,min=1,max=50"`
}

// SearchResult is one entry of a search response
type SearchResult struct {
	Rank             int     `json:"rank"`
	Title            string  `json:"title"`
	PolicyID         string  `json:"policy_id"`
	PolicyType       string  `json:"policy_type"`
	Agency           string  `json:"agency"`
	AgeRange         string  `json:"age_range"`
	Education        string  `json:"education"`
	EmploymentStatus string  `json:"employment_status"`
	ApplyStart       string  `json:"apply_start"`
	ApplyEnd         string  `json:"apply_end"`
	SupportScale     string  `json:"support_scale"`
	PageURL          string  `json:"page_url"`
	ApplicationSite  string  `json:"application_site"`
	Content          string  `json:"content"`
	Score            float64 `json:"score"`
}

// SearchResponse is the body of a successful search
type SearchResponse struct {
	Query      string         `json:"query"`
	Results    []SearchResult `json:"results"`
	TotalCount int            `json:"total_count"`
}

// AnswerRequest is the body of POST /answer and POST /web/answer
type AnswerRequest struct {
	Query    string `json:"query" validate:"required,max=1000"`
	K        *int   `json:"k" validate:"omitnil,min=1,max=20"`
	UseModel *bool  `json:"use_model"`
	// UserContext is accepted for compatibility and not used for retrieval
	UserContext string `json:"user_context" validate:"max=2000"`
}

// Source is one answer source
type Source struct {
	Title           string  `json:"title"`
	PolicyID        string  `json:"policy_id,omitempty"`
	Agency          string  `json:"agency,omitempty"`
	PageURL         string  `json:"page_url,omitempty"`
	ApplicationSite string  `json:"application_site,omitempty"`
	Source          string  `json:"source,omitempty"`
	RelevanceScore  float64 `json:"relevance_score"`
}

// AnswerResponse is the body of a successful answer
type AnswerResponse struct {
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	UsedModel  bool     `json:"used_model"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status        string `json:"status"`
	IndexReady    bool   `json:"index_ready"`
	DocumentCount int    `json:"document_count"`
	Model         string `json:"model,omitempty"`
	WebEnabled    bool   `json:"web_enabled"`
}

// PolicyResponse is the body of GET /policy/{id}
type PolicyResponse struct {
	PolicyID string            `json:"policy_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"search": "/search",
		"answer": "/answer",
		"health": "/health",
		"policy": "/policy/{id}",
	}
	if s.opts.Web != nil {
		endpoints["web_answer"] = "/web/answer"
	}
	if s.opts.Metrics != nil {
		endpoints["metrics"] = "/metrics"
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":   "청년정책 검색 API",
		"version":   s.opts.Version,
		"endpoints": endpoints,
	})
}

// handleHealth always answers 200 while the process is up; index_ready
// tells whether questions can be answered
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.opts.Engine.Ready(r.Context())
	if err != nil {
		s.logger.Debug("index not ready", zap.Error(err))
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetIndexDocuments(count)
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		IndexReady:    err == nil,
		DocumentCount: count,
		Model:         s.opts.ModelName,
		WebEnabled:    s.opts.Web != nil,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.respondEngineError(w, r, err)
		return
	}

	matches, err := s.opts.Engine.Search(r.Context(), req.Query, intOr(req.K, defaultSearchK))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Rank:             m.Rank,
			Title:            m.Title(),
			PolicyID:         m.Get(model.KeyPolicyID),
			PolicyType:       m.Get(model.KeyPolicyType),
			Agency:           m.Get(model.KeyAgency),
			AgeRange:         m.Get(model.KeyAgeRange),
			Education:        m.Get(model.KeyEducation),
			EmploymentStatus: m.Get(model.KeyEmploymentStatus),
			ApplyStart:       m.Get(model.KeyApplyStart),
			ApplyEnd:         m.Get(model.KeyApplyEnd),
			SupportScale:     m.Get(model.KeySupportScale),
			PageURL:          m.Get(model.KeyPageURL),
			ApplicationSite:  m.Get(model.KeyApplicationSite),
			Content:          rag.Truncate(m.Text, searchContentChars),
			Score:            m.Score,
		})
	}

	respondJSON(w, http.StatusOK, SearchResponse{
		Query:      req.Query,
		Results:    results,
		TotalCount: len(results),
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, s.opts.Engine)
}

func (s *Server) handleWebAnswer(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, s.opts.Web)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, engine Answerer) {
	var req AnswerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.respondEngineError(w, r, err)
		return
	}

	useModel := req.UseModel == nil || *req.UseModel
	bundle, err := engine.Answer(r.Context(), req.Query, intOr(req.K, s.defaultK()), useModel)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newAnswerResponse(bundle))
}

func newAnswerResponse(b *model.AnswerBundle) AnswerResponse {
	sources := make([]Source, 0, len(b.Sources))
	for _, m := range b.Sources {
		sources = append(sources, Source{
			Title:           m.Title(),
			PolicyID:        m.Get(model.KeyPolicyID),
			Agency:          m.Get(model.KeyAgency),
			PageURL:         m.Get(model.KeyPageURL),
			ApplicationSite: m.Get(model.KeyApplicationSite),
			Source:          m.Get(model.KeySource),
			RelevanceScore:  m.Score,
		})
	}

	return AnswerResponse{
		Query:      b.Query,
		Answer:     b.Answer,
		Sources:    sources,
		Confidence: b.Confidence,
		UsedModel:  b.UsedModel,
	}
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	doc, err := s.opts.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PolicyResponse{
		PolicyID: doc.ID,
		Text:     doc.Text,
		Metadata: doc.Metadata,
	})
}

func (s *Server) defaultK() int {
	if s.opts.DefaultK > 0 {
		return s.opts.DefaultK
	}
	return defaultAnswerK
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
