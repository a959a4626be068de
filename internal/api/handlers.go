package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mediapulse/mentions/internal/analytics"
	"github.com/mediapulse/mentions/internal/ingestion"
	"github.com/mediapulse/mentions/internal/insights"
	"github.com/mediapulse/mentions/internal/models"
	"github.com/sirupsen/logrus"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleTrigger starts a report run in the background, for testing and
// manual re-runs
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.reportingService.RunScheduledReport(); err != nil {
			logrus.Errorf("Manual report trigger failed: %v", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"message": "report run triggered"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var input ingestion.MentionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if input.SourceID == "" {
		respondError(w, http.StatusBadRequest, "source_id is required")
		return
	}

	result, err := s.ingestionService.Ingest(r.Context(), input)
	if err != nil {
		logrus.Errorf("Ingestion failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to ingest mention")
		return
	}

	status := http.StatusCreated
	if result.Status == "duplicate" {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

type personCreateRequest struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	NameVariants []string `json:"name_variants"`
	MinusWords   []string `json:"minus_words"`
	Topics       []string `json:"topics"`
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req personCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Slug == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "slug and name are required")
		return
	}

	existing, err := s.repo.GetPersonBySlug(r.Context(), req.Slug)
	if err != nil {
		logrus.Errorf("Person lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "person with this slug already exists")
		return
	}

	person := &models.Person{
		Slug:         req.Slug,
		Name:         req.Name,
		NameVariants: req.NameVariants,
		MinusWords:   req.MinusWords,
		Topics:       req.Topics,
		Active:       true,
	}
	if err := s.repo.CreatePerson(r.Context(), person); err != nil {
		logrus.Errorf("Failed to create person: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create person")
		return
	}

	respondJSON(w, http.StatusCreated, person)
}

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := s.repo.ListPersons(r.Context(), false)
	if err != nil {
		logrus.Errorf("Failed to list persons: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}
	respondJSON(w, http.StatusOK, persons)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	person, ok := s.resolvePerson(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, person)
}

// handleMetrics returns the KPI bundle for one person, or for all mentions
// when no slug is given
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = analytics.DefaultPeriod
	}

	personID := int64(0)
	var person *models.Person
	if _, present := mux.Vars(r)["slug"]; present {
		p, ok := s.resolvePerson(w, r)
		if !ok {
			return
		}
		person = p
		personID = p.ID
	}

	report, err := s.aggregator.BuildReport(r.Context(), personID, period, 10)
	if err != nil {
		logrus.Errorf("Failed to build metrics: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	if person != nil {
		report.PersonSlug = person.Slug
		report.PersonName = person.Name
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	if s.insightsService == nil {
		respondError(w, http.StatusServiceUnavailable, "insights are not configured")
		return
	}

	person, ok := s.resolvePerson(w, r)
	if !ok {
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = analytics.DefaultPeriod
	}

	var insight *insights.Insight
	var err error
	switch r.URL.Query().Get("type") {
	case "spike", "spike_analysis":
		insight, err = s.insightsService.SpikeAnalysis(r.Context(), person, period)
	default:
		insight, err = s.insightsService.SentimentTrend(r.Context(), person, period)
	}
	if err != nil {
		logrus.Errorf("Insight generation failed: %v", err)
		respondError(w, http.StatusBadGateway, "failed to generate insight")
		return
	}

	respondJSON(w, http.StatusOK, insight)
}

type questionRequest struct {
	Question string `json:"question"`
	Period   string `json:"period"`
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	if s.insightsService == nil {
		respondError(w, http.StatusServiceUnavailable, "insights are not configured")
		return
	}

	person, ok := s.resolvePerson(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Period == "" {
		req.Period = analytics.DefaultPeriod
	}

	insight, err := s.insightsService.CustomQuestion(r.Context(), person, req.Period, req.Question)
	if err != nil {
		logrus.Errorf("Question answering failed: %v", err)
		respondError(w, http.StatusBadGateway, "failed to answer question")
		return
	}

	respondJSON(w, http.StatusOK, insight)
}

func (s *Server) resolvePerson(w http.ResponseWriter, r *http.Request) (*models.Person, bool) {
	slug := mux.Vars(r)["slug"]
	person, err := s.repo.GetPersonBySlug(r.Context(), slug)
	if err != nil {
		logrus.Errorf("Person lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return nil, false
	}
	return person, true
}
