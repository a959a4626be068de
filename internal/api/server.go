package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mediapulse/mentions/internal/analytics"
	"github.com/mediapulse/mentions/internal/ingestion"
	"github.com/mediapulse/mentions/internal/insights"
	"github.com/mediapulse/mentions/internal/reporting"
	"github.com/mediapulse/mentions/internal/repository"
	"github.com/sirupsen/logrus"
)

// Server wires the HTTP surface over the analytics core
type Server struct {
	repo             repository.Repository
	aggregator       *analytics.Aggregator
	ingestionService *ingestion.Service
	insightsService  *insights.Service // nil when no summarizer is configured
	reportingService *reporting.Service
}

// NewServer creates the API server
func NewServer(repo repository.Repository, aggregator *analytics.Aggregator,
	ingestionService *ingestion.Service, insightsService *insights.Service,
	reportingService *reporting.Service) *Server {
	return &Server{
		repo:             repo,
		aggregator:       aggregator,
		ingestionService: ingestionService,
		insightsService:  insightsService,
		reportingService: reportingService,
	}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/trigger", s.handleTrigger).Methods("POST")

	v1 := router.PathPrefix("/v1").Subrouter()

	// Ingestion requires a collector API key
	v1.Handle("/ingest", s.requireAPIKey(http.HandlerFunc(s.handleIngest))).Methods("POST")

	v1.HandleFunc("/persons", s.handleCreatePerson).Methods("POST")
	v1.HandleFunc("/persons", s.handleListPersons).Methods("GET")
	v1.HandleFunc("/persons/{slug}", s.handleGetPerson).Methods("GET")

	v1.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	v1.HandleFunc("/metrics/{slug}", s.handleMetrics).Methods("GET")

	v1.HandleFunc("/insights/{slug}", s.handleInsight).Methods("GET")
	v1.HandleFunc("/insights/{slug}/question", s.handleQuestion).Methods("POST")

	return router
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logrus.Errorf("Failed to encode response: %v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
