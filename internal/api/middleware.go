package api

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// apiKeyHeader carries the collector API key on ingestion requests
const apiKeyHeader = "X-MM-Key"

// requireAPIKey rejects requests without a valid, active API key
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			respondError(w, http.StatusUnauthorized, "API key required in "+apiKeyHeader+" header")
			return
		}

		apiKey, err := s.repo.FindAPIKey(r.Context(), key)
		if err != nil {
			logrus.Errorf("API key lookup failed: %v", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if apiKey == nil {
			respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if err := s.repo.TouchAPIKey(r.Context(), apiKey.ID); err != nil {
			logrus.Warnf("Failed to record API key use: %v", err)
		}

		next.ServeHTTP(w, r)
	})
}
