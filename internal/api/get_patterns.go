package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onex-learning/patternd/internal/api/middleware"
	"github.com/onex-learning/patternd/internal/patternstore"
)

const (
	defaultPatternLimit = 20
	maxPatternLimit     = 100
)

var errInvalidLimit = errors.New("limit must be an integer between 1 and 100")

// handleListPatterns handles GET /v1/patterns?signature_hash=&status=&domain=&limit=.
func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	filters, limit, err := parsePatternListParams(r)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	patterns, err := s.store.QueryPatterns(r.Context(), filters, limit)
	if err != nil {
		s.logger.Error("Failed to query patterns",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query patterns"))

		return
	}

	summaries := make([]PatternSummary, 0, len(patterns))
	for _, p := range patterns {
		summaries = append(summaries, mapPatternToSummary(p))
	}

	resp := PatternListResponse{
		Patterns: summaries,
		Total:    len(summaries),
		Limit:    limit,
	}

	s.writeJSONResponse(w, r, http.StatusOK, resp)
}

func parsePatternListParams(r *http.Request) (patternstore.PatternFilters, int, error) {
	q := r.URL.Query()

	filters := patternstore.PatternFilters{
		SignatureHash: q.Get("signature_hash"),
		Domain:        q.Get("domain"),
	}

	if status := q.Get("status"); status != "" {
		filters.Status = patternstore.LifecycleStatus(status)
	}

	limit := defaultPatternLimit

	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > maxPatternLimit {
			return patternstore.PatternFilters{}, 0, errInvalidLimit
		}

		limit = parsed
	}

	return filters, limit, nil
}

func mapPatternToSummary(p patternstore.Pattern) PatternSummary {
	return PatternSummary{
		PatternID:       p.PatternID,
		Signature:       p.Signature,
		SignatureHash:   p.SignatureHash,
		Version:         p.Version,
		LifecycleStatus: string(p.LifecycleStatus),
		EvidenceTier:    string(p.EvidenceTier),
		Confidence:      p.Confidence,
		SuccessRate:     p.RollingMetrics.SuccessRate(),
		SampleCount:     len(p.RollingMetrics.Outcomes),
		LastTransition:  p.LastTransitionedAt,
	}
}

// writeJSONResponse marshals body and writes it with the given status,
// logging (but not re-reporting to the client) any write failure.
func (s *Server) writeJSONResponse(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}
