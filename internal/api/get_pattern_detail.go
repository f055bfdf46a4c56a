package api

import (
	"errors"
	"net/http"

	"github.com/onex-learning/patternd/internal/patternstore"
)

// handlePatternDetail handles GET /v1/patterns/{pattern_id}. The response
// carries both the requested version and its full lineage - every version
// sharing the same signature_hash, newest first.
func (s *Server) handlePatternDetail(w http.ResponseWriter, r *http.Request) {
	patternID := r.PathValue("pattern_id")
	if patternID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("pattern_id is required"))

		return
	}

	found, err := s.store.FetchPatternByID(r.Context(), patternID)
	if errors.Is(err, patternstore.ErrPatternNotFound) {
		WriteErrorResponse(w, r, s.logger, NotFound("No pattern with that id"))

		return
	}

	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to fetch pattern"))

		return
	}

	versions, err := s.store.QueryPatterns(r.Context(), patternstore.PatternFilters{SignatureHash: found.SignatureHash}, 0)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query pattern lineage"))

		return
	}

	lineage := make([]PatternSummary, 0, len(versions))
	for _, v := range versions {
		lineage = append(lineage, mapPatternToSummary(v))
	}

	resp := PatternDetailResponse{
		Pattern: mapPatternToSummary(found),
		Lineage: lineage,
	}

	s.writeJSONResponse(w, r, http.StatusOK, resp)
}
