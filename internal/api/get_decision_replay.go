package api

import (
	"errors"
	"net/http"

	"github.com/onex-learning/patternd/internal/decision"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// handleDecisionReplay handles GET /v1/decisions/{decision_id}/replay. It
// recomputes the decision's winner from its persisted provenance rather than
// trusting the record's already-stored chosen_id, and runs the same
// mismatch scan the mismatch detector node runs on ingest.
func (s *Server) handleDecisionReplay(w http.ResponseWriter, r *http.Request) {
	decisionID := r.PathValue("decision_id")
	if decisionID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("decision_id is required"))

		return
	}

	result, err := decision.LoadAndReplay(r.Context(), s.store, decisionID)
	if errors.Is(err, patternstore.ErrDecisionNotFound) {
		WriteErrorResponse(w, r, s.logger, NotFound("No decision with that id"))

		return
	}

	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to replay decision"))

		return
	}

	resp := DecisionReplayResponse{
		DecisionID:   result.DecisionID,
		ChosenID:     result.ChosenID,
		RecomputedID: result.RecomputedID,
		Consistent:   result.Consistent,
	}

	for _, sig := range result.MismatchSignals {
		resp.MismatchSignals = append(resp.MismatchSignals, MismatchSignal{
			Type:     string(sig.Type),
			Severity: string(sig.Severity),
			Detail:   sig.Detail,
		})
	}

	s.writeJSONResponse(w, r, http.StatusOK, resp)
}
