// Package api provides HTTP API server implementation for the pattern store.
package api

import (
	"net/http"
	"time"
)

type (
	// PatternListResponse is the response for GET /v1/patterns.
	PatternListResponse struct {
		Patterns []PatternSummary `json:"patterns"`
		Total    int              `json:"total"`
		Limit    int              `json:"limit"`
	}

	// PatternSummary is one row of a pattern list view.
	PatternSummary struct {
		PatternID       string    `json:"pattern_id"`
		Signature       string    `json:"signature"`
		SignatureHash   string    `json:"signature_hash"`
		Version         int       `json:"version"`
		LifecycleStatus string    `json:"lifecycle_status"`
		EvidenceTier    string    `json:"evidence_tier"`
		Confidence      float64   `json:"confidence"`
		SuccessRate     float64   `json:"success_rate"`
		SampleCount     int       `json:"sample_count"`
		LastTransition  time.Time `json:"last_transitioned_at"`
	}

	// PatternDetailResponse is the response for GET /v1/patterns/{pattern_id}.
	// Lineage carries every version sharing the pattern's signature_hash,
	// newest first, so a client can see how the pattern evolved.
	PatternDetailResponse struct {
		Pattern PatternSummary   `json:"pattern"`
		Lineage []PatternSummary `json:"lineage"`
	}

	// DecisionReplayResponse is the response for
	// GET /v1/decisions/{decision_id}/replay.
	DecisionReplayResponse struct {
		DecisionID      string           `json:"decision_id"`
		ChosenID        string           `json:"chosen_id"`
		RecomputedID    string           `json:"recomputed_id"`
		Consistent      bool             `json:"consistent"`
		MismatchSignals []MismatchSignal `json:"mismatch_signals,omitempty"`
	}

	// MismatchSignal mirrors decision.MismatchSignal for the wire response,
	// keeping internal/api free of a direct dependency on internal/decision's
	// unexported detection internals beyond the one exported entry point.
	MismatchSignal struct {
		Type     string `json:"type"`
		Severity string `json:"severity"`
		Detail   string `json:"detail"`
	}

	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// Route represents an HTTP route configuration with a path and handler.
	// Used for declarative route registration with middleware bypass support.
	Route struct {
		Path    string           // The URL path for this route (e.g., "/ping", "/health")
		Handler http.HandlerFunc // The HTTP handler function for this route
	}
)
