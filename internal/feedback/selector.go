package feedback

import "github.com/onex-learning/patternd/internal/config"

// SelectHeuristic resolves the deployment's configured contribution
// heuristic from ATTRIBUTION_HEURISTIC (default equal_split). The variable
// is read on every call.
func SelectHeuristic() Heuristic {
	switch config.GetEnvStr("ATTRIBUTION_HEURISTIC", "equal_split") {
	case "recency_weighted":
		return RecencyWeighted{}
	case "first_match":
		return FirstMatch{}
	default:
		return EqualSplit{}
	}
}
