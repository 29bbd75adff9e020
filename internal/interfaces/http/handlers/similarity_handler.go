package handlers

import (
	"net/http"
	"strings"

	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// Scorer computes the similarity of two texts.
type Scorer interface {
	Score(reference, candidate string) float64
}

// ThresholdSource reports the current match threshold.
type ThresholdSource interface {
	Threshold() float64
}

// SimilarityHandler scores arbitrary text pairs.
type SimilarityHandler struct {
	scorer    Scorer
	threshold ThresholdSource
}

// NewSimilarityHandler creates a SimilarityHandler. threshold may be nil.
func NewSimilarityHandler(scorer Scorer, threshold ThresholdSource) *SimilarityHandler {
	return &SimilarityHandler{scorer: scorer, threshold: threshold}
}

// SimilarityRequest is the body of POST /api/v1/similarity.
type SimilarityRequest struct {
	Reference string `json:"reference"`
	Candidate string `json:"candidate"`
}

// SimilarityResponse carries the score and, when a threshold is known,
// whether it counts as a match.
type SimilarityResponse struct {
	Score     float64  `json:"score"`
	Threshold *float64 `json:"threshold,omitempty"`
	Match     *bool    `json:"match,omitempty"`
}

// Score handles POST /api/v1/similarity.
func (h *SimilarityHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req SimilarityRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, err)
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeAppError(w, errors.Validation("reference is required"))
		return
	}

	resp := SimilarityResponse{Score: h.scorer.Score(req.Reference, req.Candidate)}
	if h.threshold != nil {
		t := h.threshold.Threshold()
		match := resp.Score >= t
		resp.Threshold = &t
		resp.Match = &match
	}
	writeJSON(w, http.StatusOK, resp)
}
