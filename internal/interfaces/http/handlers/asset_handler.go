package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/middleware"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// Registry is the part of the monitoring registry the handler reads and
// mutates.
type Registry interface {
	Get(ctx context.Context, ipID string) (*asset.IPAsset, error)
	Status(ctx context.Context, userID string) (*monitoring.StatusReport, error)
	Pending(ctx context.Context, userID string) ([]monitoring.PendingGroup, error)
	ClearViolations(ctx context.Context, ipID string) error
}

// Scanner runs ad-hoc scans.
type Scanner interface {
	ScanAll(ctx context.Context, ip *asset.IPAsset) []asset.ViolationRecord
	ScanSource(ctx context.Context, ip *asset.IPAsset, name asset.Source) ([]asset.ViolationRecord, error)
}

// AssetHandler serves the asset and alert endpoints.
type AssetHandler struct {
	registry    Registry
	scanner     Scanner
	enforcement enforcement.Service
}

// NewAssetHandler creates an AssetHandler. enforcement may be nil, which
// disables the enforce endpoint.
func NewAssetHandler(registry Registry, scanner Scanner, enforce enforcement.Service) *AssetHandler {
	return &AssetHandler{registry: registry, scanner: scanner, enforcement: enforce}
}

// ListUserAssets handles GET /api/v1/users/{userID}/assets.
func (h *AssetHandler) ListUserAssets(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := authorizeUser(r, userID); err != nil {
		writeAppError(w, err)
		return
	}
	report, err := h.registry.Status(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AlertsResponse is the body of GET /api/v1/users/{userID}/alerts.
type AlertsResponse struct {
	Alerts []monitoring.PendingGroup `json:"alerts"`
}

// ListUserAlerts handles GET /api/v1/users/{userID}/alerts.
func (h *AssetHandler) ListUserAlerts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := authorizeUser(r, userID); err != nil {
		writeAppError(w, err)
		return
	}
	groups, err := h.registry.Pending(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if groups == nil {
		groups = []monitoring.PendingGroup{}
	}
	writeJSON(w, http.StatusOK, AlertsResponse{Alerts: groups})
}

// GetAsset handles GET /api/v1/assets/{ipID}.
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ClearViolations handles DELETE /api/v1/assets/{ipID}/violations.
func (h *AssetHandler) ClearViolations(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.registry.ClearViolations(r.Context(), a.ID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ScanRequest optionally restricts a scan to one source.
type ScanRequest struct {
	Source asset.Source `json:"source,omitempty"`
}

// ScanResponse lists matches of an ad-hoc scan. The matches are not added to
// the asset's pending list.
type ScanResponse struct {
	IPID    string                  `json:"ip_id"`
	Count   int                     `json:"count"`
	Matches []asset.ViolationRecord `json:"matches"`
}

// Scan handles POST /api/v1/assets/{ipID}/scan.
func (h *AssetHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeAppError(w, err)
		return
	}
	a, err := h.load(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var matches []asset.ViolationRecord
	if req.Source != "" {
		matches, err = h.scanner.ScanSource(r.Context(), a, req.Source)
		if err != nil {
			writeAppError(w, err)
			return
		}
	} else {
		matches = h.scanner.ScanAll(r.Context(), a)
	}
	if matches == nil {
		matches = []asset.ViolationRecord{}
	}
	writeJSON(w, http.StatusOK, ScanResponse{IPID: a.ID, Count: len(matches), Matches: matches})
}

// EnforceRequest is the body of POST /api/v1/assets/{ipID}/enforce.
type EnforceRequest struct {
	Tone string `json:"tone,omitempty"`
}

// Enforce handles POST /api/v1/assets/{ipID}/enforce.
func (h *AssetHandler) Enforce(w http.ResponseWriter, r *http.Request) {
	if h.enforcement == nil {
		writeAppError(w, errors.New(errors.ErrCodeFeatureDisabled, "enforcement is disabled"))
		return
	}
	var req EnforceRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeAppError(w, err)
		return
	}
	var tone enforcement.Tone
	if req.Tone != "" {
		t, ok := enforcement.ParseTone(req.Tone)
		if !ok {
			writeAppError(w, errors.Validation("tone must be one of friendly, formal, vibe"))
			return
		}
		tone = t
	}
	a, err := h.load(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	res, err := h.enforcement.Enforce(r.Context(), enforcement.Request{OwnerID: a.OwnerID, IPID: a.ID, Tone: tone})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// load fetches the asset in the path. Another user's asset is reported as
// not found.
func (h *AssetHandler) load(r *http.Request) (*asset.IPAsset, error) {
	ipID := chi.URLParam(r, "ipID")
	a, err := h.registry.Get(r.Context(), ipID)
	if err != nil {
		return nil, err
	}
	if caller := middleware.ContextGetUserID(r.Context()); caller != "" && caller != a.OwnerID {
		return nil, errors.Newf(errors.ErrCodeAssetNotFound, "asset %s not found", ipID)
	}
	return a, nil
}
