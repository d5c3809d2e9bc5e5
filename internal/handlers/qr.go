package handlers

import (
	"net/http"
	"strings"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/qr"
	"github.com/xelth-com/assetledger/internal/utils"
)

// manageQR returns the tag management view
func (r *Router) manageQR(w http.ResponseWriter, req *http.Request) {
	branchID, err := queryUint(req, "branch_id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	status := models.AssetStatus(req.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondErr(w, req, apperr.Invalid("unknown status %q", status))
		return
	}
	ov, err := r.QR.Overview(req.Context(), qr.ManageFilter{BranchID: branchID, Status: status})
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, ov)
}

func (r *Router) generateBatch(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Count int `json:"count"`
	}
	if err := decodeOptionalJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	tags, err := r.QR.GenerateBatch(req.Context(), body.Count, actorID(req))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, tags)
}

// linkQR binds a scanned pre-generated tag to an asset
func (r *Router) linkQR(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Hash    string `json:"hash"`
		AssetID uint   `json:"assetId"`
		Notes   string `json:"notes"`
	}
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	if body.AssetID == 0 {
		respondErr(w, req, apperr.Invalid("assetId is required"))
		return
	}
	a, err := r.QR.Link(req.Context(), strings.TrimSpace(body.Hash), body.AssetID, r.details(req, body.Notes))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (r *Router) generateQR(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	a, err := r.QR.Generate(req.Context(), id, r.details(req, ""))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (r *Router) toggleQR(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	a, err := r.QR.ToggleActive(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// resetQR replaces an asset's tag with a fresh one, voiding the printed label
func (r *Router) resetQR(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decodeOptionalJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	a, err := r.QR.Reset(req.Context(), id, r.details(req, body.Notes))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (r *Router) reassignQR(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	var body struct {
		TargetSerial string `json:"targetSerial"`
		Notes        string `json:"notes"`
	}
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	serial := strings.TrimSpace(body.TargetSerial)
	if serial == "" {
		respondErr(w, req, apperr.Invalid("targetSerial is required"))
		return
	}
	res, err := r.QR.Reassign(req.Context(), id, serial, r.details(req, body.Notes))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) getScanFlag(w http.ResponseWriter, req *http.Request) {
	on, err := r.ScanFlag.Enabled(req.Context())
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}

func (r *Router) setScanFlag(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	if body.Enabled == nil {
		respondErr(w, req, apperr.Invalid("enabled is required"))
		return
	}
	if err := r.ScanFlag.Set(req.Context(), *body.Enabled); err != nil {
		respondErr(w, req, err)
		return
	}
	r.logScanFlag(req, *body.Enabled)
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": *body.Enabled})
}

func (r *Router) toggleScanFlag(w http.ResponseWriter, req *http.Request) {
	on, err := r.ScanFlag.Toggle(req.Context())
	if err != nil {
		respondErr(w, req, err)
		return
	}
	r.logScanFlag(req, on)
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}

func (r *Router) logScanFlag(req *http.Request, on bool) {
	log := utils.LoggerFromContext(req.Context()).WithField("enabled", on)
	if on {
		log.Info("🔓 public QR scanning enabled")
	} else {
		log.Warn("🔒 public QR scanning disabled")
	}
}

// details builds the audit fields shared by tag operations
func (r *Router) details(req *http.Request, notes string) ledger.Details {
	return ledger.Details{ActorID: actorID(req), Notes: strings.TrimSpace(notes)}
}
