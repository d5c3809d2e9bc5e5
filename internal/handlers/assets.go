package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/reports"
)

// PurchaseRequest registers a new asset
type PurchaseRequest struct {
	SerialNumber string `json:"serialNumber"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	PurchaseDate string `json:"purchaseDate"` // YYYY-MM-DD, defaults to today
	BranchID     uint   `json:"branchId"`
	Notes        string `json:"notes"`
}

// ActionRequest applies a custody transition
type ActionRequest struct {
	Action     string `json:"action"`
	EmployeeID uint   `json:"employeeId"` // allocate
	BranchID   uint   `json:"branchId"`   // return, transfer
	Notes      string `json:"notes"`
	Courier    string `json:"courier"`
}

// AssetDetail is an asset with its ledger and the actions it accepts
type AssetDetail struct {
	Asset          *models.Asset         `json:"asset"`
	History        []models.AssetHistory `json:"history"`
	AllowedActions []ledger.Transition   `json:"allowedActions"`
}

func assetFilter(req *http.Request) (reports.Filter, error) {
	q := req.URL.Query()
	f := reports.Filter{
		Status: models.AssetStatus(q.Get("status")),
		Search: q.Get("q"),
		SortBy: q.Get("sort"),
		Order:  q.Get("order"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, apperr.Invalid("unknown status %q", f.Status)
	}
	branchID, err := queryUint(req, "branch_id")
	if err != nil {
		return f, err
	}
	f.BranchID = branchID
	return f, nil
}

func (r *Router) listAssets(w http.ResponseWriter, req *http.Request) {
	f, err := assetFilter(req)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	rows, err := r.Reports.Assets(req.Context(), f)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (r *Router) purchaseAsset(w http.ResponseWriter, req *http.Request) {
	var body PurchaseRequest
	doc, err := r.readPayload(w, req, &body)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	in := ledger.PurchaseInput{
		SerialNumber: body.SerialNumber,
		Brand:        body.Brand,
		Model:        body.Model,
		BranchID:     body.BranchID,
		Details:      ledger.Details{ActorID: actorID(req), Notes: body.Notes, DocumentRef: doc},
	}
	if body.PurchaseDate != "" {
		d, err := time.Parse("2006-01-02", body.PurchaseDate)
		if err != nil {
			r.discardDocument(req.Context(), doc)
			respondError(w, http.StatusBadRequest, "purchaseDate must be YYYY-MM-DD")
			return
		}
		in.PurchaseDate = d
	}

	a, err := r.Ledger.Purchase(req.Context(), in)
	if err != nil {
		r.discardDocument(req.Context(), doc)
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (r *Router) getAsset(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	a, err := r.Ledger.Get(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	hist, err := r.Ledger.History(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	allowed := ledger.AllowedFrom(a.Status)
	if allowed == nil {
		allowed = []ledger.Transition{}
	}
	respondJSON(w, http.StatusOK, AssetDetail{Asset: a, History: hist, AllowedActions: allowed})
}

func (r *Router) assetHistory(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	if _, err := r.Ledger.Get(req.Context(), id); err != nil {
		respondErr(w, req, err)
		return
	}
	hist, err := r.Ledger.History(req.Context(), id)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, hist)
}

// assetAction applies one custody transition, optionally with a proof document
func (r *Router) assetAction(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	var body ActionRequest
	doc, err := r.readPayload(w, req, &body)
	if err != nil {
		respondErr(w, req, err)
		return
	}

	a, err := r.applyAction(req, id, body, doc)
	if err != nil {
		r.discardDocument(req.Context(), doc)
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (r *Router) applyAction(req *http.Request, id uint, body ActionRequest, doc *string) (*models.Asset, error) {
	t, err := ledger.ParseTransition(body.Action)
	if err != nil {
		return nil, err
	}
	var target uint
	switch t {
	case ledger.Allocate:
		if body.EmployeeID == 0 {
			return nil, apperr.Invalid("employeeId is required")
		}
		target = body.EmployeeID
	case ledger.Return, ledger.InitiateTransfer:
		if body.BranchID == 0 {
			return nil, apperr.Invalid("branchId is required")
		}
		target = body.BranchID
	}
	d := ledger.Details{
		ActorID:     actorID(req),
		Notes:       strings.TrimSpace(body.Notes),
		Courier:     strings.TrimSpace(body.Courier),
		DocumentRef: doc,
	}
	return r.Ledger.Apply(req.Context(), t, id, target, d)
}

// revert undoes an asset's newest history entry
func (r *Router) revert(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	var body struct {
		ConfirmDeletion bool `json:"confirmDeletion"`
	}
	if err := decodeOptionalJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}

	res, err := r.Ledger.Revert(req.Context(), id, ledger.RevertOptions{AllowAssetDeletion: body.ConfirmDeletion})
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
