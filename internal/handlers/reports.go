package handlers

import (
	"net/http"

	"github.com/xelth-com/assetledger/internal/reports"
	"github.com/xelth-com/assetledger/internal/utils"
)

func (r *Router) dashboard(w http.ResponseWriter, req *http.Request) {
	d, err := r.Reports.Dashboard(req.Context())
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// exportCSV streams the filtered asset list as a CSV download
func (r *Router) exportCSV(w http.ResponseWriter, req *http.Request) {
	mode, err := reports.ParseMode(req.URL.Query().Get("mode"))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	f, err := assetFilter(req)
	if err != nil {
		respondErr(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+reports.ExportFilename(mode, r.Now())+"\"")
	if err := r.Reports.ExportCSV(req.Context(), w, mode, f); err != nil {
		// headers may be gone already; log and cut the stream short
		utils.LoggerFromContext(req.Context()).WithError(err).Error("❌ CSV export failed")
	}
}

func (r *Router) transactions(w http.ResponseWriter, req *http.Request) {
	p, err := r.Reports.Transactions(req.Context(), queryPage(req))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (r *Router) scanHistory(w http.ResponseWriter, req *http.Request) {
	p, err := r.Reports.ScanLogs(req.Context(), queryPage(req))
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
