package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/xelth-com/assetledger/internal/middleware"
	"github.com/xelth-com/assetledger/internal/qr"
)

// publicScan resolves a printed tag. Anyone may call it; a staff token turns
// an unassigned tag into a bind prompt.
func (r *Router) publicScan(w http.ResponseWriter, req *http.Request) {
	hash := strings.TrimSpace(mux.Vars(req)["hash"])

	meta := map[string]interface{}{}
	if ref := req.Referer(); ref != "" {
		meta["referer"] = ref
	}
	res, err := r.QR.Resolve(req.Context(), qr.ScanRequest{
		Hash:          hash,
		IP:            clientIP(req),
		UserAgent:     req.UserAgent(),
		Authenticated: middleware.ActorFromContext(req.Context()) != nil,
		Meta:          meta,
	})
	if err != nil {
		respondErr(w, req, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == qr.OutcomeInvalid {
		status = http.StatusNotFound
	}
	respondJSON(w, status, res)
}

// clientIP prefers the first X-Forwarded-For hop set by the reverse proxy
func clientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
