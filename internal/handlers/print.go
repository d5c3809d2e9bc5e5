package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/services/printer"
)

// PrintRequest selects the tags to put on a sticker sheet
type PrintRequest struct {
	AssetIDs      []uint `json:"assetIds"`
	TagIDs        []uint `json:"tagIds"`
	StartPosition int    `json:"startPosition"`
	Cols          int    `json:"cols"`
	Rows          int    `json:"rows"`
}

// printStickers renders the selected asset and pre-generated tags as a PDF.
// Assets without a tag get one first.
func (r *Router) printStickers(w http.ResponseWriter, req *http.Request) {
	var body PrintRequest
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	if len(body.AssetIDs)+len(body.TagIDs) == 0 {
		respondErr(w, req, apperr.Invalid("nothing selected to print"))
		return
	}

	cfg := printer.DefaultSheet()
	if body.StartPosition != 0 {
		cfg.StartPosition = body.StartPosition
	}
	if body.Cols != 0 {
		cfg.Cols = body.Cols
	}
	if body.Rows != 0 {
		cfg.Rows = body.Rows
	}
	if err := cfg.Validate(); err != nil {
		respondErr(w, req, apperr.Invalid("%s", err.Error()))
		return
	}

	stickers := make([]printer.Sticker, 0, len(body.AssetIDs)+len(body.TagIDs))
	for _, id := range body.AssetIDs {
		a, err := r.QR.Generate(req.Context(), id, r.details(req, ""))
		if err != nil {
			respondErr(w, req, err)
			return
		}
		stickers = append(stickers, printer.Sticker{
			Hash:     *a.QRCodeHash,
			Title:    a.SerialNumber,
			Subtitle: strings.TrimSpace(a.Brand + " " + a.Model),
		})
	}
	tags, err := r.QR.TagsByID(req.Context(), body.TagIDs)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	for _, t := range tags {
		stickers = append(stickers, printer.Sticker{Hash: t.QRHash, Title: "UNASSIGNED", Subtitle: "Scan to Link"})
	}

	pdf, err := printer.StickerSheetPDF(r.Config.PublicBaseURL, stickers, cfg)
	if err != nil {
		respondErr(w, req, apperr.Internal(err, "could not render sticker sheet"))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"qr_stickers_%s.pdf\"", r.Now().Format("2006-01-02")))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Write(pdf)
}

// qrPNG renders a single tag image
func (r *Router) qrPNG(w http.ResponseWriter, req *http.Request) {
	hash := mux.Vars(req)["hash"]
	size, _ := strconv.Atoi(req.URL.Query().Get("size"))
	if size > 1024 {
		size = 1024
	}
	png, err := printer.QRPNG(printer.ScanURL(r.Config.PublicBaseURL, hash), size)
	if err != nil {
		respondErr(w, req, apperr.Internal(err, "could not render QR code"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Write(png)
}
