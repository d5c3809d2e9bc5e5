package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/storage"
	"github.com/xelth-com/assetledger/internal/utils"
)

const (
	payloadField  = "payload"
	documentField = "document"
	// room for the form fields around the file
	multipartOverhead = 1 << 20
)

// readPayload decodes a JSON body into dst. A multipart body carries the same
// JSON in the payload field plus an optional proof file in document, which is
// stored; its reference is returned.
func (r *Router) readPayload(w http.ResponseWriter, req *http.Request, dst interface{}) (*string, error) {
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeJSON(req, dst); err != nil {
			return nil, err
		}
		return nil, nil
	}

	limit := r.Config.Storage.MaxUploadMB << 20
	if limit <= 0 {
		limit = storage.DefaultMaxBytes
	}
	req.Body = http.MaxBytesReader(w, req.Body, limit+multipartOverhead)
	if err := req.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperr.Invalid("file exceeds the %d MB limit", limit>>20)
		}
		return nil, apperr.Invalid("Invalid multipart form")
	}

	if p := req.FormValue(payloadField); p != "" {
		if err := json.Unmarshal([]byte(p), dst); err != nil {
			return nil, apperr.Invalid("Invalid request payload")
		}
	}

	file, header, err := req.FormFile(documentField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Invalid("Invalid document upload")
	}
	defer file.Close()

	ext, err := storage.Extension(header.Filename)
	if err != nil {
		return nil, err
	}
	ref, err := r.Store.Save(req.Context(), file, ext)
	if err != nil {
		return nil, err
	}
	utils.LoggerFromContext(req.Context()).WithField("document", ref).Info("📄 Proof document stored")
	return &ref, nil
}

// discardDocument removes a stored upload whose ledger action failed
func (r *Router) discardDocument(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if err := r.Store.Delete(ctx, *ref); err != nil {
		utils.LoggerFromContext(ctx).WithError(err).WithField("document", *ref).Warn("could not remove orphaned document")
	}
}

// document streams a stored proof document
func (r *Router) document(w http.ResponseWriter, req *http.Request) {
	ref := mux.Vars(req)["ref"]
	rc, err := r.Store.Open(req.Context(), ref)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(ref))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", "inline; filename=\""+filepath.Base(ref)+"\"")
	if _, err := io.Copy(w, rc); err != nil {
		utils.LoggerFromContext(req.Context()).WithError(err).Warn("document download interrupted")
	}
}
