package api

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/upc-lookup/internal/domain/product"
)

// GetProduct looks up the barcode in the path and returns the record as JSON,
// with the image inlined as base64.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	rec, err := h.products.LookupProduct(r.Context(), r.PathValue("barcode"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeRecord(&e, rec)
	writeJSON(w, http.StatusOK, &e)
}

// GetProductImage looks up the barcode in the path and returns the raw image.
func (h *Handler) GetProductImage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.products.LookupProduct(r.Context(), r.PathValue("barcode"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(rec.Image))
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Image)
}

func encodeRecord(e *jx.Encoder, rec *product.Record) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("barcode", func(e *jx.Encoder) { e.Str(rec.Barcode) })
		e.Field("description", func(e *jx.Encoder) { e.Str(rec.Description) })
		e.Field("image_url", func(e *jx.Encoder) { e.Str(rec.ImageURL) })
		e.Field("image_format", func(e *jx.Encoder) { e.Str(rec.ImageFormat) })
		e.Field("image_size", func(e *jx.Encoder) { e.Int(len(rec.Image)) })
		e.Field("image", func(e *jx.Encoder) { e.Base64(rec.Image) })
	})
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already written; a failed write means the client left.
	_, _ = w.Write(e.Bytes())
}
