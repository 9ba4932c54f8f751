// Package api serves product lookups over HTTP.
package api

import (
	"net/http"

	"github.com/xenking/upc-lookup/internal/domain/product"
)

// Handler exposes a product.Lookuper as JSON and raw image endpoints.
type Handler struct {
	products product.Lookuper
}

// NewHandler constructs a Handler backed by products.
func NewHandler(products product.Lookuper) *Handler {
	return &Handler{products: products}
}

// Register mounts the product routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products/{barcode}", h.GetProduct)
	mux.HandleFunc("GET /api/products/{barcode}/image", h.GetProductImage)
}
