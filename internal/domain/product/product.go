package product

import "context"

// Record is a product resolved from a barcode lookup. A Record only exists
// when the upstream response carried both an image and a description and the
// image itself was fetched and decoded.
type Record struct {
	Barcode     string
	Description string
	ImageURL    string
	// ImageFormat is the format name reported by the image decoder
	// (e.g. "png", "jpeg", "gif").
	ImageFormat string
	Image       []byte
}

// Lookuper resolves a barcode into a Record.
type Lookuper interface {
	LookupProduct(ctx context.Context, barcode string) (*Record, error)
}
