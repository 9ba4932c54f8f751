package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/upc-lookup/internal/domain/product"
)

// --- Mock implementations ---

type mockLookuper struct {
	records map[string]*product.Record
	err     error
	calls   []string
}

func (m *mockLookuper) LookupProduct(_ context.Context, barcode string) (*product.Record, error) {
	m.calls = append(m.calls, barcode)
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[barcode]
	if !ok {
		return nil, &product.LookupError{Kind: product.KindMissingField, Barcode: barcode, Field: "image"}
	}
	return rec, nil
}

// --- Helpers ---

// gifPixel is the smallest valid GIF, enough for content sniffing.
var gifPixel = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")

func newTestRecord(barcode string) *product.Record {
	return &product.Record{
		Barcode:     barcode,
		Description: "Widget",
		ImageURL:    "https://images.example.com/" + barcode + ".gif",
		ImageFormat: "gif",
		Image:       gifPixel,
	}
}

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return serveContext(t, context.Background(), h, path)
}

func serveContext(t *testing.T, ctx context.Context, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestGetProduct(t *testing.T) {
	lookuper := &mockLookuper{records: map[string]*product.Record{
		"7501035911208": newTestRecord("7501035911208"),
	}}
	h := NewHandler(lookuper)

	res := serve(t, h, "/api/products/7501035911208")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))

	want := fmt.Sprintf(`{
		"barcode": "7501035911208",
		"description": "Widget",
		"image_url": "https://images.example.com/7501035911208.gif",
		"image_format": "gif",
		"image_size": %d,
		"image": %q
	}`, len(gifPixel), base64.StdEncoding.EncodeToString(gifPixel))
	assert.JSONEq(t, want, res.Body.String())
	assert.Equal(t, []string{"7501035911208"}, lookuper.calls)
}

func TestGetProductImage(t *testing.T) {
	lookuper := &mockLookuper{records: map[string]*product.Record{
		"042100005264": newTestRecord("042100005264"),
	}}
	h := NewHandler(lookuper)

	res := serve(t, h, "/api/products/042100005264/image")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "image/gif", res.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprint(len(gifPixel)), res.Header().Get("Content-Length"))
	assert.Equal(t, gifPixel, res.Body.Bytes())
}

func TestGetProduct_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		cancelled  bool
		wantStatus int
		wantKind   string
	}{
		{
			name:       "invalid input returns 400",
			err:        &product.LookupError{Kind: product.KindInvalidInput, Err: errors.New("barcode is empty")},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
		{
			name:       "missing field returns 404",
			err:        &product.LookupError{Kind: product.KindMissingField, Field: "image"},
			wantStatus: http.StatusNotFound,
			wantKind:   "missing_field",
		},
		{
			name:       "transport failure returns 502",
			err:        &product.LookupError{Kind: product.KindTransport, Status: 500},
			wantStatus: http.StatusBadGateway,
			wantKind:   "transport_failure",
		},
		{
			name:       "malformed json returns 502",
			err:        &product.LookupError{Kind: product.KindMalformedJSON},
			wantStatus: http.StatusBadGateway,
			wantKind:   "malformed_json",
		},
		{
			name:       "image fetch failure returns 502",
			err:        &product.LookupError{Kind: product.KindImageFetch},
			wantStatus: http.StatusBadGateway,
			wantKind:   "image_fetch_failure",
		},
		{
			name:       "cancelled returns 503",
			err:        &product.LookupError{Kind: product.KindImageFetch, Err: context.Canceled},
			cancelled:  true,
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   "cancelled",
		},
		{
			name:       "upstream timeout returns 502",
			err:        &product.LookupError{Kind: product.KindTransport, Err: errors.Wrap(context.DeadlineExceeded, "do request")},
			wantStatus: http.StatusBadGateway,
			wantKind:   "transport_failure",
		},
		{
			name:       "untyped error returns 500",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockLookuper{err: tt.err})

			ctx := context.Background()
			if tt.cancelled {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				ctx = cctx
			}

			for _, path := range []string{"/api/products/123", "/api/products/123/image"} {
				res := serveContext(t, ctx, h, path)
				require.Equal(t, tt.wantStatus, res.Code, path)
				assert.Equal(t, "application/json", res.Header().Get("Content-Type"))

				message := tt.err.Error()
				if tt.wantStatus == http.StatusInternalServerError {
					message = "Internal Server Error"
				}
				want := fmt.Sprintf(`{"code": %d, "kind": %q, "message": %q}`, tt.wantStatus, tt.wantKind, message)
				assert.JSONEq(t, want, res.Body.String())
			}
		})
	}
}

func TestGetProduct_UnknownRoute(t *testing.T) {
	lookuper := &mockLookuper{}
	h := NewHandler(lookuper)

	for _, path := range []string{"/api/products/", "/api/products/1/image/extra"} {
		res := serve(t, h, path)
		assert.Equal(t, http.StatusNotFound, res.Code, path)
	}
	assert.Empty(t, lookuper.calls)
}
