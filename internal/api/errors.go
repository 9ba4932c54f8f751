package api

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/upc-lookup/internal/domain/product"
)

const kindCancelled = "cancelled"

// statusFor maps a lookup failure to an HTTP status and the kind reported to
// the caller. Only the request's own context decides "cancelled": an upstream
// timeout also wraps context.DeadlineExceeded but is still a 502.
func statusFor(ctx context.Context, err error) (int, string) {
	if ctx.Err() != nil {
		return http.StatusServiceUnavailable, kindCancelled
	}

	kind := product.KindOf(err)
	switch kind {
	case product.KindInvalidInput:
		return http.StatusBadRequest, kind.String()
	case product.KindMissingField:
		return http.StatusNotFound, kind.String()
	case product.KindTransport, product.KindMalformedJSON, product.KindImageFetch:
		return http.StatusBadGateway, kind.String()
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError converts err to a JSON error body. Upstream failures are logged;
// caller mistakes are not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(r.Context(), err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Warn("Product lookup failed",
			zap.Int("status", status),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(kind) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, status, &e)
}
