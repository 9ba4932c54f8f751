// Package lookup resolves barcodes into product records by chaining two
// dependent requests: the signed metadata lookup, then the image it points at.
//
// Each call is independent. A Client holds only immutable configuration, so
// concurrent lookups need no locking.
package lookup

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/upc-lookup/internal/domain/product"
	"github.com/xenking/upc-lookup/internal/signature"
)

const (
	// DefaultTimeout bounds each request when the client builds its own
	// http.Client.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxBodyBytes bounds each response body.
	DefaultMaxBodyBytes int64 = 10 << 20

	userAgent = "upc-lookup/1.0"
)

var _ product.Lookuper = (*Client)(nil)

// Client performs product lookups against the digit-eyes API.
type Client struct {
	signer   *signature.Signer
	http     *http.Client
	maxBody  int64
	lg       *zap.Logger
	tracer   trace.Tracer
	metrics  *metrics
	observer Observer
}

type options struct {
	signerOpts []signature.Option
	httpClient *http.Client
	timeout    time.Duration
	maxBody    int64
	lg         *zap.Logger
	tracers    trace.TracerProvider
	meters     metric.MeterProvider
	observer   Observer
}

// Option configures a Client.
type Option func(*options)

// WithSignerOptions passes options to the underlying signature.Signer
// (algorithm, endpoint, language).
func WithSignerOptions(opts ...signature.Option) Option {
	return func(o *options) { o.signerOpts = append(o.signerOpts, opts...) }
}

// WithHTTPClient replaces the HTTP transport collaborator. The client is used
// as is: no instrumentation or timeout is added to it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxBodyBytes bounds the size of each response body.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBody = n }
}

// WithLogger sets the logger. Without it the logger is taken from the call
// context (zctx).
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.lg = lg }
}

// WithTracerProvider sets the tracer provider for lookup spans and the
// outbound transport.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracers = tp }
}

// WithMeterProvider sets the meter provider for lookup metrics and the
// outbound transport.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meters = mp }
}

// WithObserver registers a stage observer.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// New creates a Client for creds.
func New(creds signature.Credentials, opts ...Option) (*Client, error) {
	o := options{
		timeout: DefaultTimeout,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.tracers == nil {
		o.tracers = otel.GetTracerProvider()
	}
	if o.meters == nil {
		o.meters = otel.GetMeterProvider()
	}
	if o.maxBody <= 0 {
		return nil, errors.Errorf("max body bytes must be positive, got %d", o.maxBody)
	}

	signer, err := signature.NewSigner(creds, o.signerOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create signer")
	}

	m, err := newMetrics(o.meters.Meter(instrumentationName))
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: o.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(o.tracers),
				otelhttp.WithMeterProvider(o.meters),
			),
		}
	}

	return &Client{
		signer:   signer,
		http:     httpClient,
		maxBody:  o.maxBody,
		lg:       o.lg,
		tracer:   o.tracers.Tracer(instrumentationName),
		metrics:  m,
		observer: o.observer,
	}, nil
}

// Product looks up a single barcode with a throwaway Client.
func Product(ctx context.Context, barcode string, creds signature.Credentials, opts ...Option) (*product.Record, error) {
	c, err := New(creds, opts...)
	if err != nil {
		return nil, err
	}
	return c.LookupProduct(ctx, barcode)
}

// Result is the outcome of an asynchronous lookup. Exactly one of Record and
// Err is set.
type Result struct {
	Record *product.Record
	Err    error
}

// Go starts a lookup in its own goroutine. The returned channel yields exactly
// one Result and is then closed.
func (c *Client) Go(ctx context.Context, barcode string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		rec, err := c.LookupProduct(ctx, barcode)
		out <- Result{Record: rec, Err: err}
	}()
	return out
}

// LookupProduct resolves barcode into a product record. Failures are returned
// as *product.LookupError; match them with errors.Is against the product
// sentinels. No partial record is ever returned.
func (c *Client) LookupProduct(ctx context.Context, barcode string) (_ *product.Record, rerr error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "lookup.Product",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("upc.barcode", barcode)),
	)
	defer span.End()

	r := &run{
		client:  c,
		barcode: barcode,
		span:    span,
		lg:      c.logger(ctx).With(zap.String("barcode", barcode)),
	}
	defer func() {
		c.metrics.record(ctx, start, rerr)
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, product.KindOf(rerr).String())
		}
	}()

	// Idle -> FetchingMetadata.
	if barcode == "" {
		return nil, r.fail(product.KindInvalidInput, errors.New("barcode is empty"))
	}
	lookupURL, err := c.signer.LookupURL(barcode)
	if err != nil {
		return nil, r.fail(product.KindInvalidInput, err)
	}
	r.enter(StageFetchingMetadata)

	body, err := get(ctx, c.http, lookupURL, "application/json", c.maxBody)
	if err != nil {
		return nil, r.fail(product.KindTransport, err)
	}

	meta, err := decodeMetadata(body)
	if err != nil {
		return nil, r.fail(product.KindMalformedJSON, err)
	}
	if err := meta.validate(); err != nil {
		return nil, r.fail(product.KindMissingField, err)
	}

	imageURL, err := resolveImageURL(lookupURL, meta.image)
	if err != nil {
		return nil, r.fail(product.KindImageFetch, err)
	}
	if err := ctx.Err(); err != nil {
		// Cancelled between legs: the image leg never starts.
		return nil, r.fail(product.KindImageFetch, err)
	}

	// FetchingMetadata -> FetchingImage.
	r.enter(StageFetchingImage)
	data, err := get(ctx, c.http, imageURL, "image/*", c.maxBody)
	if err != nil {
		return nil, r.fail(product.KindImageFetch, err)
	}
	format, err := imageFormat(data)
	if err != nil {
		return nil, r.fail(product.KindImageFetch, err)
	}

	// FetchingImage -> Done.
	rec := &product.Record{
		Barcode:     barcode,
		Description: meta.description,
		ImageURL:    imageURL,
		ImageFormat: format,
		Image:       data,
	}
	span.SetAttributes(
		attribute.String("upc.image.format", format),
		attribute.Int("upc.image.size", len(data)),
	)
	r.enter(StageDone)
	return rec, nil
}

func (c *Client) logger(ctx context.Context) *zap.Logger {
	if c.lg != nil {
		return c.lg
	}
	return zctx.From(ctx)
}

// run carries the per-call state of one lookup.
type run struct {
	client  *Client
	barcode string
	stage   Stage
	span    trace.Span
	lg      *zap.Logger
}

func (r *run) enter(s Stage) {
	r.stage = s
	r.span.AddEvent(s.String())
	r.lg.Debug("Lookup stage", zap.Stringer("stage", s))
	if r.client.observer != nil {
		r.client.observer(r.barcode, s)
	}
}

// fail moves the lookup to Errored and builds the typed error.
func (r *run) fail(kind product.Kind, err error) error {
	le := &product.LookupError{Kind: kind, Barcode: r.barcode, Err: err}

	var se *statusError
	if errors.As(err, &se) {
		le.Status = se.Code
	}
	var mf *missingFieldError
	if errors.As(err, &mf) {
		le.Field = mf.field
		le.Err = mf.cause
	}
	// A validation failure from the signer is already typed.
	var inner *product.LookupError
	if errors.As(err, &inner) {
		le.Err = inner.Err
	}

	failedIn := r.stage
	r.enter(StageErrored)
	r.lg.Warn("Lookup failed",
		zap.Stringer("stage", failedIn),
		zap.Stringer("kind", kind),
		zap.Error(le.Err),
	)
	return le
}

// missingFieldError names the first required field that is absent.
type missingFieldError struct {
	field string
	cause error
}

func (e *missingFieldError) Error() string { return e.cause.Error() }

func (m metadata) validate() error {
	var field string
	switch {
	case !m.hasImage || m.image == "":
		field = fieldImage
	case !m.hasDescription:
		field = fieldDescription
	default:
		return nil
	}
	cause := errors.Errorf("%s is absent or not a string", field)
	if m.returnMessage != "" {
		cause = errors.Errorf("%s is absent or not a string: upstream returned %q (code %s)",
			field, m.returnMessage, m.returnCode)
	}
	return &missingFieldError{field: field, cause: cause}
}

// resolveImageURL resolves ref against the lookup URL so relative image
// references still point at the upstream host.
func resolveImageURL(lookupURL, ref string) (string, error) {
	base, err := url.Parse(lookupURL)
	if err != nil {
		return "", errors.Wrap(err, "parse lookup url")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrap(err, "parse image url")
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", errors.Errorf("image url scheme %q is not http(s)", resolved.Scheme)
	}
	return resolved.String(), nil
}
