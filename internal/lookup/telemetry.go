package lookup

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/upc-lookup/internal/domain/product"
)

const instrumentationName = "github.com/xenking/upc-lookup/internal/lookup"

const outcomeOK = "ok"

type metrics struct {
	results  metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	results, err := meter.Int64Counter("upc.lookup.results",
		metric.WithDescription("Completed product lookups by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "results counter")
	}
	duration, err := meter.Float64Histogram("upc.lookup.duration",
		metric.WithDescription("Product lookup duration, both legs included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}
	return &metrics{results: results, duration: duration}, nil
}

func (m *metrics) record(ctx context.Context, start time.Time, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = product.KindOf(err).String()
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	// The lookup context may already be cancelled; recording must not depend on it.
	ctx = context.WithoutCancel(ctx)
	m.results.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
