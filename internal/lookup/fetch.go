package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/errors"
)

// statusError is a completed exchange with a non-2xx status.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// get performs a single GET of rawURL and returns the body. Non-2xx responses
// and bodies larger than limit are errors. The request is bound to ctx, so
// cancelling ctx aborts it.
func get(ctx context.Context, client *http.Client, rawURL, accept string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, &statusError{Code: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if int64(len(body)) > limit {
		return nil, errors.Errorf("body exceeds %d bytes", limit)
	}
	return body, nil
}
