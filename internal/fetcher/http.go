package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/racesync/internal/retry"
)

// Status boundaries used for error classification.
const (
	statusOK           = 200
	statusMultipleCh   = 300
	statusTooManyReqs  = 429
	statusServerErrLow = 500
)

// maxResponseBodyBytes limits the size of fetched responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// defaultUserAgent identifies the service to upstream sites.
const defaultUserAgent = "racesync/1.0"

// HTTPFetcher fetches content over plain HTTP GET requests.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher. Per-request timeouts come from the
// request, not the client, so one source's timeout never affects another's.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{},
	}
}

// Fetch performs a single GET bounded by the request timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		return nil, &Error{Message: fmt.Sprintf("malformed url %q: %v", req.URL, err)}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}

	httpReq.Header.Set("User-Agent", defaultUserAgent)
	if req.Config.HTTP != nil {
		if req.Config.HTTP.UserAgent != "" {
			httpReq.Header.Set("User-Agent", req.Config.HTTP.UserAgent)
		}
		for k, v := range req.Config.HTTP.Headers {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Transient: retry.IsTransientMessage(err.Error()),
			Message:   err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, &Error{
			Status:    resp.StatusCode,
			Transient: retry.IsTransientMessage(err.Error()),
			Message:   "read body: " + err.Error(),
		}
	}

	if resp.StatusCode < statusOK || resp.StatusCode >= statusMultipleCh {
		return nil, &Error{
			Status:    resp.StatusCode,
			Transient: resp.StatusCode >= statusServerErrLow || resp.StatusCode == statusTooManyReqs,
			Message:   http.StatusText(resp.StatusCode),
		}
	}

	return &Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
