package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/m-lab/go/warnonerror"
)

// Fetcher performs one GET of url and returns the number of body bytes
// received. Implementations must give up as soon as ctx is done and must
// return an error for any non-2xx response.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (int64, error)
}

// StatusError is returned by HTTPFetcher for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// HTTPFetcher is a Fetcher using net/http. A nil Client means
// http.DefaultClient.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch issues an uncached GET and reads the body to completion.
func (f HTTPFetcher) Fetch(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cache-Control", "no-store, no-cache")
	req.Header.Set("Pragma", "no-cache")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer warnonerror.Close(resp.Body, "probe: ignoring resp.Body.Close result")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}
	return io.Copy(io.Discard, resp.Body)
}
