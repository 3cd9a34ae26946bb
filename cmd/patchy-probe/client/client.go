// Package client submits probe records to a patchy server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/m-lab/go/warnonerror"

	"github.com/vppro/patchy/data"
	"github.com/vppro/patchy/handler"
)

// defaultTimeout bounds a whole submission.
const defaultTimeout = 10 * time.Second

// Client is a patchy results client.
type Client struct {
	// HTTP is the client to use. A nil HTTP means http.DefaultClient.
	HTTP *http.Client

	// URL is the base URL of the server; the result path is appended to it.
	URL url.URL
}

// Save posts rec to the server's result collection.
func (cl Client) Save(ctx context.Context, rec data.ProbeRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	u := cl.URL.JoinPath(handler.ResultPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	httpClient := cl.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer warnonerror.Close(resp.Body, "client: ignoring resp.Body.Close result")
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("saving result: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
