// Package notify delivers run reports to the user's phone and chat channel.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 10 * time.Second

// Bark pushes a message with a GET to URL + escaped message + Extra.
type Bark struct {
	URL   string
	Extra string

	HTTPClient *http.Client
}

func (b *Bark) Name() string { return "bark" }

func (b *Bark) Notify(ctx context.Context, message string) error {
	if b.URL == "" {
		return ErrNotConfigured
	}
	target := b.URL + url.PathEscape(message) + b.Extra
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("bark: build request: %w", err)
	}
	hc := b.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("bark: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("bark: http %d", res.StatusCode)
	}
	return nil
}
