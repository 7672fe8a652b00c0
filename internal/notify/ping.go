package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPPinger sends GET requests, as used by uptime monitors ("heartbeat" URLs).
type HTTPPinger struct {
	Client *http.Client
}

func NewHTTPPinger(timeout time.Duration) *HTTPPinger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPinger{Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPPinger) Ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("notify: ping %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "jobsched")
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: ping %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: ping %s: status %d", url, resp.StatusCode)
	}
	return nil
}
