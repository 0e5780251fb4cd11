package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrMediaTooLarge is returned when an attachment exceeds the configured cap.
var ErrMediaTooLarge = errors.New("media exceeds size limit")

// MediaClient downloads message attachments from the messaging provider.
// Twilio media URLs require the account credentials as basic auth.
type MediaClient struct {
	username string
	password string
	maxBytes int64
	client   *http.Client
}

func NewMediaClient(username, password string, maxBytes int64, timeout time.Duration) *MediaClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &MediaClient{
		username: username,
		password: password,
		maxBytes: maxBytes,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Download fetches the resource at url. Bodies larger than the configured cap
// fail with ErrMediaTooLarge rather than being cut short.
func (c *MediaClient) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("media download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMediaTooLarge, c.maxBytes)
	}
	return data, nil
}
