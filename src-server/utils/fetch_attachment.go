package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

var attachmentClient = &http.Client{Timeout: 15 * time.Second}

// Download a (Discord CDN) attachment as text, refusing anything larger than
// limit bytes.
func FetchAttachment(ctx context.Context, url string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("FetchAttachment: %w", err)
	}
	resp, err := attachmentClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("FetchAttachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("FetchAttachment: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("FetchAttachment: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("FetchAttachment: attachment is larger than %d bytes", limit)
	}
	return string(data), nil
}
