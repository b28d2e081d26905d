package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"showmerge/logger"
)

// Error reports a failed retrieval of one remote resource.
type Error struct {
	URL        string
	StatusCode int // Non-zero when the server answered with a non-2xx status
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrShortBody is returned when fewer bytes arrive than the server announced.
var ErrShortBody = errors.New("response body shorter than Content-Length")

// Fetcher streams remote resources into local files.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New creates a Fetcher. A nil client gets one with the given timeout.
func New(client *http.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, userAgent: "showmerge/1.0"}
}

// Fetch downloads sourceURL to destinationPath. The parent directory must
// already exist. On any failure the partially written file is removed.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, destinationPath string) error {
	if _, err := os.Stat(filepath.Dir(destinationPath)); err != nil {
		return &Error{URL: sourceURL, Err: fmt.Errorf("staging directory: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return &Error{URL: sourceURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return &Error{URL: sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{URL: sourceURL, StatusCode: resp.StatusCode}
	}

	out, err := os.Create(destinationPath)
	if err != nil {
		return &Error{URL: sourceURL, Err: fmt.Errorf("create file: %w", err)}
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && resp.ContentLength >= 0 && written != resp.ContentLength {
		err = fmt.Errorf("%w: got %d of %d bytes", ErrShortBody, written, resp.ContentLength)
	}
	if err != nil {
		os.Remove(destinationPath)
		return &Error{URL: sourceURL, Err: err}
	}

	logger.Debug("fetched remote resource",
		logger.String("url", sourceURL),
		logger.String("path", destinationPath),
		logger.Int64("bytes", written))
	return nil
}
