package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oshokin/factorio-up/internal/apperr"
)

// DefaultTimeout bounds how long the client waits for response headers.
const DefaultTimeout = 30 * time.Second

// partSuffix is appended to a download target while the body is still streaming.
const partSuffix = ".part"

var errBadHTTPStatus = errors.New("unexpected http status")

// Client fetches release artifacts over HTTP.
// Calls are serialized: only one request is in flight at a time.
type Client struct {
	// mu serializes access to the underlying transport.
	mu sync.Mutex
	// follow is used for content downloads and follows redirects.
	follow *http.Client
	// noFollow stops at the first redirect so its target can be read.
	noFollow *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the transport used for both redirect resolution and downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}

		follow := *hc
		noFollow := *hc
		noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}

		c.follow = &follow
		c.noFollow = &noFollow
	}
}

// New creates a client whose transport gives up waiting for response headers after timeout.
// The body transfer itself is not time-limited.
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	c := new(Client)
	WithHTTPClient(&http.Client{Transport: transport})(c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RedirectTarget requests rawURL without following redirects and returns the absolute redirect target.
func (c *Client) RedirectTarget(ctx context.Context, rawURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	response, err := c.get(ctx, c.noFollow, rawURL)
	if err != nil {
		return "", err
	}

	defer closeBody(response)

	location, err := response.Location()
	if err != nil {
		if errors.Is(err, http.ErrNoLocation) {
			return "", apperr.NotFoundf("no redirect url found for %s", rawURL)
		}

		return "", apperr.Transport(rawURL, err)
	}

	return location.String(), nil
}

// Fetch returns the whole body of rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	response, err := c.get(ctx, c.follow, rawURL)
	if err != nil {
		return nil, err
	}

	defer closeBody(response)

	if err = checkStatus(rawURL, response); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, apperr.Transport(rawURL, err)
	}

	return data, nil
}

// FetchToFile streams the body of rawURL into filename, replacing it.
// The body is written to a sibling ".part" file first and renamed once complete,
// so an interrupted transfer never leaves a truncated file under filename.
func (c *Client) FetchToFile(ctx context.Context, rawURL, filename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	response, err := c.get(ctx, c.follow, rawURL)
	if err != nil {
		return err
	}

	defer closeBody(response)

	if err = checkStatus(rawURL, response); err != nil {
		return err
	}

	partName := filepath.Clean(filename) + partSuffix

	output, err := os.Create(partName)
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, response.Body); err != nil {
		_ = output.Close()
		_ = os.Remove(partName)

		return apperr.Transport(rawURL, err)
	}

	if err = output.Close(); err != nil {
		_ = os.Remove(partName)

		return err
	}

	return os.Rename(partName, filename)
}

func (c *Client) get(ctx context.Context, hc *http.Client, rawURL string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, apperr.Transport(rawURL, err)
	}

	response, err := hc.Do(request)
	if err != nil {
		return nil, apperr.Transport(rawURL, err)
	}

	return response, nil
}

func checkStatus(rawURL string, response *http.Response) error {
	if response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	return apperr.Transport(rawURL, fmt.Errorf("%s: %w", response.Status, errBadHTTPStatus))
}

func closeBody(response *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1<<16))
	_ = response.Body.Close()
}
