package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/utils"
)

// HTTPClient can perform any http request
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 200 * time.Millisecond
)

// Client moves bytes through presigned object storage URLs and talks to the
// platform's allocation endpoints.
type Client struct {
	client        HTTPClient
	logger        *slog.Logger
	retryAttempts int
	retryBackoff  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithRetry sets how often allocation calls are attempted and the pause between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(cl *Client) {
		cl.retryAttempts = attempts
		cl.retryBackoff = backoff
	}
}

// NewClient creates a new Client with a default http client
func NewClient(opts ...Option) *Client {
	c := &Client{
		client:        &http.Client{},
		retryAttempts: DefaultRetryAttempts,
		retryBackoff:  DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrDiscard(c.logger).With("component", "storage")
	return c
}

// PutOptions tune an upload.
type PutOptions struct {
	ContentType string
	// Gzip compresses the body and sets Content-Encoding: gzip.
	Gzip bool
}

// Allocate asks the platform for presigned upload URLs of all keys the object accepts.
func (c *Client) Allocate(ctx context.Context, allocURL string) (map[string]string, error) {
	return utils.CallWithRetry(ctx, func() (map[string]string, error) {
		return c.allocate(ctx, http.MethodGet, allocURL, nil)
	}, c.retryAttempts, c.retryBackoff, isRetryable)
}

// AllocateKeys asks the platform for presigned upload URLs of the given keys.
func (c *Client) AllocateKeys(ctx context.Context, allocURL string, keys []string) (map[string]string, error) {
	body, err := json.Marshal(keys)
	if err != nil {
		return nil, err
	}
	return utils.CallWithRetry(ctx, func() (map[string]string, error) {
		return c.allocate(ctx, http.MethodPost, allocURL, body)
	}, c.retryAttempts, c.retryBackoff, isRetryable)
}

func (c *Client) allocate(ctx context.Context, method, allocURL string, body []byte) (map[string]string, error) {
	if allocURL == "" {
		return nil, fmt.Errorf("%w: empty allocation url", ErrAllocate)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, allocURL, reader)
	if err != nil {
		c.logger.Error("error creating allocation request", "method", method, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAllocate, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("error sending allocation request", "method", method, "error", err)
		return nil, err
	}
	defer c.closeBody(resp.Body)

	if !ok(resp.StatusCode) {
		c.logger.Error("allocation request failed with status code", "method", method, "status", resp.StatusCode)
		return nil, &StatusError{Op: ErrAllocate, URL: allocURL, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("error reading allocation response", "error", err)
		return nil, err
	}

	urls := map[string]string{}
	if err := json.Unmarshal(b, &urls); err != nil {
		c.logger.Error("error unmarshaling allocation response", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAllocate, err)
	}
	c.logger.Debug("allocated urls", "method", method, "keys", len(urls))
	return urls, nil
}

// Put uploads body to a presigned URL. size < 0 means unknown.
func (c *Client) Put(ctx context.Context, putURL string, body io.Reader, size int64, opts PutOptions) error {
	if opts.Gzip {
		compressed, err := gzipBody(body)
		if err != nil {
			return fmt.Errorf("%w: compress: %v", ErrUpload, err)
		}
		body = bytes.NewReader(compressed)
		size = int64(len(compressed))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, body)
	if err != nil {
		c.logger.Error("error creating PUT request", "error", err)
		return err
	}
	if size >= 0 {
		req.ContentLength = size
		if size == 0 {
			req.Body = http.NoBody
		}
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.Gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("error sending PUT request", "error", err)
		return err
	}
	defer c.closeBody(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if !ok(resp.StatusCode) {
		c.logger.Error("PUT request failed with status code", "status", resp.StatusCode)
		return &StatusError{Op: ErrUpload, URL: putURL, StatusCode: resp.StatusCode}
	}
	c.logger.Debug("uploaded object", "url", redact(putURL), "size", size)
	return nil
}

// PutFile uploads the file at path to a presigned URL.
func (c *Client) PutFile(ctx context.Context, putURL, path string, opts PutOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return c.Put(ctx, putURL, f, info.Size(), opts)
}

// Get downloads the object behind a presigned URL. The caller closes the returned reader.
func (c *Client) Get(ctx context.Context, getURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		c.logger.Error("error creating GET request", "error", err)
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("error sending GET request", "error", err)
		return nil, err
	}

	if !ok(resp.StatusCode) {
		c.closeBody(resp.Body)
		c.logger.Error("GET request failed with status code", "status", resp.StatusCode)
		return nil, &StatusError{Op: ErrDownload, URL: getURL, StatusCode: resp.StatusCode}
	}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.closeBody(resp.Body)
			return nil, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		return &gzipReadCloser{Reader: zr, body: resp.Body}, nil
	}
	return resp.Body, nil
}

// GetBytes downloads the whole object into memory.
func (c *Client) GetBytes(ctx context.Context, getURL string) ([]byte, error) {
	rc, err := c.Get(ctx, getURL)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(rc)
	return io.ReadAll(rc)
}

func (c *Client) closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		c.logger.Error("error closing the response body", "error", err)
	}
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func gzipBody(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.Copy(zw, r); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return zerr
}

// redact drops the query string, which carries the presigned credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
