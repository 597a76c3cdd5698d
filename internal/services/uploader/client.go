package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// StoreError wraps a destination document-store HTTP response with the
// status code the retry/terminal classifier needs.
type StoreError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *StoreError) Error() string { return e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// StoreClient talks to the remote document store: dedup lookup by
// ArtifactKey and chunked PUT upload.
type StoreClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
	chunkSize  int64
}

// NewStoreClient builds a document-store client bound to baseURL.
func NewStoreClient(baseURL string, tokens *TokenCache, chunkSize int64, chunkTimeout time.Duration) *StoreClient {
	if chunkSize <= 0 {
		chunkSize = 4 * 1024 * 1024
	}
	return &StoreClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: chunkTimeout},
		tokens:     tokens,
		chunkSize:  chunkSize,
	}
}

// Exists checks whether a PDF matching the given ArtifactKey already
// exists in the destination folder.
func (c *StoreClient) Exists(ctx context.Context, folder, filename string, sizeBytes int64) (bool, error) {
	q := url.Values{}
	q.Set("folder", folder)
	q.Set("filename", filename)
	q.Set("size_bytes", strconv.FormatInt(sizeBytes, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/items?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	if err := c.authorize(ctx, req); err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &StoreError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	case http.StatusUnauthorized:
		c.tokens.Invalidate()
		return false, storeErrorFromResponse(resp)
	default:
		return false, storeErrorFromResponse(resp)
	}
}

// Upload streams content to the destination folder in ≤ chunkSize pieces
// using Content-Range-addressed PUTs.
func (c *StoreClient) Upload(ctx context.Context, folder, filename string, content []byte) error {
	total := int64(len(content))
	if total == 0 {
		return c.putChunk(ctx, folder, filename, nil, 0, 0)
	}

	for offset := int64(0); offset < total; offset += c.chunkSize {
		end := offset + c.chunkSize
		if end > total {
			end = total
		}
		if err := c.putChunk(ctx, folder, filename, content[offset:end], offset, total); err != nil {
			return err
		}
	}
	return nil
}

func (c *StoreClient) putChunk(ctx context.Context, folder, filename string, chunk []byte, offset, total int64) error {
	q := url.Values{}
	q.Set("folder", folder)
	q.Set("filename", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/items?"+q.Encode(), bytes.NewReader(chunk))
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total))
	req.ContentLength = int64(len(chunk))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &StoreError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return storeErrorFromResponse(resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return storeErrorFromResponse(resp)
	}
	return nil
}

func (c *StoreClient) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.BearerToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func storeErrorFromResponse(resp *http.Response) *StoreError {
	se := &StoreError{
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("document store returned %s", resp.Status),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				se.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	}
	io.Copy(io.Discard, resp.Body)
	return se
}
