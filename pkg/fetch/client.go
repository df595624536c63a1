// Package fetch performs the HTTP legwork of a run: advisory existence
// probes and streamed downloads with content-sniff validation.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"dibbsget/pkg/errors"
	"dibbsget/pkg/logger"
	"dibbsget/pkg/session"
)

const (
	// ProbeTimeout bounds the advisory HEAD request.
	ProbeTimeout = 30 * time.Second
	// RetrieveTimeout bounds a full streamed download.
	RetrieveTimeout = 180 * time.Second

	chunkSize = 64 * 1024
	sniffLen  = 512
)

// Client fetches URLs through a reconstructed session. All requests share
// the session's cookie jar and static headers; the client never mutates
// the session.
type Client struct {
	probeClient    *http.Client
	retrieveClient *http.Client
	headers        map[string]string
	logger         logger.Logger
}

// NewClient creates a fetch client over the given session.
func NewClient(sess *session.Session, log logger.Logger) *Client {
	return &Client{
		probeClient: &http.Client{
			Jar:     sess.Jar,
			Timeout: ProbeTimeout,
		},
		retrieveClient: &http.Client{
			Jar:     sess.Jar,
			Timeout: RetrieveTimeout,
		},
		headers: sess.Headers,
		logger:  log,
	}
}

// Probe issues a HEAD request against the URL, following redirects. It
// returns true only on an explicit 200. Transport failures are logged and
// reported as false; the caller treats the result as advisory.
func (c *Client) Probe(url string) bool {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		c.logger.ErrorWithFields("probe request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return false
	}
	c.applyHeaders(req)

	resp, err := c.probeClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("probe failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return false
	}
	defer resp.Body.Close()

	c.logger.InfoWithFields("probe", map[string]interface{}{
		"url":            url,
		"status":         resp.StatusCode,
		"content_type":   resp.Header.Get("Content-Type"),
		"content_length": resp.Header.Get("Content-Length"),
	})

	return resp.StatusCode == http.StatusOK
}

// Retrieve streams the URL's body to dest in fixed-size chunks, creating
// parent directories as needed, then sniffs the leading bytes. A body that
// looks like markup is the expired-session consent page served with a 200,
// and fails with a content mismatch error.
func (c *Client) Retrieve(url, dest string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errors.Transport(0, "failed to create request for %s: %v", url, err)
	}
	c.applyHeaders(req)

	start := time.Now()
	resp, err := c.retrieveClient.Do(req)
	if err != nil {
		return errors.Transport(0, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Transport(resp.StatusCode, "GET %s returned status %s", url, resp.Status)
	}

	written, err := c.writeBody(resp.Body, dest)
	if err != nil {
		return err
	}

	c.logger.InfoWithFields("download complete", map[string]interface{}{
		"url":      url,
		"dest":     dest,
		"bytes":    written,
		"duration": time.Since(start),
	})

	sample, err := readLeading(dest)
	if err != nil {
		return fmt.Errorf("failed to sniff %s: %w", dest, err)
	}
	if IsMarkup(sample) {
		return errors.ContentMismatch("download from %s looks like an HTML page (likely consent/login gate)", url)
	}

	return nil
}

func (c *Client) applyHeaders(req *http.Request) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

// writeBody streams the response body to dest in chunkSize pieces.
func (c *Client) writeBody(body io.Reader, dest string) (int64, error) {
	if dir := filepath.Dir(dest); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	written, copyErr := io.CopyBuffer(out, body, make([]byte, chunkSize))
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(dest)
		return 0, errors.Transport(0, "failed to stream body to %s: %v", dest, copyErr)
	}
	if closeErr != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("failed to close %s: %w", dest, closeErr)
	}

	return written, nil
}

// readLeading reads back the first sniffLen bytes of the written file.
func readLeading(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// IsMarkup reports whether the sample's whitespace-trimmed prefix starts
// with an angle bracket, marking the content as an HTML/XML page rather
// than the expected payload.
func IsMarkup(sample []byte) bool {
	for _, b := range sample {
		switch b {
		case ' ', '\t', '\r', '\n', '\v', '\f':
			continue
		default:
			return b == '<'
		}
	}
	return false
}
