package imslp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"partita/internal/config"
)

const userAgent = "Partita/0.1.0 (+https://partita.example)"

// ReferenceFile describes one file hosted on an IMSLP work page.
type ReferenceFile struct {
	Title     string
	URL       string
	SizeBytes int64
	SHA1      string
	MIME      string
}

// Client provides reference-PDF metadata for a work.
type Client interface {
	// ReferenceFiles returns the PDF files attached to an IMSLP page.
	ReferenceFiles(ctx context.Context, pageTitle string) ([]ReferenceFile, error)
}

// HTTPClient talks to the IMSLP MediaWiki API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	retries int
}

// NewHTTPClient builds a client from configuration.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	timeout := time.Duration(cfg.IMSLP.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := cfg.IMSLP.Retries
	if retries <= 0 {
		retries = 3
	}
	return &HTTPClient{
		baseURL: cfg.IMSLP.BaseURL,
		client:  &http.Client{Timeout: timeout},
		retries: retries,
	}
}

// NormalizeTitle extracts a page title from a permalink or slug.
func NormalizeTitle(target string) string {
	target = strings.TrimSpace(target)
	if idx := strings.Index(target, "/wiki/"); idx >= 0 {
		target = target[idx+len("/wiki/"):]
	}
	if decoded, err := url.PathUnescape(target); err == nil {
		target = decoded
	}
	return strings.ReplaceAll(target, "_", " ")
}

// ReferenceFiles implements Client.
func (c *HTTPClient) ReferenceFiles(ctx context.Context, pageTitle string) ([]ReferenceFile, error) {
	params := url.Values{
		"action":    {"query"},
		"format":    {"json"},
		"generator": {"images"},
		"gimlimit":  {"100"},
		"titles":    {NormalizeTitle(pageTitle)},
		"prop":      {"imageinfo"},
		"iiprop":    {"url|size|sha1|mime|timestamp"},
	}

	body, err := c.getWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Query struct {
			Pages map[string]struct {
				Title     string `json:"title"`
				ImageInfo []struct {
					URL  string `json:"url"`
					Size int64  `json:"size"`
					SHA1 string `json:"sha1"`
					MIME string `json:"mime"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("imslp: decode response: %w", err)
	}

	var files []ReferenceFile
	for _, page := range decoded.Query.Pages {
		for _, info := range page.ImageInfo {
			if !strings.EqualFold(info.MIME, "application/pdf") {
				continue
			}
			files = append(files, ReferenceFile{
				Title:     page.Title,
				URL:       info.URL,
				SizeBytes: info.Size,
				SHA1:      strings.ToLower(info.SHA1),
				MIME:      info.MIME,
			})
		}
	}
	return files, nil
}

func (c *HTTPClient) getWithRetry(ctx context.Context, params url.Values) ([]byte, error) {
	delay := time.Second
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay = delay * 3 / 2
		}

		body, err := c.get(ctx, params)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("imslp: request failed after %d attempts: %w", c.retries, lastErr)
}

func (c *HTTPClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// MatchSHA1 returns the reference file whose digest matches, or nil.
func MatchSHA1(files []ReferenceFile, hexDigest string) *ReferenceFile {
	hexDigest = strings.ToLower(strings.TrimSpace(hexDigest))
	if hexDigest == "" {
		return nil
	}
	for i := range files {
		if files[i].SHA1 == hexDigest {
			return &files[i]
		}
	}
	return nil
}
