package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
)

const defaultReferer = "https://vidsrc.xyz/"

var (
	errNoFileID = errors.New("no encoded file id in page")

	fileIDPattern = regexp.MustCompile(`file:\s*"([^"]+)"`)
)

// extractFileID returns the first file:"..." value found in the page's inline
// scripts.
func extractFileID(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("goquery: %w", err)
	}

	var id string
	doc.Find("script:not([src])").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := fileIDPattern.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		id = m[1]
		return false
	})

	if id == "" {
		return "", errNoFileID
	}
	return id, nil
}

// pageSource describes the embed page a file id was extracted from.
type pageSource struct {
	URL  string `yaml:"url,omitempty"`
	Size string `yaml:"size"`
}

func newPageSource(pageURL string, body []byte) *pageSource {
	return &pageSource{
		URL:  pageURL,
		Size: humanize.Bytes(uint64(len(body))),
	}
}

func (p *pageSource) String() string {
	if p.URL == "" {
		return "stdin (" + p.Size + ")"
	}
	return p.URL + " (" + p.Size + ")"
}

func newHTTPClient(logger *slog.Logger, retries int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = logger
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func fetchPage(
	ctx context.Context,
	client *retryablehttp.Client,
	logger *slog.Logger,
	pageURL string,
	referer string,
) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %v: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("get %v: status=%v, body=%s", pageURL, res.StatusCode, body)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %v: %w", pageURL, err)
	}

	logger.Debug("fetched page", "url", pageURL, "size", humanize.Bytes(uint64(len(body))))

	return body, nil
}
