package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	// DefaultTitleSelector locates the product title.
	DefaultTitleSelector = "h1"
	// DefaultDescriptionSelector locates the product description.
	DefaultDescriptionSelector = "div.product-description"

	// maxBodySize is the maximum HTTP response body size (5MB).
	maxBodySize = 5 * 1024 * 1024
	// defaultExtractAttempts is the number of fetch attempts before giving up.
	defaultExtractAttempts = 3
)

var (
	errEmptyField = errors.New("selector matched no text")
	errBadURL     = errors.New("url must be absolute http or https")
)

// HTTPProductExtractor fetches product pages and extracts the title and
// description with CSS selectors.
type HTTPProductExtractor struct {
	client      *http.Client
	titleSel    cascadia.Selector
	descSel     cascadia.Selector
	attempts    int
	backoff     time.Duration
	readability bool
}

// ExtractorOption configures the product extractor.
type ExtractorOption func(*HTTPProductExtractor)

// WithExtractTimeout sets the per-request HTTP timeout (default: 30s).
func WithExtractTimeout(d time.Duration) ExtractorOption {
	return func(e *HTTPProductExtractor) { e.client.Timeout = d }
}

// WithRetries sets how many fetch attempts are made on transport failures.
func WithRetries(attempts int, backoff time.Duration) ExtractorOption {
	return func(e *HTTPProductExtractor) {
		if attempts > 0 {
			e.attempts = attempts
		}
		e.backoff = backoff
	}
}

// WithoutReadability disables the best-effort excerpt and site name lookup.
func WithoutReadability() ExtractorOption {
	return func(e *HTTPProductExtractor) { e.readability = false }
}

// NewHTTPProductExtractor creates an extractor for the given selectors. Empty
// selectors fall back to the defaults.
func NewHTTPProductExtractor(titleSelector, descSelector string, opts ...ExtractorOption) (*HTTPProductExtractor, error) {
	if titleSelector == "" {
		titleSelector = DefaultTitleSelector
	}
	if descSelector == "" {
		descSelector = DefaultDescriptionSelector
	}
	titleSel, err := cascadia.Compile(titleSelector)
	if err != nil {
		return nil, fmt.Errorf("title selector %q: %w", titleSelector, err)
	}
	descSel, err := cascadia.Compile(descSelector)
	if err != nil {
		return nil, fmt.Errorf("description selector %q: %w", descSelector, err)
	}

	e := &HTTPProductExtractor{
		client:      &http.Client{Timeout: 30 * time.Second},
		titleSel:    titleSel,
		descSel:     descSel,
		attempts:    defaultExtractAttempts,
		backoff:     2 * time.Second,
		readability: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract fetches the page at url and returns its product fields. Failures are
// *ExtractError values that wrap ErrExtract.
func (e *HTTPProductExtractor) Extract(ctx context.Context, url string) (*ProductInfo, error) {
	info, err := e.extract(ctx, url)
	if err != nil {
		var xe *ExtractError
		if errors.As(err, &xe) {
			slog.Error("product extraction failed", "url", url, "kind", xe.Kind, "field", xe.Field, "error", xe.Err)
		}
		return nil, err
	}
	return info, nil
}

func (e *HTTPProductExtractor) extract(ctx context.Context, url string) (*ProductInfo, error) {
	parsed, err := nurl.Parse(url)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &ExtractError{URL: url, Kind: ExtractTransport, Err: errBadURL}
	}

	body, err := e.fetchWithRetry(ctx, url)
	if err != nil {
		return nil, &ExtractError{URL: url, Kind: ExtractTransport, Err: err}
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractError{URL: url, Kind: ExtractStructure, Err: fmt.Errorf("parse html: %w", err)}
	}

	title := nodeText(e.titleSel.MatchFirst(doc))
	if title == "" {
		return nil, &ExtractError{URL: url, Field: "title", Kind: ExtractStructure, Err: errEmptyField}
	}
	desc := nodeText(e.descSel.MatchFirst(doc))
	if desc == "" {
		return nil, &ExtractError{URL: url, Field: "description", Kind: ExtractStructure, Err: errEmptyField}
	}

	info := &ProductInfo{URL: url, Title: title, Description: desc}
	if e.readability {
		article, err := readability.FromReader(bytes.NewReader(body), parsed)
		if err != nil {
			slog.Debug("readability skipped", "url", url, "error", err)
		} else {
			info.Excerpt = normalizeText(article.Excerpt)
			info.SiteName = article.SiteName
		}
	}
	return info, nil
}

// statusError is a non-200 response from the product page.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func (e *HTTPProductExtractor) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < e.attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * e.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retry, err := e.fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retry {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", e.attempts, lastErr)
}

// fetch performs a single GET. The boolean reports whether the failure is transient.
func (e *HTTPProductExtractor) fetch(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	// Use a realistic browser User-Agent to avoid being blocked by shops.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return nil, transient, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}

// nodeText returns the whitespace-normalized text under n.
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		block := false
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			block = blockElements[n.Data]
		}
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return normalizeText(b.String())
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "section": true, "tr": true,
}

var multiSpace = regexp.MustCompile(`\s+`)

func normalizeText(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
