// Package ident normalizes user input into a canonical Bilibili video
// identifier. Long-form URLs and bare BV tokens are matched directly;
// short links are resolved over HTTP before re-matching.
package ident

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrIdentifierNotFound is returned when no canonical BV token can be
// derived from the input, including after short-link resolution.
var ErrIdentifierNotFound = errors.New("no video identifier found")

// browserUserAgent makes short-link hosts treat resolution requests as
// a regular browser visit.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const resolveTimeout = 10 * time.Second

var bvPattern = regexp.MustCompile(`BV[a-zA-Z0-9]{10}`)

var shortLinkHosts = []string{"b23.tv", "bili2233.cn"}

// Extractor derives canonical video identifiers from URLs or bare IDs.
type Extractor struct {
	client *http.Client
	logger *slog.Logger
}

// NewExtractor builds an extractor with a bounded-timeout HTTP client.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client: &http.Client{Timeout: resolveTimeout},
		logger: logger,
	}
}

// NewExtractorForTests builds an extractor with an injected client.
func NewExtractorForTests(client *http.Client, logger *slog.Logger) *Extractor {
	e := NewExtractor(logger)
	if client != nil {
		e.client = client
	}
	return e
}

// Extract returns the canonical identifier embedded in input. Inputs
// without a direct match are resolved as short links when the host is
// known; network failures there are logged, not raised, and fall
// through to ErrIdentifierNotFound.
func (e *Extractor) Extract(ctx context.Context, input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if id := bvPattern.FindString(trimmed); id != "" {
		return id, nil
	}

	if isShortLink(trimmed) {
		finalURL, err := e.resolveShortLink(ctx, trimmed)
		if err != nil {
			e.logger.Warn("short link resolution failed", "url", trimmed, "error", err)
		} else if id := bvPattern.FindString(finalURL); id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w in %q", ErrIdentifierNotFound, trimmed)
}

// resolveShortLink follows redirects with a HEAD request, retrying once
// with GET since some hosts reject HEAD, and returns the final URL.
func (e *Extractor) resolveShortLink(ctx context.Context, shortURL string) (string, error) {
	target := shortURL
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	finalURL, headErr := e.follow(ctx, http.MethodHead, target)
	if headErr == nil {
		return finalURL, nil
	}

	finalURL, getErr := e.follow(ctx, http.MethodGet, target)
	if getErr != nil {
		return "", fmt.Errorf("HEAD: %v; GET: %w", headErr, getErr)
	}
	return finalURL, nil
}

func (e *Extractor) follow(ctx context.Context, method, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Request.URL.String(), nil
}

// isShortLink reports whether input points at a known short-link host.
func isShortLink(input string) bool {
	target := input
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	for _, known := range shortLinkHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}
