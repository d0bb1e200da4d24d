// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package sync implements the ship catalog synchronization pipeline:
// the upstream fetch client, record validation and transform, and the
// run orchestrator that ties them to the document store.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/metrics"
	"github.com/hangarbay/fleetindex/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// errPageNotRetryable marks responses where retrying the same request
// cannot succeed: 4xx other than 429, and malformed bodies.
var errPageNotRetryable = errors.New("non-retryable upstream response")

// FetchResult is the outcome of one full pagination pass. Errors holds
// human-readable strings for expected failure modes; the pipeline never
// treats an upstream hiccup as a programming error.
type FetchResult struct {
	Records      []models.ExternalShip
	PagesFetched int
	Errors       []string
}

// FleetClient fetches the ship catalog from the upstream listing API.
//
// Pagination follows three cursors in priority order: a rel="next" link
// advertised by the server, then short-page inference (a page smaller
// than the requested size is the last page), then manual page-number
// increment. A hard page cap bounds the walk against cursor bugs.
//
// Per-page resilience:
//   - network errors and 5xx retry with linear backoff (attempt x delay)
//   - 429 waits for Retry-After seconds, or a fixed default without it
//   - other 4xx fail the page immediately, retrying cannot help
//   - exhausted retries stop the whole walk, a partial fetch must not
//     masquerade as the last page
//
// Safe for concurrent use, though the orchestrator serializes runs.
type FleetClient struct {
	baseURL       string
	client        *http.Client
	pageSize      int
	maxPages      int
	retryAttempts int
	retryDelay    time.Duration
	rateLimitWait time.Duration
	pageLimiter   *rate.Limiter
}

// NewFleetClient creates an upstream catalog client from configuration.
func NewFleetClient(cfg *config.UpstreamConfig) *FleetClient {
	return &FleetClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		pageSize:      cfg.PageSize,
		maxPages:      cfg.MaxPages,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		rateLimitWait: cfg.RateLimitWait,
		pageLimiter:   rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
	}
}

// FetchAllRecords walks the paginated listing endpoint and returns every
// record it could collect. Expected failures (bad pages, rate limits,
// the page cap) land in FetchResult.Errors; the error return is reserved
// for context cancellation.
func (c *FleetClient) FetchAllRecords(ctx context.Context) (*FetchResult, error) {
	result := &FetchResult{}
	pageURL := c.pageURL(1)
	page := 1

	for {
		if page > c.maxPages {
			msg := fmt.Sprintf("pagination stopped at safety cap of %d pages", c.maxPages)
			logging.Warn().Int("max_pages", c.maxPages).Msg("Pagination safety cap reached")
			result.Errors = append(result.Errors, msg)
			return result, nil
		}

		// Inter-page spacing, independent of retry backoff. The limiter
		// starts with one free token so the first page is not delayed.
		if err := c.pageLimiter.Wait(ctx); err != nil {
			return result, err
		}

		records, nextLink, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// Stop the walk here: skipping a failed page could make a
			// later short page look like the legitimate last page.
			result.Errors = append(result.Errors, fmt.Sprintf("page %d: %v", page, err))
			return result, nil
		}

		result.Records = append(result.Records, records...)
		result.PagesFetched++

		logging.Debug().Int("page", page).Int("records", len(records)).Msg("Fetched catalog page")

		switch {
		case nextLink != "":
			pageURL = nextLink
		case len(records) < c.pageSize:
			return result, nil
		default:
			pageURL = c.pageURL(page + 1)
		}
		page++
	}
}

// pageURL builds the listing URL for a given page number.
func (c *FleetClient) pageURL(page int) string {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("perPage", strconv.Itoa(c.pageSize))
	return fmt.Sprintf("%s/models?%s", c.baseURL, params.Encode())
}

// fetchPage requests one page with the per-page retry policy, returning
// the decoded records and the rel="next" link when the server sent one.
func (c *FleetClient) fetchPage(ctx context.Context, pageURL string) ([]models.ExternalShip, string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		records, nextLink, err := c.doPage(ctx, pageURL)
		if err == nil {
			return records, nextLink, nil
		}
		if errors.Is(err, errPageNotRetryable) {
			return nil, "", err
		}
		lastErr = err

		if attempt == c.retryAttempts {
			break
		}
		metrics.SyncFetchRetries.Inc()

		var rl *rateLimitedError
		delay := time.Duration(attempt) * c.retryDelay
		if errors.As(err, &rl) {
			delay = rl.wait
			logging.Warn().Dur("wait", delay).Str("url", pageURL).Msg("Upstream rate limited, backing off")
		} else {
			logging.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("Page fetch failed, retrying")
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}

	return nil, "", fmt.Errorf("exhausted %d attempts: %w", c.retryAttempts, lastErr)
}

// rateLimitedError carries the wait derived from a 429 response.
type rateLimitedError struct {
	wait time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("upstream rate limited (HTTP 429), wait %s", e.wait)
}

// doPage performs a single page request without retries.
func (c *FleetClient) doPage(ctx context.Context, pageURL string) ([]models.ExternalShip, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// Decoded below.
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, "", &rateLimitedError{wait: c.retryAfterWait(resp)}
	case resp.StatusCode >= 500:
		body := readBodyForError(resp.Body)
		return nil, "", fmt.Errorf("upstream returned HTTP %d: %s", resp.StatusCode, body)
	default:
		body := readBodyForError(resp.Body)
		return nil, "", fmt.Errorf("%w: HTTP %d: %s", errPageNotRetryable, resp.StatusCode, body)
	}

	// The stdlib decoder is the deliberate choice at this trust
	// boundary, see models.ExternalShip.
	var records []models.ExternalShip
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		// A malformed body is a shape problem, not a transient one.
		return nil, "", fmt.Errorf("%w: failed to decode page body: %v", errPageNotRetryable, err)
	}

	return records, parseNextLink(resp.Header.Get("Link")), nil
}

// retryAfterWait resolves the wait for a 429: the Retry-After header in
// seconds when present and parseable, the configured default otherwise.
func (c *FleetClient) retryAfterWait(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return c.rateLimitWait
}

// parseNextLink extracts the rel="next" target from an RFC 8288 Link
// header, or returns "" when the header has no next relation.
func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(sections[0]), "<>")
		for _, param := range sections[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return target
			}
		}
	}
	return ""
}

// readBodyForError reads up to maxErrorBodySize of a response body for
// error reporting, best effort.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}
