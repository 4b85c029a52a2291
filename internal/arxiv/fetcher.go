// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package arxiv fetches paper metadata for a category and submission day
// from the arXiv Atom API, with request pacing and bounded retries.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/digestkit/arxiv-digest/internal/retry"
	"github.com/digestkit/arxiv-digest/pkg/types"
)

// apiBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://export.arxiv.org/api/query"

const (
	defaultRequestsPerSecond = 0.33 // one request roughly every 3 s, per arXiv API etiquette
	defaultPageSize          = 100
	defaultMaxPerCategory    = 50
	defaultTimeout           = 30 * time.Second
	defaultUserAgent         = "arxiv-digest/0.1"

	// submittedDate bounds use minute precision: YYYYMMDDHHMM.
	submittedDateFormat = "200601021504"
)

// Fetcher retrieves paper metadata from the arXiv API. The limiter
// enforces a minimum spacing between consecutive requests, including
// pages of the same category.
// Per prd001-fetch R3.1-R3.5.
type Fetcher struct {
	Client         *http.Client
	Limiter        *rate.Limiter
	Policy         retry.Policy
	PageSize       int
	MaxPerCategory int
	UserAgent      string
}

// NewFetcher builds a Fetcher from config, applying defaults for unset
// fields.
func NewFetcher(cfg types.FetchConfig) *Fetcher {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPer := cfg.MaxPerCategory
	if maxPer <= 0 {
		maxPer = defaultMaxPerCategory
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Fetcher{
		Client:         &http.Client{Timeout: timeout},
		Limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		Policy:         retry.Policy{MaxRetries: cfg.MaxRetries},
		PageSize:       pageSize,
		MaxPerCategory: maxPer,
		UserAgent:      userAgent,
	}
}

// FetchError reports a category fetch that failed after retries were
// exhausted or a permanent error occurred.
type FetchError struct {
	Category string
	Day      time.Time
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Category, e.Day.Format(types.DayFormat), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// httpError is a non-200 API response. 429 carries the server's
// Retry-After as the mandated minimum wait.
type httpError struct {
	status     int
	retryAfter time.Duration
}

func (e *httpError) Error() string {
	return fmt.Sprintf("arXiv API returned HTTP %d", e.status)
}

func (e *httpError) RetryAfter() time.Duration { return e.retryAfter }

func (e *httpError) temporary() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// FetchCategory returns every paper submitted to category during the UTC
// day, newest first, paginated up to MaxPerCategory. A day with no
// submissions yields an empty slice and no error. Re-invoking restarts
// the pagination from the beginning.
func (f *Fetcher) FetchCategory(ctx context.Context, category string, day time.Time) ([]types.Paper, error) {
	start, end := types.DayRange(day)
	query := fmt.Sprintf("cat:%s AND submittedDate:[%s TO %s]",
		category, start.Format(submittedDateFormat), end.Format(submittedDateFormat))

	var papers []types.Paper
	for offset := 0; offset < f.MaxPerCategory; offset += f.PageSize {
		count := f.PageSize
		if rem := f.MaxPerCategory - offset; rem < count {
			count = rem
		}

		page, err := f.fetchPage(ctx, query, offset, count)
		if err != nil {
			return nil, &FetchError{Category: category, Day: day, Err: err}
		}
		papers = append(papers, page...)

		// A short page means the window is exhausted.
		if len(page) < count {
			break
		}
	}
	return papers, nil
}

// fetchPage requests one page, waiting for the rate limiter before every
// attempt and retrying transient failures.
func (f *Fetcher) fetchPage(ctx context.Context, query string, start, count int) ([]types.Paper, error) {
	var page []types.Paper

	err := retry.Do(ctx, f.Policy, func(ctx context.Context) error {
		if err := f.Limiter.Wait(ctx); err != nil {
			return err
		}

		reqURL := fmt.Sprintf("%s?search_query=%s&start=%d&max_results=%d&sortBy=submittedDate&sortOrder=descending",
			apiBase, url.QueryEscape(query), start, count)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", f.UserAgent)

		resp, err := f.Client.Do(req)
		if err != nil {
			return retry.Transient(fmt.Errorf("arXiv API request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			herr := &httpError{status: resp.StatusCode, retryAfter: parseRetryAfter(resp)}
			if herr.temporary() {
				return retry.Transient(herr)
			}
			return herr
		}

		var feed atomFeed
		if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
			return fmt.Errorf("parsing arXiv response: %w", err)
		}

		page = page[:0]
		for _, entry := range feed.Entries {
			if p, ok := entryToPaper(entry); ok {
				page = append(page, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// parseRetryAfter reads a delay-seconds Retry-After header. Absent or
// unparseable headers yield zero.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// arXiv Atom feed XML structures.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Primary    atomCategory   `xml:"http://arxiv.org/schemas/atom primary_category"`
	Links      []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

// entryToPaper converts one feed entry. Entries without a recognizable
// identifier are dropped.
func entryToPaper(e atomEntry) (types.Paper, bool) {
	id := canonicalID(e.ID)
	if id == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		ID:       id,
		Title:    collapseSpace(e.Title),
		Abstract: strings.TrimSpace(e.Summary),
	}

	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	// The primary category leads the list; remaining categories keep
	// feed order. Per prd001-fetch R2.3.
	if e.Primary.Term != "" {
		p.Categories = append(p.Categories, e.Primary.Term)
	}
	for _, c := range e.Categories {
		if c.Term != "" && c.Term != e.Primary.Term {
			p.Categories = append(p.Categories, c.Term)
		}
	}

	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		p.Published = t
	}
	if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
		p.Updated = t
	}

	for _, l := range e.Links {
		switch {
		case l.Title == "pdf":
			p.PDFURL = l.Href
		case l.Rel == "alternate":
			p.Link = l.Href
		}
	}
	return p, true
}

// canonicalID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func canonicalID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

// collapseSpace flattens the hard-wrapped whitespace arXiv feeds carry in
// titles.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
