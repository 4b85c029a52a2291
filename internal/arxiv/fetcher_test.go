// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digestkit/arxiv-digest/internal/retry"
)

// fastPolicy keeps retry sleeps in the microsecond range.
var fastPolicy = retry.Policy{MaxRetries: 2, Base: time.Microsecond, Cap: time.Millisecond, Multiplier: 2}

// testFetcher returns a Fetcher with no effective rate limit and fast
// retries, pointed at ts via the apiBase var.
func testFetcher(t *testing.T, ts *httptest.Server, pageSize, maxPer int) *Fetcher {
	t.Helper()
	old := apiBase
	apiBase = ts.URL
	t.Cleanup(func() { apiBase = old })

	return &Fetcher{
		Client:         ts.Client(),
		Limiter:        rate.NewLimiter(rate.Inf, 1),
		Policy:         fastPolicy,
		PageSize:       pageSize,
		MaxPerCategory: maxPer,
		UserAgent:      "arxiv-digest/test",
	}
}

const feedHeader = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">`

func entryXML(id, title, primary string, cross []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<entry>
  <id>http://arxiv.org/abs/%s</id>
  <title>%s</title>
  <summary>  Abstract for %s.  </summary>
  <published>2024-12-30T10:00:00Z</published>
  <updated>2024-12-30T18:00:00Z</updated>
  <author><name>Ada Lovelace</name></author>
  <author><name>Alan Turing</name></author>
  <arxiv:primary_category term=%q/>
  <category term=%q/>`, id, title, id, primary, primary)
	for _, c := range cross {
		fmt.Fprintf(&b, "\n  <category term=%q/>", c)
	}
	fmt.Fprintf(&b, `
  <link href="http://arxiv.org/abs/%s" rel="alternate" type="text/html"/>
  <link title="pdf" href="http://arxiv.org/pdf/%s" rel="related"/>
</entry>`, id, id)
	return b.String()
}

func feedXML(entries ...string) string {
	return feedHeader + strings.Join(entries, "\n") + "</feed>"
}

func TestFetchCategory_ParsesEntries(t *testing.T) {
	var gotQuery atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, feedXML(entryXML("2412.19001v2", "Adaptive\n  Sparse   Attention", "cs.AI", []string{"cs.LG"})))
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 100, 50)
	day := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)

	papers, err := f.FetchCategory(context.Background(), "cs.AI", day)
	require.NoError(t, err)
	require.Len(t, papers, 1)

	p := papers[0]
	assert.Equal(t, "2412.19001", p.ID, "version suffix should be stripped")
	assert.Equal(t, "Adaptive Sparse Attention", p.Title, "feed whitespace should collapse")
	assert.Equal(t, "Abstract for 2412.19001v2.", p.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, p.Authors)
	assert.Equal(t, []string{"cs.AI", "cs.LG"}, p.Categories)
	assert.Equal(t, "cs.AI", p.PrimaryCategory())
	assert.True(t, p.CrossListed())
	assert.Equal(t, time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC), p.Published)
	assert.Equal(t, "http://arxiv.org/pdf/2412.19001v2", p.PDFURL)
	assert.Equal(t, "http://arxiv.org/abs/2412.19001v2", p.Link)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "cat:cs.AI AND submittedDate:[202412300000 TO 202412310000]", q["search_query"][0])
	assert.Equal(t, "submittedDate", q["sortBy"][0])
	assert.Equal(t, "descending", q["sortOrder"][0])
}

func TestFetchCategory_Paginates(t *testing.T) {
	// Five entries served in pages of two.
	ids := []string{"2412.1v1", "2412.2v1", "2412.3v1", "2412.4v1", "2412.5v1"}
	var mu sync.Mutex
	var starts []int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		count, _ := strconv.Atoi(r.URL.Query().Get("max_results"))
		mu.Lock()
		starts = append(starts, start)
		mu.Unlock()

		var entries []string
		for i := start; i < len(ids) && i < start+count; i++ {
			entries = append(entries, entryXML(ids[i], "Paper "+ids[i], "cs.AI", nil))
		}
		fmt.Fprint(w, feedXML(entries...))
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 2, 50)
	papers, err := f.FetchCategory(context.Background(), "cs.AI", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Len(t, papers, 5)
	mu.Lock()
	assert.Equal(t, []int{0, 2, 4}, starts, "pages should advance by page size")
	mu.Unlock()
	assert.Equal(t, "2412.1", papers[0].ID)
	assert.Equal(t, "2412.5", papers[4].ID)
}

func TestFetchCategory_StopsAtMaxPerCategory(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		count, _ := strconv.Atoi(r.URL.Query().Get("max_results"))
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))

		var entries []string
		for i := 0; i < count; i++ {
			entries = append(entries, entryXML(fmt.Sprintf("2412.%dv1", start+i+1), "Paper", "cs.AI", nil))
		}
		fmt.Fprint(w, feedXML(entries...))
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 2, 3)
	papers, err := f.FetchCategory(context.Background(), "cs.AI", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Len(t, papers, 3, "cap should truncate the final page")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchCategory_EmptyDay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedXML())
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 100, 50)
	papers, err := f.FetchCategory(context.Background(), "cs.AI", time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestFetchCategory_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, feedXML(entryXML("2412.7v1", "Paper", "cs.AI", nil)))
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 100, 50)
	papers, err := f.FetchCategory(context.Background(), "cs.AI", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, papers, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchCategory_RetryExhaustion(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 100, 50)
	_, err := f.FetchCategory(context.Background(), "cs.AI", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "cs.AI", fe.Category)
	assert.Contains(t, err.Error(), "2024-12-30")
	// 1 initial + 2 retries = 3 total calls.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchCategory_NoRetryOnNotFound(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 100, 50)
	_, err := f.FetchCategory(context.Background(), "cs.AI", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client errors should not be retried")
}

func TestFetchCategory_PacesRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		fmt.Fprint(w, feedXML(
			entryXML(fmt.Sprintf("2412.%dv1", start+1), "Paper", "cs.AI", nil),
			entryXML(fmt.Sprintf("2412.%dv1", start+2), "Paper", "cs.AI", nil),
		))
	}))
	defer ts.Close()

	f := testFetcher(t, ts, 2, 6)
	// 10 ms spacing; three pages means at least two waits.
	f.Limiter = rate.NewLimiter(rate.Limit(100), 1)

	begin := time.Now()
	papers, err := f.FetchCategory(context.Background(), "cs.AI", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, papers, 6)
	assert.GreaterOrEqual(t, time.Since(begin), 18*time.Millisecond)
}

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041v12", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/cs/0301001v2", "cs/0301001"},
		{"https://example.com/nothing", ""},
	}
	for _, tt := range tests {
		if got := canonicalID(tt.in); got != tt.want {
			t.Errorf("canonicalID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
