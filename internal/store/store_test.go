package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.StoreConfig{Path: filepath.Join(t.TempDir(), "papers.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePaper(id string, published time.Time, categories ...string) types.Paper {
	return types.Paper{
		ID:         id,
		Title:      "Efficient Attention Mechanisms for Transformers",
		Authors:    []string{"Smith, J.", "Doe, A."},
		Abstract:   "We study linear approximations of softmax attention.",
		Categories: categories,
		Published:  published,
		Updated:    published.Add(6 * time.Hour),
		PDFURL:     "http://arxiv.org/pdf/" + id,
		Link:       "http://arxiv.org/abs/" + id,
	}
}

func mustUpsert(t *testing.T, s *Store, papers ...types.Paper) {
	t.Helper()
	if _, err := s.Upsert(context.Background(), papers); err != nil {
		t.Fatal(err)
	}
}

func paperCount(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM papers`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

var day = time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)

// --- schema tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	s := testStore(t)

	for _, table := range []string{"papers", "analyses"} {
		var count int
		err := s.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewStoreCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "papers.db")
	s, err := NewStore(types.StoreConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", path)
	}
}

// --- upsert tests ---

func TestUpsertRoundTrip(t *testing.T) {
	s := testStore(t)
	want := samplePaper("2412.19001", day.Add(10*time.Hour), "cs.AI", "cs.LG")
	mustUpsert(t, s, want)

	got, err := s.Search(context.Background(), SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d papers, want 1", len(got))
	}

	p := got[0]
	if p.ID != want.ID {
		t.Errorf("ID = %q, want %q", p.ID, want.ID)
	}
	if p.Title != want.Title {
		t.Errorf("Title = %q, want %q", p.Title, want.Title)
	}
	if len(p.Authors) != 2 || p.Authors[0] != "Smith, J." {
		t.Errorf("Authors = %v, want %v", p.Authors, want.Authors)
	}
	if p.Abstract != want.Abstract {
		t.Errorf("Abstract = %q, want %q", p.Abstract, want.Abstract)
	}
	if len(p.Categories) != 2 || p.Categories[0] != "cs.AI" || p.Categories[1] != "cs.LG" {
		t.Errorf("Categories = %v, want %v", p.Categories, want.Categories)
	}
	if !p.Published.Equal(want.Published) {
		t.Errorf("Published = %v, want %v", p.Published, want.Published)
	}
	if !p.Updated.Equal(want.Updated) {
		t.Errorf("Updated = %v, want %v", p.Updated, want.Updated)
	}
	if p.PDFURL != want.PDFURL {
		t.Errorf("PDFURL = %q, want %q", p.PDFURL, want.PDFURL)
	}
	if p.Link != want.Link {
		t.Errorf("Link = %q, want %q", p.Link, want.Link)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	s := testStore(t)
	p := samplePaper("2412.19001", day, "cs.AI")

	mustUpsert(t, s, p)
	mustUpsert(t, s, p)

	if n := paperCount(t, s); n != 1 {
		t.Errorf("paper count = %d, want 1", n)
	}
}

func TestUpsertUnionsCategories(t *testing.T) {
	s := testStore(t)

	first := samplePaper("2412.19001", day, "cs.AI")
	mustUpsert(t, s, first)

	second := samplePaper("2412.19001", day, "cs.LG", "stat.ML")
	second.Title = "Revised Title"
	mustUpsert(t, s, second)

	got, err := s.Search(context.Background(), SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d papers, want 1 (no duplicates on re-upsert)", len(got))
	}

	p := got[0]
	wantCats := []string{"cs.AI", "cs.LG", "stat.ML"}
	if len(p.Categories) != len(wantCats) {
		t.Fatalf("Categories = %v, want %v", p.Categories, wantCats)
	}
	for i, c := range wantCats {
		if p.Categories[i] != c {
			t.Errorf("Categories[%d] = %q, want %q", i, p.Categories[i], c)
		}
	}
	if p.Title != "Revised Title" {
		t.Errorf("Title = %q, want latest payload to win", p.Title)
	}
}

func TestUpsertSkipsEmptyIDs(t *testing.T) {
	s := testStore(t)

	n, err := s.Upsert(context.Background(), []types.Paper{
		{ID: "", Title: "no id"},
		samplePaper("2412.1", day, "cs.AI"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Upsert count = %d, want 1", n)
	}
}

// --- search tests ---

func TestSearchTextIsCaseInsensitiveAcrossFields(t *testing.T) {
	s := testStore(t)

	inTitle := samplePaper("2412.1", day, "cs.AI")
	inTitle.Title = "Sparse TRANSFORMER Routing"
	inTitle.Abstract = "A study of routing."
	inTitle.Authors = []string{"Ada Lovelace"}

	inAbstract := samplePaper("2412.2", day, "cs.AI")
	inAbstract.Title = "Routing Networks"
	inAbstract.Abstract = "We extend transformer architectures."
	inAbstract.Authors = []string{"Alan Turing"}

	inAuthors := samplePaper("2412.3", day, "cs.AI")
	inAuthors.Title = "Graph Methods"
	inAuthors.Abstract = "Graphs everywhere."
	inAuthors.Authors = []string{"Petra Transformer"}

	unrelated := samplePaper("2412.4", day, "cs.AI")
	unrelated.Title = "Convex Optimization"
	unrelated.Abstract = "Gradient methods."
	unrelated.Authors = []string{"Carl Gauss"}

	mustUpsert(t, s, inTitle, inAbstract, inAuthors, unrelated)

	got, err := s.Search(context.Background(), SearchOptions{Text: "tRaNsFoRmEr"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d papers, want 3 (title, abstract, authors matches)", len(got))
	}
	for _, p := range got {
		if p.ID == "2412.4" {
			t.Errorf("unrelated paper %s matched", p.ID)
		}
	}
}

func TestSearchFiltersAreConjunctive(t *testing.T) {
	s := testStore(t)

	match := samplePaper("2412.1", day.Add(2*time.Hour), "cs.AI")
	match.Title = "Transformer Compression"

	wrongDate := samplePaper("2412.2", day.AddDate(0, 0, -3), "cs.AI")
	wrongDate.Title = "Transformer Pruning"

	wrongCategory := samplePaper("2412.3", day.Add(3*time.Hour), "math.CO")
	wrongCategory.Title = "Transformer Circuits"

	wrongText := samplePaper("2412.4", day.Add(4*time.Hour), "cs.AI")
	wrongText.Title = "Diffusion Models"
	wrongText.Abstract = "Generative imagery."
	wrongText.Authors = []string{"Grace Hopper"}

	mustUpsert(t, s, match, wrongDate, wrongCategory, wrongText)

	from, to := types.DayRange(day)
	got, err := s.Search(context.Background(), SearchOptions{
		Text:       "transformer",
		From:       from,
		To:         to,
		Categories: []string{"cs.AI"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "2412.1" {
		t.Errorf("got %v, want only 2412.1", ids(got))
	}
}

func TestSearchDateRangeIsHalfOpen(t *testing.T) {
	s := testStore(t)

	atStart := samplePaper("2412.1", day, "cs.AI")
	beforeEnd := samplePaper("2412.2", day.Add(23*time.Hour+59*time.Minute), "cs.AI")
	atEnd := samplePaper("2412.3", day.AddDate(0, 0, 1), "cs.AI")

	mustUpsert(t, s, atStart, beforeEnd, atEnd)

	from, to := types.DayRange(day)
	got, err := s.Search(context.Background(), SearchOptions{From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want [2412.2 2412.1]", ids(got))
	}
	for _, p := range got {
		if p.ID == "2412.3" {
			t.Errorf("paper at the exclusive upper bound matched")
		}
	}
}

func TestSearchCategoryMatchesAnyListed(t *testing.T) {
	s := testStore(t)

	crossListed := samplePaper("2412.1", day, "cs.AI", "cs.LG")
	other := samplePaper("2412.2", day, "math.CO")
	mustUpsert(t, s, crossListed, other)

	// Matching on a secondary category still finds the paper.
	got, err := s.Search(context.Background(), SearchOptions{Categories: []string{"cs.LG"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "2412.1" {
		t.Errorf("got %v, want [2412.1]", ids(got))
	}

	// Multiple categories act as any-of.
	got, err = s.Search(context.Background(), SearchOptions{Categories: []string{"cs.LG", "math.CO"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %v, want both papers", ids(got))
	}
}

func TestSearchOrdersNewestFirstThenID(t *testing.T) {
	s := testStore(t)

	older := samplePaper("2412.9", day.Add(1*time.Hour), "cs.AI")
	newerB := samplePaper("2412.5", day.Add(8*time.Hour), "cs.AI")
	newerA := samplePaper("2412.3", day.Add(8*time.Hour), "cs.AI")

	mustUpsert(t, s, older, newerB, newerA)

	got, err := s.Search(context.Background(), SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2412.3", "2412.5", "2412.9"}
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("got %v, want %v", gotIDs, want)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, gotIDs[i], want[i])
		}
	}
}

func TestSearchLimit(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 5; i++ {
		mustUpsert(t, s, samplePaper(fmt.Sprintf("2412.%d", i), day.Add(time.Duration(i)*time.Hour), "cs.AI"))
	}

	got, err := s.Search(context.Background(), SearchOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d papers, want 2", len(got))
	}
}

func TestPapersFor(t *testing.T) {
	s := testStore(t)

	inWindow := samplePaper("2412.1", day.Add(5*time.Hour), "cs.AI")
	crossListed := samplePaper("2412.2", day.Add(6*time.Hour), "cs.LG", "cs.AI")
	otherDay := samplePaper("2412.3", day.AddDate(0, 0, -1), "cs.AI")
	otherCat := samplePaper("2412.4", day.Add(7*time.Hour), "math.CO")

	mustUpsert(t, s, inWindow, crossListed, otherDay, otherCat)

	got, err := s.PapersFor(context.Background(), "cs.AI", day)
	if err != nil {
		t.Fatal(err)
	}
	gotIDs := ids(got)
	if len(gotIDs) != 2 || gotIDs[0] != "2412.2" || gotIDs[1] != "2412.1" {
		t.Errorf("got %v, want [2412.2 2412.1]", gotIDs)
	}
}

// --- analysis tests ---

func TestSaveAnalysesOverwritesByKey(t *testing.T) {
	s := testStore(t)

	first := types.AnalysisResult{
		PaperID: "2412.1", Field: "ml", Audience: "technical",
		Status: types.StatusFailed, Error: "timeout",
		CreatedAt: day.Add(10 * time.Hour),
	}
	if err := s.SaveAnalyses(context.Background(), []types.AnalysisResult{first}); err != nil {
		t.Fatal(err)
	}

	second := first
	second.Status = types.StatusSuccess
	second.Error = ""
	second.Title = "Adaptive Sparse Attention"
	second.KeyContributions = "Linear attention at scale."
	second.Importance = "Cuts serving cost."
	second.Citation = "Smith et al., 2024"
	second.ReasonChosen = "Widely applicable."
	second.Category = "cs.AI"
	if err := s.SaveAnalyses(context.Background(), []types.AnalysisResult{second}); err != nil {
		t.Fatal(err)
	}

	got, err := s.AnalysesFor(context.Background(), "ml", "technical")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1 (re-run overwrites)", len(got))
	}

	r := got[0]
	if r.Status != types.StatusSuccess {
		t.Errorf("Status = %q, want success", r.Status)
	}
	if r.Title != second.Title || r.KeyContributions != second.KeyContributions {
		t.Errorf("fields not overwritten: %+v", r)
	}
	if r.Error != "" {
		t.Errorf("Error = %q, want empty after overwrite", r.Error)
	}
	if !r.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, second.CreatedAt)
	}
}

func TestAnalysesForFiltersByPair(t *testing.T) {
	s := testStore(t)

	results := []types.AnalysisResult{
		{PaperID: "2412.1", Field: "ml", Audience: "technical", Status: types.StatusSuccess},
		{PaperID: "2412.2", Field: "ml", Audience: "general", Status: types.StatusSuccess},
		{PaperID: "2412.3", Field: "bio", Audience: "technical", Status: types.StatusSuccess},
	}
	if err := s.SaveAnalyses(context.Background(), results); err != nil {
		t.Fatal(err)
	}

	got, err := s.AnalysesFor(context.Background(), "ml", "technical")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PaperID != "2412.1" {
		t.Errorf("got %+v, want only 2412.1", got)
	}
}

func ids(papers []types.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}
