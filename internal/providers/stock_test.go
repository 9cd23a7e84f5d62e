package providers

import (
	"context"
	"testing"
)

type fakeStockProvider struct {
	results []StockVideoResult
}

func (f *fakeStockProvider) search(ctx context.Context, keyword string, perKeywordCap, maxPages int, orientation string) ([]StockVideoResult, error) {
	return f.results, nil
}

func TestStockVideoLadderDedupesByURL(t *testing.T) {
	shared := StockVideoResult{URL: "https://cdn/a.mp4", Source: "pixabay", Query: "beach"}
	pixabay := &fakeStockProvider{results: []StockVideoResult{shared}}
	pexels := &fakeStockProvider{results: []StockVideoResult{{URL: "https://cdn/a.mp4", Source: "pexels"}, {URL: "https://cdn/b.mp4", Source: "pexels"}}}

	l := NewStockVideoLadder(pixabay, pexels, 1)
	results, err := l.Search(context.Background(), StockVideoInput{Keywords: []string{"beach"}, PerKeywordCap: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 deduped results, got %d: %+v", len(results), results)
	}
}

func TestStockVideoLadderSkipsNilProvider(t *testing.T) {
	pexels := &fakeStockProvider{results: []StockVideoResult{{URL: "https://cdn/c.mp4"}}}
	l := NewStockVideoLadder(nil, pexels, 1)
	results, err := l.Search(context.Background(), StockVideoInput{Keywords: []string{"ocean"}, PerKeywordCap: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestOrientationToPixabay(t *testing.T) {
	if orientationToPixabay("portrait") != "vertical" {
		t.Error("expected portrait to map to vertical")
	}
	if orientationToPixabay("landscape") != "horizontal" {
		t.Error("expected landscape to map to horizontal")
	}
}

func TestShuffledPageOrderCoversAllPages(t *testing.T) {
	pages := shuffledPageOrder(5)
	seen := map[int]bool{}
	for _, p := range pages {
		seen[p] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected all 5 pages present, got %d distinct", len(seen))
	}
}
