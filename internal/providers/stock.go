package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// StockVideoInput is the input to a stock-video search call (4.3d).
type StockVideoInput struct {
	Keywords        []string
	PerKeywordCap   int
	Orientation     string // default "portrait"
	MaxPagesPerWord int
}

// StockVideoResult is a single matched clip.
type StockVideoResult struct {
	URL      string
	Width    int
	Height   int
	Duration float64
	Source   string
	Query    string
}

type stockVideoProvider interface {
	search(ctx context.Context, keyword string, perKeywordCap, maxPages int, orientation string) ([]StockVideoResult, error)
}

// StockVideoLadder merges results from Pixabay (primary) and Pexels (secondary),
// de-duplicating by URL and shuffling the combined set.
type StockVideoLadder struct {
	Pixabay stockVideoProvider
	Pexels  stockVideoProvider
	rng     *rand.Rand
}

func NewStockVideoLadder(pixabay, pexels stockVideoProvider, seed int64) *StockVideoLadder {
	return &StockVideoLadder{Pixabay: pixabay, Pexels: pexels, rng: rand.New(rand.NewSource(seed))}
}

func (l *StockVideoLadder) Search(ctx context.Context, in StockVideoInput) ([]StockVideoResult, error) {
	orientation := in.Orientation
	if orientation == "" {
		orientation = "portrait"
	}
	maxPages := in.MaxPagesPerWord
	if maxPages <= 0 {
		maxPages = 3
	}

	seen := make(map[string]bool)
	var merged []StockVideoResult

	for _, kw := range in.Keywords {
		for _, provider := range []stockVideoProvider{l.Pixabay, l.Pexels} {
			if provider == nil {
				continue
			}
			results, err := provider.search(ctx, kw, in.PerKeywordCap, maxPages, orientation)
			if err != nil {
				log.Printf("[Provider:stock] search failed for %q: %v", kw, err)
				continue
			}
			for _, r := range results {
				if seen[r.URL] {
					continue
				}
				seen[r.URL] = true
				merged = append(merged, r)
			}
		}
	}

	l.rng.Shuffle(len(merged), func(i, j int) { merged[i], merged[j] = merged[j], merged[i] })
	return merged, nil
}

// ---------------------------------------------------------------------------
// Pixabay
// ---------------------------------------------------------------------------

type PixabayClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewPixabayClient(apiKey string) *PixabayClient {
	return &PixabayClient{apiKey: apiKey, baseURL: "https://pixabay.com", client: &http.Client{Timeout: 30 * time.Second}}
}

type pixabayResponse struct {
	Hits []struct {
		Videos struct {
			Medium struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"medium"`
		} `json:"videos"`
		Duration float64 `json:"duration"`
	} `json:"hits"`
}

func (c *PixabayClient) search(ctx context.Context, keyword string, perKeywordCap, maxPages int, orientation string) ([]StockVideoResult, error) {
	var results []StockVideoResult
	pages := shuffledPageOrder(maxPages)

	for _, page := range pages {
		if len(results) >= perKeywordCap {
			break
		}
		q := url.Values{}
		q.Set("key", c.apiKey)
		q.Set("q", keyword)
		q.Set("orientation", orientationToPixabay(orientation))
		q.Set("page", fmt.Sprintf("%d", page))
		q.Set("per_page", "20")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/videos/?"+q.Encode(), nil)
		if err != nil {
			return results, fmt.Errorf("pixabay: failed to create request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return results, fmt.Errorf("pixabay: request failed: %w", err)
		}
		var parsed pixabayResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			return results, fmt.Errorf("pixabay: failed to parse response: %w", err)
		}
		if len(parsed.Hits) == 0 {
			break // fewer than requested page size: stop early
		}
		for _, h := range parsed.Hits {
			results = append(results, StockVideoResult{
				URL:      h.Videos.Medium.URL,
				Width:    h.Videos.Medium.Width,
				Height:   h.Videos.Medium.Height,
				Duration: h.Duration,
				Source:   "pixabay",
				Query:    keyword,
			})
		}
		if len(parsed.Hits) < 20 {
			break // fewer than requested page size: stop early
		}
	}
	return results, nil
}

func orientationToPixabay(o string) string {
	if o == "portrait" {
		return "vertical"
	}
	return "horizontal"
}

// ---------------------------------------------------------------------------
// Pexels
// ---------------------------------------------------------------------------

type PexelsClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewPexelsClient(apiKey string) *PexelsClient {
	return &PexelsClient{apiKey: apiKey, baseURL: "https://api.pexels.com", client: &http.Client{Timeout: 30 * time.Second}}
}

type pexelsResponse struct {
	Videos []struct {
		Duration   float64 `json:"duration"`
		VideoFiles []struct {
			Link   string `json:"link"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"video_files"`
	} `json:"videos"`
}

func (c *PexelsClient) search(ctx context.Context, keyword string, perKeywordCap, maxPages int, orientation string) ([]StockVideoResult, error) {
	var results []StockVideoResult
	pages := shuffledPageOrder(maxPages)

	for _, page := range pages {
		if len(results) >= perKeywordCap {
			break
		}
		q := url.Values{}
		q.Set("query", keyword)
		q.Set("orientation", orientation)
		q.Set("page", fmt.Sprintf("%d", page))
		q.Set("per_page", "20")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/search?"+q.Encode(), nil)
		if err != nil {
			return results, fmt.Errorf("pexels: failed to create request: %w", err)
		}
		req.Header.Set("Authorization", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return results, fmt.Errorf("pexels: request failed: %w", err)
		}
		var parsed pexelsResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			return results, fmt.Errorf("pexels: failed to parse response: %w", err)
		}
		for _, v := range parsed.Videos {
			if len(v.VideoFiles) == 0 {
				continue
			}
			f := v.VideoFiles[0]
			results = append(results, StockVideoResult{
				URL: f.Link, Width: f.Width, Height: f.Height, Duration: v.Duration, Source: "pexels", Query: keyword,
			})
		}
		if len(parsed.Videos) < 20 {
			break // fewer than requested page size: stop early
		}
	}
	return results, nil
}

func shuffledPageOrder(maxPages int) []int {
	pages := make([]int, maxPages)
	for i := range pages {
		pages[i] = i + 1
	}
	rand.Shuffle(len(pages), func(i, j int) { pages[i], pages[j] = pages[j], pages[i] })
	return pages
}
