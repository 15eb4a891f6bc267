package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// searchHTTPClient is a single pooled client shared across invocations,
// the way the teacher's hfHTTPClient is shared across handler calls
// rather than constructed per-request.
var searchHTTPClient = &http.Client{Timeout: 8 * time.Second}

// SemanticScholarClient is the upstream search client (C6): a circuit
// breaker gating a single HTTP API.
type SemanticScholarClient struct {
	baseURL string
	apiKey  string
	breaker *CircuitBreaker
}

func NewSemanticScholarClient(baseURL, apiKey string, breaker *CircuitBreaker) *SemanticScholarClient {
	return &SemanticScholarClient{baseURL: baseURL, apiKey: apiKey, breaker: breaker}
}

type searchResponse struct {
	Data []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		Year     *int   `json:"year"`
		Venue    string `json:"venue"`
		URL      string `json:"url"`
		Authors  []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"data"`
}

// SearchPapers queries the upstream paper search API for query,
// returning normalized candidates. The circuit breaker is checked
// before the request is made and updated after it completes.
func (c *SemanticScholarClient) SearchPapers(ctx context.Context, query string, limit int) ([]CandidatePaper, error) {
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	reqURL := c.baseURL + "?" + url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {"paperId,title,abstract,authors,year,venue,url"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, newError(KindUpstreamRequestError, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", "dante-paper-search/1.0")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := searchHTTPClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, newError(KindUpstreamRequestError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, newError(KindUpstreamRequestError, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
		return nil, newError(KindUpstreamRateLimited, fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		c.breaker.RecordFailure()
		return nil, newError(KindUpstreamRequestError, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.breaker.RecordFailure()
		return nil, newError(KindUpstreamRequestError, err)
	}

	c.breaker.RecordSuccess()

	candidates := make([]CandidatePaper, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.PaperID == "" || d.Title == "" {
			continue
		}
		authors := make([]string, 0, len(d.Authors))
		for _, a := range d.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		candidates = append(candidates, CandidatePaper{
			PaperID:  d.PaperID,
			Title:    d.Title,
			Abstract: d.Abstract,
			Authors:  authors,
			Year:     d.Year,
			Venue:    d.Venue,
			URL:      d.URL,
		})
	}

	return candidates, nil
}
