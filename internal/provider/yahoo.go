package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	yahooBaseURL = "https://query1.finance.yahoo.com/v7/finance/quote"
	yahooUA      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// yahooQuoteResponse is the top-level Yahoo Finance API response.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// yahooQuoteResult is a single quote result from Yahoo Finance.
type yahooQuoteResult struct {
	Symbol             string  `json:"symbol"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

// YahooQuoteProvider fetches quotes from the Yahoo Finance v7 quote endpoint.
type YahooQuoteProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	limiter    *rate.Limiter
}

// NewYahooQuoteProvider creates a quote provider limited to perSecond requests
// per second. A non-positive perSecond disables limiting.
func NewYahooQuoteProvider(httpClient *http.Client, baseURL string, perSecond float64) *YahooQuoteProvider {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &YahooQuoteProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// GetQuotes fetches quotes for up to MaxQuoteSymbols symbols in one request.
// Symbols Yahoo does not know are absent from the result.
func (p *YahooQuoteProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if len(symbols) > MaxQuoteSymbols {
		return nil, fmt.Errorf("too many symbols: %d > %d", len(symbols), MaxQuoteSymbols)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	reqURL := p.baseURL + "?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var quoteResp yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if e := quoteResp.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("yahoo error %s: %s", e.Code, e.Description)
	}

	quotes := make([]Quote, 0, len(quoteResp.QuoteResponse.Result))
	for _, r := range quoteResp.QuoteResponse.Result {
		quotes = append(quotes, Quote{
			Symbol: r.Symbol,
			Price:  decimal.NewFromFloat(r.RegularMarketPrice),
		})
	}
	return quotes, nil
}
