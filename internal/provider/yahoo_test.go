package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// newQuoteMockServer serves v7 quote responses for the symbols present in priceMap.
func newQuoteMockServer(priceMap map[string]float64, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var resp yahooQuoteResponse
		for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			if price, ok := priceMap[sym]; ok {
				resp.QuoteResponse.Result = append(resp.QuoteResponse.Result, yahooQuoteResult{Symbol: sym, RegularMarketPrice: price})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestYahooQuoteProvider_GetQuotes_Success(t *testing.T) {
	var calls atomic.Int32
	server := newQuoteMockServer(map[string]float64{
		"AAPL":  178.72,
		"MSFT":  420.55,
		"BRK.B": 411.1,
	}, &calls)
	defer server.Close()

	p := NewYahooQuoteProvider(server.Client(), server.URL, 0)
	quotes, err := p.GetQuotes(context.Background(), []string{"AAPL", "MSFT", "BRK.B", "NOPE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 request, got %d", calls.Load())
	}
	if len(quotes) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(quotes))
	}

	want := map[string]string{"AAPL": "178.72", "MSFT": "420.55", "BRK.B": "411.1"}
	for _, q := range quotes {
		if !q.Price.Equal(decimal.RequireFromString(want[q.Symbol])) {
			t.Errorf("%s: expected %s, got %s", q.Symbol, want[q.Symbol], q.Price)
		}
	}
}

func TestYahooQuoteProvider_GetQuotes_Empty(t *testing.T) {
	p := NewYahooQuoteProvider(http.DefaultClient, "http://unused.invalid", 0)
	quotes, err := p.GetQuotes(context.Background(), nil)
	if err != nil || quotes != nil {
		t.Fatalf("expected nil, nil; got %v, %v", quotes, err)
	}
}

func TestYahooQuoteProvider_GetQuotes_TooManySymbols(t *testing.T) {
	p := NewYahooQuoteProvider(http.DefaultClient, "http://unused.invalid", 0)
	symbols := make([]string, MaxQuoteSymbols+1)
	for i := range symbols {
		symbols[i] = "S"
	}
	if _, err := p.GetQuotes(context.Background(), symbols); err == nil {
		t.Fatal("expected error for oversized request")
	}
}

func TestYahooQuoteProvider_GetQuotes_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewYahooQuoteProvider(server.Client(), server.URL, 0)
	if _, err := p.GetQuotes(context.Background(), []string{"AAPL"}); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestYahooQuoteProvider_GetQuotes_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[],"error":{"code":"Unauthorized","description":"Invalid Crumb"}}}`))
	}))
	defer server.Close()

	p := NewYahooQuoteProvider(server.Client(), server.URL, 0)
	_, err := p.GetQuotes(context.Background(), []string{"AAPL"})
	if err == nil || !strings.Contains(err.Error(), "Invalid Crumb") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestYahooQuoteProvider_GetQuotes_CancelledContext(t *testing.T) {
	server := newQuoteMockServer(map[string]float64{"AAPL": 1}, nil)
	defer server.Close()

	p := NewYahooQuoteProvider(server.Client(), server.URL, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.GetQuotes(ctx, []string{"AAPL"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
