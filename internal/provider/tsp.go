package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wealthsync/internal/fundcode"
)

const (
	tspBaseURL  = "https://www.tsp.gov/data/fund-price-history.csv"
	tspLookback = 14 * 24 * time.Hour
)

var tspDateLayouts = []string{"2006-01-02", "Jan 2, 2006", "01/02/2006"}

// TSPPriceProvider reads the TSP share price history CSV. Columns are a
// "Date" column followed by one column per fund ("L Income", "L 2030",
// "G Fund", ...).
type TSPPriceProvider struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// NewTSPPriceProvider creates a retirement price provider backed by the TSP CSV feed.
func NewTSPPriceProvider(httpClient *http.Client, baseURL string) *TSPPriceProvider {
	if baseURL == "" {
		baseURL = tspBaseURL
	}
	return &TSPPriceProvider{httpClient: httpClient, baseURL: baseURL, now: time.Now}
}

// GetLatestPrices returns the most recent price row on or before date (today
// when date is nil). It returns nil when the feed has no row in the lookback
// window.
func (p *TSPPriceProvider) GetLatestPrices(ctx context.Context, date *time.Time) (*FundPriceSet, error) {
	end := p.now().UTC()
	if date != nil {
		end = date.UTC()
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	start := end.Add(-tspLookback)

	q := url.Values{}
	q.Set("startdate", start.Format("2006-01-02"))
	q.Set("enddate", end.Format("2006-01-02"))
	q.Set("Lfunds", "1")
	q.Set("InvFunds", "1")
	q.Set("download", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching fund prices: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching fund prices: unexpected status %d", resp.StatusCode)
	}

	return parseTSPCSV(resp.Body, end)
}

// parseTSPCSV picks the latest row dated on or before end.
func parseTSPCSV(r io.Reader, end time.Time) (*FundPriceSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[int]fundcode.Code, len(header))
	for i, name := range header {
		if i == 0 {
			continue
		}
		if code, ok := fundcode.Normalize(name); ok {
			columns[i] = code
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no fund columns in header %v", header)
	}

	var best *FundPriceSet
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}

		day, err := parseTSPDate(record[0])
		if err != nil {
			return nil, err
		}
		if day.After(end) || (best != nil && !day.After(best.Date)) {
			continue
		}

		set := &FundPriceSet{Date: day, Prices: make(map[fundcode.Code]decimal.Decimal, len(columns))}
		for i, code := range columns {
			if i >= len(record) {
				continue
			}
			raw := strings.TrimSpace(record[i])
			if raw == "" {
				continue
			}
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("parsing %s price %q: %w", code, raw, err)
			}
			set.Prices[code] = price
		}
		best = set
	}

	return best, nil
}

func parseTSPDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range tspDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
