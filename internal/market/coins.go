package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var ErrUnknownRange = errors.New("unknown time range")

// Well-known CoinGecko IDs.
const (
	Bitcoin  = "bitcoin"
	Ethereum = "ethereum"
	USDC     = "usd-coin"
)

// DefaultCoins is used when no IDs are given.
var DefaultCoins = []string{Bitcoin, Ethereum, USDC}

const top500Endpoint = "/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=500&sparkline=false"

// CoinMarket is one row of /coins/markets.
type CoinMarket struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank"`
	TotalVolume              float64 `json:"total_volume"`
}

// TokenInfo is the summary used by token pickers.
type TokenInfo struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Image         string  `json:"image"`
	CurrentPrice  float64 `json:"current_price,omitempty"`
	MarketCap     float64 `json:"market_cap,omitempty"`
	MarketCapRank int     `json:"market_cap_rank,omitempty"`
}

func (m CoinMarket) token() TokenInfo {
	return TokenInfo{
		ID:            m.ID,
		Symbol:        strings.ToUpper(m.Symbol),
		Name:          m.Name,
		Image:         m.Image,
		CurrentPrice:  m.CurrentPrice,
		MarketCap:     m.MarketCap,
		MarketCapRank: m.MarketCapRank,
	}
}

// SearchCoin is one /search hit.
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
	Thumb         string `json:"thumb"`
}

// TrendingCoin is one /search/trending entry.
type TrendingCoin struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	MarketCapRank int     `json:"market_cap_rank"`
	Thumb         string  `json:"thumb"`
	PriceBTC      float64 `json:"price_btc"`
	Score         int     `json:"score"`
}

// GlobalData is the /global market summary.
type GlobalData struct {
	ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
	Markets                         int                `json:"markets"`
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt                       int64              `json:"updated_at"`
}

// PricePoint is one sample of a price history; Timestamp is unix ms.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// TimeRange selects a chart window.
type TimeRange string

const (
	Range1h  TimeRange = "1h"
	Range4h  TimeRange = "4h"
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
	Range1y  TimeRange = "1y"
)

type rangeSpec struct {
	Days     string
	Interval string
}

var timeRanges = map[TimeRange]rangeSpec{
	Range1h:  {Days: "0.0417", Interval: "minutely"},
	Range4h:  {Days: "0.1667", Interval: "minutely"},
	Range24h: {Days: "1", Interval: "hourly"},
	Range7d:  {Days: "7", Interval: "hourly"},
	Range30d: {Days: "30", Interval: "daily"},
	Range1y:  {Days: "365", Interval: "daily"},
}

// TimeRanges lists the supported ranges, shortest first.
func TimeRanges() []TimeRange {
	return []TimeRange{Range1h, Range4h, Range24h, Range7d, Range30d, Range1y}
}

// ParseTimeRange validates s.
func ParseTimeRange(s string) (TimeRange, error) {
	r := TimeRange(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeRanges[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
	}
	return r, nil
}

func joinIDs(ids []string) string {
	escaped := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			escaped = append(escaped, url.QueryEscape(id))
		}
	}
	return strings.Join(escaped, ",")
}

// CoinPrices returns USD prices keyed by coin ID. IDs CoinGecko does not
// know are left out.
func (c *Client) CoinPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	var resp map[string]map[string]float64
	if err := c.getJSON(ctx, "/simple/price?ids="+joinIDs(ids)+"&vs_currencies=usd", &resp); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(ids))
	for _, id := range ids {
		if p, ok := resp[id]["usd"]; ok {
			prices[id] = p
		}
	}
	return prices, nil
}

// Markets returns market rows for ids (DefaultCoins when empty).
func (c *Client) Markets(ctx context.Context, ids []string, currency string, perPage, page int) ([]CoinMarket, error) {
	if len(ids) == 0 {
		ids = DefaultCoins
	}
	if currency == "" {
		currency = "usd"
	}
	if perPage <= 0 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	endpoint := fmt.Sprintf("/coins/markets?vs_currency=%s&ids=%s&order=market_cap_desc&per_page=%d&page=%d&sparkline=false&price_change_percentage=24h",
		url.QueryEscape(currency), joinIDs(ids), perPage, page)

	var out []CoinMarket
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopTokens returns the 500 largest tokens by market cap.
func (c *Client) TopTokens(ctx context.Context) ([]TokenInfo, error) {
	var rows []CoinMarket
	if err := c.getJSON(ctx, top500Endpoint, &rows); err != nil {
		return nil, err
	}
	return tokens(rows), nil
}

func tokens(rows []CoinMarket) []TokenInfo {
	out := make([]TokenInfo, len(rows))
	for i, r := range rows {
		out[i] = r.token()
	}
	return out
}

// SearchCoins returns raw /search hits. Queries shorter than two characters
// return nothing.
func (c *Client) SearchCoins(ctx context.Context, query string) ([]SearchCoin, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return nil, nil
	}
	var resp struct {
		Coins []SearchCoin `json:"coins"`
	}
	if err := c.getJSON(ctx, "/search?query="+url.QueryEscape(query), &resp); err != nil {
		return nil, err
	}
	return resp.Coins, nil
}

// SearchTokens matches query against the cached top-500 list first and tops
// up from /search when fewer than ten tokens match. Results are sorted by
// market cap rank, unranked last.
func (c *Client) SearchTokens(ctx context.Context, query string) ([]TokenInfo, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return nil, nil
	}
	needle := strings.ToLower(query)

	var found []TokenInfo
	if data, ok := c.cached(top500Endpoint); ok {
		var rows []CoinMarket
		if err := json.Unmarshal(data, &rows); err == nil {
			for _, r := range rows {
				if strings.Contains(r.ID, needle) ||
					strings.Contains(strings.ToLower(r.Symbol), needle) ||
					strings.Contains(strings.ToLower(r.Name), needle) {
					found = append(found, r.token())
				}
			}
		}
	}

	if len(found) < 10 {
		hits, err := c.SearchCoins(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(hits) > 20 {
			hits = hits[:20]
		}
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		if len(ids) > 0 {
			var rows []CoinMarket
			endpoint := "/coins/markets?vs_currency=usd&ids=" + joinIDs(ids) + "&order=market_cap_desc&sparkline=false"
			if err := c.getJSON(ctx, endpoint, &rows); err != nil {
				return nil, err
			}
			seen := make(map[string]bool, len(found))
			for _, t := range found {
				seen[t.ID] = true
			}
			for _, r := range rows {
				if !seen[r.ID] {
					seen[r.ID] = true
					found = append(found, r.token())
				}
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return rankOrDefault(found[i].MarketCapRank) < rankOrDefault(found[j].MarketCapRank)
	})
	return found, nil
}

func rankOrDefault(rank int) int {
	if rank <= 0 {
		return 999
	}
	return rank
}

// TokenDetails fetches a single coin.
func (c *Client) TokenDetails(ctx context.Context, id string) (*TokenInfo, error) {
	var resp struct {
		ID            string `json:"id"`
		Symbol        string `json:"symbol"`
		Name          string `json:"name"`
		MarketCapRank int    `json:"market_cap_rank"`
		Image         struct {
			Large string `json:"large"`
		} `json:"image"`
		MarketData struct {
			CurrentPrice map[string]float64 `json:"current_price"`
			MarketCap    map[string]float64 `json:"market_cap"`
		} `json:"market_data"`
	}
	endpoint := "/coins/" + url.PathEscape(id) + "?localization=false&tickers=false&market_data=true&community_data=false&developer_data=false"
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &TokenInfo{
		ID:            resp.ID,
		Symbol:        strings.ToUpper(resp.Symbol),
		Name:          resp.Name,
		Image:         resp.Image.Large,
		CurrentPrice:  resp.MarketData.CurrentPrice["usd"],
		MarketCap:     resp.MarketData.MarketCap["usd"],
		MarketCapRank: resp.MarketCapRank,
	}, nil
}

// Trending returns the coins trending in the last 24 hours.
func (c *Client) Trending(ctx context.Context) ([]TrendingCoin, error) {
	var resp struct {
		Coins []struct {
			Item TrendingCoin `json:"item"`
		} `json:"coins"`
	}
	if err := c.getJSON(ctx, "/search/trending", &resp); err != nil {
		return nil, err
	}
	out := make([]TrendingCoin, len(resp.Coins))
	for i, coin := range resp.Coins {
		out[i] = coin.Item
	}
	return out, nil
}

// Global returns the overall market summary.
func (c *Client) Global(ctx context.Context) (*GlobalData, error) {
	var resp struct {
		Data GlobalData `json:"data"`
	}
	if err := c.getJSON(ctx, "/global", &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// HistoricalPrices returns the price series for id over r.
func (c *Client) HistoricalPrices(ctx context.Context, id string, r TimeRange, currency string) ([]PricePoint, error) {
	window, ok := timeRanges[r]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRange, r)
	}
	if currency == "" {
		currency = "usd"
	}
	endpoint := fmt.Sprintf("/coins/%s/market_chart?vs_currency=%s&days=%s&interval=%s",
		url.PathEscape(id), url.QueryEscape(currency), window.Days, window.Interval)

	var resp struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	out := make([]PricePoint, len(resp.Prices))
	for i, p := range resp.Prices {
		out[i] = PricePoint{Timestamp: int64(p[0]), Price: p[1]}
	}
	return out, nil
}

// ParseIDs splits a comma-separated ID list.
func ParseIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
