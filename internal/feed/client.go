// Package feed provides the Tradier market-data client the builder consumes:
// underlying quotes, option chains, expirations, and price history.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jcallahan4/optiondesk/internal/chain"
)

// APIError represents a feed API error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// ErrNoQuote is returned when the feed has no quote for a symbol.
var ErrNoQuote = errors.New("no quote found for symbol")

// Provider is the market-data contract the rest of the service depends on.
// All calls are synchronous; callers gate core invocations on success so the
// builder never sees partial data.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetExpirations(ctx context.Context, symbol string) ([]string, error)
	GetOptionChain(ctx context.Context, symbol, expiration string, greeks bool) ([]Option, error)
	GetHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]Candle, error)
}

// Client is the Tradier REST implementation of Provider.
type Client struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// Ensure Client implements Provider at compile time.
var _ Provider = (*Client)(nil)

// NewClient creates a Tradier feed client. An empty baseURL selects the
// production or sandbox endpoint depending on the sandbox flag.
func NewClient(apiKey, baseURL string, sandbox bool) *Client {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.tradier.com/v1"
		} else {
			baseURL = "https://api.tradier.com/v1"
		}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.client = hc
	}
	return c
}

// Handle single-object vs array responses from Tradier.
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

// Quote is an underlying quote from the feed. The latest close is what the
// builder uses as the current price.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	PrevClose float64 `json:"prevclose"`
	Volume    int64   `json:"volume"`
}

type quotesResponse struct {
	Quotes struct {
		Quote singleOrArray[Quote] `json:"quote"`
	} `json:"quotes"`
}

// Option is one option contract record as delivered by the feed.
type Option struct {
	Greeks         *Greeks `json:"greeks,omitempty"`
	Symbol         string  `json:"symbol"`
	OptionType     string  `json:"option_type"`
	ExpirationDate string  `json:"expiration_date"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Last           float64 `json:"last"`
	Volume         int64   `json:"volume"`
	OpenInterest   int64   `json:"open_interest"`
	Strike         float64 `json:"strike"`
}

// Greeks contains option greeks data from the feed.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	MidIV float64 `json:"mid_iv"`
}

type optionChainResponse struct {
	Options struct {
		Option singleOrArray[Option] `json:"option"`
	} `json:"options"`
}

type expirationsResponse struct {
	Expirations struct {
		Date []string `json:"date"`
	} `json:"expirations"`
}

// Candle is one bar of price history.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type historyResponse struct {
	History struct {
		Day singleOrArray[struct {
			Date   string  `json:"date"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume int64   `json:"volume"`
		}] `json:"day"`
	} `json:"history"`
}

// Normalize shapes feed option records into chain quotes.
func Normalize(options []Option) ([]chain.Quote, error) {
	raws := make([]chain.Raw, len(options))
	for i, o := range options {
		raws[i] = chain.Raw{
			Strike:       o.Strike,
			Type:         o.OptionType,
			Bid:          o.Bid,
			Ask:          o.Ask,
			Last:         o.Last,
			Volume:       o.Volume,
			OpenInterest: o.OpenInterest,
			Expiration:   o.ExpirationDate,
		}
	}
	return chain.NormalizeAll(raws)
}

// GetQuote retrieves the current market quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("greeks", "false")
	endpoint := c.baseURL + "/markets/quotes?" + params.Encode()

	var response quotesResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, err
	}

	quotes := response.Quotes.Quote
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}
	first := quotes[0]
	return &first, nil
}

// GetExpirations retrieves available option expiration dates for a symbol.
func (c *Client) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("includeAllRoots", "true")
	params.Set("strikes", "false")
	endpoint := c.baseURL + "/markets/options/expirations?" + params.Encode()

	var response expirationsResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Expirations.Date, nil
}

// GetOptionChain retrieves the option chain for a symbol and expiration.
func (c *Client) GetOptionChain(ctx context.Context, symbol, expiration string, greeks bool) ([]Option, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration)
	params.Set("greeks", fmt.Sprintf("%t", greeks))
	endpoint := c.baseURL + "/markets/options/chains?" + params.Encode()

	var response optionChainResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, err
	}
	return []Option(response.Options.Option), nil
}

// GetHistory retrieves historical price bars for a symbol.
func (c *Client) GetHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]Candle, error) {
	if interval == "" {
		interval = "daily"
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("start", start.Format("2006-01-02"))
	params.Set("end", end.Format("2006-01-02"))
	endpoint := c.baseURL + "/markets/history?" + params.Encode()

	var response historyResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}

	candles := make([]Candle, len(response.History.Day))
	for i, day := range response.History.Day {
		date, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			return nil, fmt.Errorf("parsing bar date %q: %w", day.Date, err)
		}
		candles[i] = Candle{
			Date:   date,
			Open:   day.Open,
			High:   day.High,
			Low:    day.Low,
			Close:  day.Close,
			Volume: day.Volume,
		}
	}
	return candles, nil
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+c.apiKey)
	req.Header.Add("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap
		if readErr != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, endpoint)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s", method, endpoint, string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil && err != io.EOF {
		return err
	}
	return nil
}
