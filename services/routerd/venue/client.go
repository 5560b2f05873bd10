// Package venue implements the router's Venue interface against the exchange
// REST API.
package venue

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

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"swaprouter/native/router"
)

// ErrVenueUnavailable wraps transport-level failures talking to the venue.
var ErrVenueUnavailable = errors.New("venue: unavailable")

// Client talks to the venue REST API. It satisfies router.Venue and adds
// FetchSettlement for the sidecar's settlement pump.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a venue client for the supplied base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type marketPayload struct {
	MarketID            string `json:"market_id"`
	BaseDenom           string `json:"base_denom"`
	QuoteDenom          string `json:"quote_denom"`
	TakerFeeRate        string `json:"taker_fee_rate"`
	RelayerFeeShareRate string `json:"relayer_fee_share_rate"`
	MinPriceTick        string `json:"min_price_tick"`
	MinQuantityTick     string `json:"min_quantity_tick"`
}

type bookPayload struct {
	Levels []struct {
		Price    string `json:"price"`
		Quantity string `json:"quantity"`
	} `json:"levels"`
}

type multiplierPayload struct {
	Multiplier string `json:"multiplier"`
}

type balancePayload struct {
	Denom     string `json:"denom"`
	Available string `json:"available"`
}

type settlementPayload struct {
	Quantity     string `json:"quantity"`
	AveragePrice string `json:"average_price"`
	Fee          string `json:"fee"`
}

// SpotMarket fetches the market descriptor. The boolean is false when the
// venue does not know the market.
func (c *Client) SpotMarket(marketID string) (*router.SpotMarket, bool, error) {
	var payload marketPayload
	found, err := c.get("/markets/"+url.PathEscape(marketID), nil, &payload)
	if err != nil || !found {
		return nil, false, err
	}
	market := &router.SpotMarket{MarketID: payload.MarketID}
	market.BaseDenom = payload.BaseDenom
	market.QuoteDenom = payload.QuoteDenom
	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&market.TakerFeeRate, payload.TakerFeeRate, "taker_fee_rate"},
		{&market.RelayerFeeShareRate, payload.RelayerFeeShareRate, "relayer_fee_share_rate"},
		{&market.MinPriceTick, payload.MinPriceTick, "min_price_tick"},
		{&market.MinQuantityTick, payload.MinQuantityTick, "min_quantity_tick"},
	}
	for _, f := range fields {
		parsed, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, false, fmt.Errorf("venue: market %s: parse %s %q: %w", marketID, f.name, f.src, err)
		}
		*f.dst = parsed
	}
	return market, true, nil
}

// OrderBookSide fetches price levels for one side of the book, bounded by the
// supplied cap.
func (c *Client) OrderBookSide(marketID string, side router.OrderSide, cap router.OrderBookCap) ([]router.PriceLevel, error) {
	query := url.Values{"side": {string(side)}}
	if cap.Quantity != nil {
		query.Set("quantity", cap.Quantity.String())
	}
	if cap.Notional != nil {
		query.Set("notional", cap.Notional.String())
	}
	var payload bookPayload
	found, err := c.get("/markets/"+url.PathEscape(marketID)+"/book", query, &payload)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("venue: market %s: book not found", marketID)
	}
	levels := make([]router.PriceLevel, 0, len(payload.Levels))
	for i, raw := range payload.Levels {
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("venue: market %s: level %d price %q: %w", marketID, i, raw.Price, err)
		}
		qty, err := decimal.NewFromString(raw.Quantity)
		if err != nil {
			return nil, fmt.Errorf("venue: market %s: level %d quantity %q: %w", marketID, i, raw.Quantity, err)
		}
		levels = append(levels, router.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// FeeMultiplier fetches the atomic-execution fee multiplier for the market.
func (c *Client) FeeMultiplier(marketID string) (decimal.Decimal, error) {
	var payload multiplierPayload
	found, err := c.get("/markets/"+url.PathEscape(marketID)+"/fee-multiplier", nil, &payload)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !found {
		return decimal.Decimal{}, fmt.Errorf("venue: market %s: fee multiplier not found", marketID)
	}
	multiplier, err := decimal.NewFromString(payload.Multiplier)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("venue: market %s: parse multiplier %q: %w", marketID, payload.Multiplier, err)
	}
	return multiplier, nil
}

// Balance fetches the router's deposited balance in the denom. An unknown
// denom reads as zero.
func (c *Client) Balance(denom string) (decimal.Decimal, error) {
	var payload balancePayload
	found, err := c.get("/balances/"+url.PathEscape(denom), nil, &payload)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !found {
		return decimal.Zero, nil
	}
	available, err := decimal.NewFromString(payload.Available)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("venue: balance %s: parse %q: %w", denom, payload.Available, err)
	}
	return available, nil
}

// SubmitAtomicOrder places an immediate-or-abort market order.
func (c *Client) SubmitAtomicOrder(order *router.Order) error {
	if order == nil {
		return fmt.Errorf("venue: order required")
	}
	body := map[string]string{
		"market_id":     order.MarketID,
		"price":         order.Price.String(),
		"quantity":      order.Quantity.String(),
		"side":          string(order.Side),
		"fee_recipient": order.FeeRecipient,
	}
	return c.post("/orders", body)
}

// Transfer moves funds from the router's venue balance to the destination.
func (c *Client) Transfer(denom string, quantity decimal.Decimal, destination string) error {
	body := map[string]string{
		"denom":       denom,
		"quantity":    quantity.String(),
		"destination": destination,
	}
	return c.post("/transfers", body)
}

// FetchSettlement polls for the next pending settlement report. The boolean
// is false when no report is ready yet.
func (c *Client) FetchSettlement(ctx context.Context) (*router.TradeReport, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/settlements/next", nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, false, nil
	case http.StatusOK:
	default:
		return nil, false, fmt.Errorf("venue: settlements: unexpected status %d", resp.StatusCode)
	}
	var payload settlementPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("venue: settlements: decode: %w", err)
	}
	return &router.TradeReport{
		Quantity:     payload.Quantity,
		AveragePrice: payload.AveragePrice,
		Fee:          payload.Fee,
	}, true, nil
}

func (c *Client) get(path string, query url.Values, out interface{}) (bool, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return false, nil
	case http.StatusOK:
	default:
		return false, fmt.Errorf("venue: GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("venue: GET %s: decode: %w", path, err)
	}
	return true, nil
}

func (c *Client) post(path string, body interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("venue: POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

var _ router.Venue = (*Client)(nil)
