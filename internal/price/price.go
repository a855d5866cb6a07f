package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrPriceUnavailable marks any failure to obtain usable market data:
// transport errors, non-200 responses, unparseable payloads and zero or
// empty prices. Callers skip or abort, never treat it as a price.
var ErrPriceUnavailable = errors.New("price unavailable")

// SMADays is the window of the 200-day simple moving average used by the
// Mayer Multiple and the chart overlay.
const SMADays = 200

// Mayer bundles the /mayer reply data.
type Mayer struct {
	Price    float64
	SMA200   float64
	Multiple float64
}

// Client fetches spot and historical prices for a single trading pair from
// the Binance public REST API.
type Client struct {
	baseURL string
	symbol  string
	client  *http.Client
}

func NewClient(baseURL, symbol string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		symbol:  symbol,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Symbol() string {
	return c.symbol
}

// CurrentPrice returns the latest spot price. The result is strictly
// positive or the call fails with ErrPriceUnavailable.
func (c *Client) CurrentPrice(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, c.symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errors.Wrap(ErrPriceUnavailable, err.Error())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(ErrPriceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Wrapf(ErrPriceUnavailable, "ticker endpoint returned status %d", resp.StatusCode)
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, errors.Wrap(ErrPriceUnavailable, err.Error())
	}

	value, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil || value <= 0 {
		return 0, errors.Wrapf(ErrPriceUnavailable, "invalid ticker price %q", ticker.Price)
	}

	log.Debugf("fetched %s spot price: %.2f", c.symbol, value)
	return value, nil
}

// DailyCloses returns the close prices of the last n daily candles, oldest
// first. An empty series is reported as ErrPriceUnavailable.
func (c *Client) DailyCloses(ctx context.Context, n int) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=1d&limit=%d", c.baseURL, c.symbol, n)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(ErrPriceUnavailable, err.Error())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrPriceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrPriceUnavailable, "klines endpoint returned status %d", resp.StatusCode)
	}

	// Each kline is a mixed-type array; index 4 is the close price as a
	// string.
	var klines [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, errors.Wrap(ErrPriceUnavailable, err.Error())
	}

	var closes []float64
	for _, row := range klines {
		if len(row) < 5 {
			continue
		}
		raw, ok := row[4].(string)
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			continue
		}
		closes = append(closes, value)
	}

	if len(closes) == 0 {
		return nil, errors.Wrap(ErrPriceUnavailable, "kline response contained no usable closes")
	}

	return closes, nil
}

// MayerMultiple computes spot price over the 200-day simple moving average.
func (c *Client) MayerMultiple(ctx context.Context) (Mayer, error) {
	current, err := c.CurrentPrice(ctx)
	if err != nil {
		return Mayer{}, err
	}

	closes, err := c.DailyCloses(ctx, SMADays)
	if err != nil {
		return Mayer{}, err
	}

	var sum float64
	for _, c := range closes {
		sum += c
	}
	sma := sum / float64(len(closes))

	return Mayer{
		Price:    current,
		SMA200:   sma,
		Multiple: current / sma,
	}, nil
}
