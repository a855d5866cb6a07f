package price

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeBinance(t *testing.T, tickerPrice string, closes []string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		fmt.Fprintf(w, `{"symbol":"BTCUSDT","price":"%s"}`, tickerPrice)
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, "[")
		for i, c := range closes {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			// Kline rows mix numbers and strings; the close is column 4.
			fmt.Fprintf(w, `[1700000000000,"1.0","2.0","0.5","%s","100.0",1700086399999]`, c)
		}
		fmt.Fprint(w, "]")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrentPrice(t *testing.T) {
	srv := newFakeBinance(t, "97000.50", nil)
	client := NewClient(srv.URL, "BTCUSDT", time.Second)

	value, err := client.CurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 97000.50, value)
}

func TestCurrentPriceRejectsZero(t *testing.T) {
	srv := newFakeBinance(t, "0", nil)
	client := NewClient(srv.URL, "BTCUSDT", time.Second)

	_, err := client.CurrentPrice(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
}

func TestCurrentPriceRejectsGarbage(t *testing.T) {
	srv := newFakeBinance(t, "not-a-number", nil)
	client := NewClient(srv.URL, "BTCUSDT", time.Second)

	_, err := client.CurrentPrice(context.Background())
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
}

func TestCurrentPriceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "BTCUSDT", time.Second)

	_, err := client.CurrentPrice(context.Background())
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
}

func TestCurrentPriceUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "BTCUSDT", 100*time.Millisecond)

	_, err := client.CurrentPrice(context.Background())
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
}

func TestDailyCloses(t *testing.T) {
	srv := newFakeBinance(t, "100", []string{"40.0", "50.0", "60.0"})
	client := NewClient(srv.URL, "BTCUSDT", time.Second)

	closes, err := client.DailyCloses(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 50, 60}, closes)
}

func TestDailyClosesEmptyIsFailure(t *testing.T) {
	srv := newFakeBinance(t, "100", nil)
	client := NewClient(srv.URL, "BTCUSDT", time.Second)

	_, err := client.DailyCloses(context.Background(), 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
}

func TestMayerMultiple(t *testing.T) {
	// Mean close of 50 against a spot price of 100 gives a multiple of 2.
	srv := newFakeBinance(t, "100", []string{"40.0", "50.0", "60.0"})
	client := NewClient(srv.URL, "BTCUSDT", time.Second)

	mayer, err := client.MayerMultiple(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, mayer.Price)
	assert.InDelta(t, 50.0, mayer.SMA200, 1e-9)
	assert.InDelta(t, 2.0, mayer.Multiple, 1e-9)
}
