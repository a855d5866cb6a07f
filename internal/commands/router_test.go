package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"btc-alertme-bot/internal/alert"
	"btc-alertme-bot/internal/database"
	"btc-alertme-bot/internal/price"
	"btc-alertme-bot/internal/telegram"
	"btc-alertme-bot/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	symbol    string
	price     float64
	priceErr  error
	closes    []float64
	closesErr error
	mayer     price.Mayer
	mayerErr  error
}

func (f *fakePrices) Symbol() string {
	if f.symbol == "" {
		return "BTCUSDT"
	}
	return f.symbol
}

func (f *fakePrices) CurrentPrice(_ context.Context) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price, nil
}

func (f *fakePrices) DailyCloses(_ context.Context, _ int) ([]float64, error) {
	if f.closesErr != nil {
		return nil, f.closesErr
	}
	return f.closes, nil
}

func (f *fakePrices) MayerMultiple(_ context.Context) (price.Mayer, error) {
	if f.mayerErr != nil {
		return price.Mayer{}, f.mayerErr
	}
	return f.mayer, nil
}

type fakePhotos struct {
	photos []telegram.Photo
}

func (f *fakePhotos) SendPhoto(p telegram.Photo) error {
	f.photos = append(f.photos, p)
	return nil
}

func newTestRouter(t *testing.T, prices *fakePrices) (*Router, *database.Store, *fakePhotos) {
	t.Helper()

	store, err := database.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	photos := &fakePhotos{}
	return NewRouter(store, prices, photos), store, photos
}

func makeUpdate(text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.Index(text, " "); i >= 0 {
		cmdLen = i
	}

	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 7,
			Text:      text,
			Chat:      &tgbotapi.Chat{ID: 42},
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: cmdLen},
			},
		},
	}
}

func TestHelpCommands(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{price: 97000})

	for _, cmd := range []string{"/start", "/help"} {
		reply := router.HandleUpdate(context.Background(), makeUpdate(cmd))
		assert.Contains(t, reply, "alerta", "command %s", cmd)
		assert.Contains(t, reply, "mayer", "command %s", cmd)
	}
}

func TestUnknownCommand(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{price: 97000})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/frobnicate"))
	assert.Contains(t, reply, "Unknown command")
}

func TestPlainTextGetsUnknownCommandHint(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{price: 97000})

	// No bot_command entity, just conversational text.
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 7,
			Text:      "hello there",
			Chat:      &tgbotapi.Chat{ID: 42},
		},
	}

	reply := router.HandleUpdate(context.Background(), update)
	assert.Contains(t, reply, "Unknown command")
}

func TestCreateAlertRejectsBadPercent(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "non-numeric", text: "/alerta abc"},
		{name: "missing", text: "/alerta"},
		{name: "negative", text: "/alerta -5"},
		{name: "zero", text: "/alerta 0"},
		{name: "nan", text: "/alerta NaN"},
		{name: "midnight non-numeric", text: "/alert_midnight abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store, _ := newTestRouter(t, &fakePrices{price: 97000})

			reply := router.HandleUpdate(context.Background(), makeUpdate(tt.text))
			assert.Contains(t, reply, "Usage")

			alerts, err := store.GetAllAlerts()
			require.NoError(t, err)
			assert.Empty(t, alerts, "rejected command must not mutate the store")
		})
	}
}

func TestCreateAlertStoresReference(t *testing.T) {
	router, store, _ := newTestRouter(t, &fakePrices{price: 95000})

	before := time.Now().Unix()
	reply := router.HandleUpdate(context.Background(), makeUpdate("/alerta 5"))
	assert.Contains(t, reply, "✅")

	alerts, err := store.GetAllAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, int64(42), a.ChatID)
	assert.Equal(t, types.KindNormal, a.AlertType)
	assert.Equal(t, 5.0, a.PercentChange)
	assert.Equal(t, 95000.0, a.InitialPrice)
	assert.GreaterOrEqual(t, a.SetTime, before)
}

func TestCreateMidnightAlertAnchorsAtMidnight(t *testing.T) {
	router, store, _ := newTestRouter(t, &fakePrices{price: 95000})

	router.HandleUpdate(context.Background(), makeUpdate("/alert_midnight 3"))

	alerts, err := store.GetAllAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, types.KindMidnight, a.AlertType)
	assert.Equal(t, alert.MidnightBefore(time.Now()).Unix(), a.SetTime)
	assert.Equal(t, 95000.0, a.InitialPrice)
}

func TestCreateAlertReplacesExistingOfSameKind(t *testing.T) {
	router, store, _ := newTestRouter(t, &fakePrices{price: 95000})

	router.HandleUpdate(context.Background(), makeUpdate("/alerta 5"))
	router.HandleUpdate(context.Background(), makeUpdate("/alerta 10"))
	router.HandleUpdate(context.Background(), makeUpdate("/alert_midnight 3"))

	alerts, err := store.GetAllAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 2, "one alert per kind per chat")

	byKind := map[string]float64{}
	for _, a := range alerts {
		byKind[a.AlertType] = a.PercentChange
	}
	assert.Equal(t, 10.0, byKind[types.KindNormal])
	assert.Equal(t, 3.0, byKind[types.KindMidnight])
}

func TestCreateAlertFailsVisiblyWhenPriceUnavailable(t *testing.T) {
	router, store, _ := newTestRouter(t, &fakePrices{priceErr: errors.New("binance down")})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/alerta 5"))
	assert.Contains(t, reply, "⚠️")

	alerts, err := store.GetAllAlerts()
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestCancelAlertIsIdempotent(t *testing.T) {
	router, store, _ := newTestRouter(t, &fakePrices{price: 95000})

	// Cancelling with no alerts still reports success.
	reply := router.HandleUpdate(context.Background(), makeUpdate("/cancelar_alerta"))
	assert.Contains(t, reply, "✅")

	router.HandleUpdate(context.Background(), makeUpdate("/alerta 5"))
	router.HandleUpdate(context.Background(), makeUpdate("/alert_midnight 3"))

	reply = router.HandleUpdate(context.Background(), makeUpdate("/cancelar_alerta"))
	assert.Contains(t, reply, "✅")

	alerts, err := store.GetAllAlerts()
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestListAlerts(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{price: 95000})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/alertas"))
	assert.Contains(t, reply, "no active alerts")

	router.HandleUpdate(context.Background(), makeUpdate("/alerta 5"))
	router.HandleUpdate(context.Background(), makeUpdate("/alert_midnight 3"))

	reply = router.HandleUpdate(context.Background(), makeUpdate("/alertas"))
	assert.Contains(t, reply, "midnight")
	assert.Contains(t, reply, "one\\-shot")
}

func TestPriceCommand(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{price: 97123.4})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/preco"))
	assert.Contains(t, reply, "97,123")
}

func TestPriceCommandUnavailable(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{priceErr: errors.New("binance down")})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/preco"))
	assert.Contains(t, reply, "⚠️")
}

func TestMayerCommand(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{
		mayer: price.Mayer{Price: 100, SMA200: 50, Multiple: 2},
	})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/mayer"))
	assert.Contains(t, reply, "Mayer Multiple")
	assert.Contains(t, reply, "2\\.00")
}

func TestMayerCommandUnavailable(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{mayerErr: errors.New("no history")})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/mayer"))
	assert.Contains(t, reply, "⚠️")
}

func TestChartCommand(t *testing.T) {
	router, _, photos := newTestRouter(t, &fakePrices{closes: []float64{40, 50, 60}})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/grafico 3"))
	assert.Empty(t, reply, "chart replies travel on the photo path")
	require.Len(t, photos.photos, 1)
	assert.NotEmpty(t, photos.photos[0].Data)
	assert.Equal(t, int64(42), photos.photos[0].ChatID)

	// A repeated request inside the TTL is served from the cache.
	router.HandleUpdate(context.Background(), makeUpdate("/grafico 3"))
	require.Len(t, photos.photos, 2)
	assert.Equal(t, photos.photos[0].Data, photos.photos[1].Data)
}

func TestChartSeriesComputesMovingAverage(t *testing.T) {
	// Enough history before the plotted window for a full 200-day mean at
	// every plotted point.
	closes := make([]float64, price.SMADays+6)
	for i := range closes {
		closes[i] = 50
	}
	router, _, _ := newTestRouter(t, &fakePrices{closes: closes})

	times, values, sma, errText := router.chartSeries(context.Background(), 7)
	assert.Empty(t, errText)
	require.Len(t, times, 7)
	require.Len(t, values, 7)
	require.Len(t, sma, 7)
	for i := range sma {
		assert.InDelta(t, 50.0, sma[i], 1e-9, "point %d", i)
	}
}

func TestChartSeriesSkipsOverlayOnShortHistory(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakePrices{
		closes: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	_, values, sma, errText := router.chartSeries(context.Background(), 7)
	assert.Empty(t, errText)
	assert.Equal(t, []float64{40, 50, 60, 70, 80, 90, 100}, values)
	assert.Nil(t, sma, "no overlay without a full moving-average window")
}

func TestChartCommandRendersWithOverlay(t *testing.T) {
	closes := make([]float64, price.SMADays+6)
	for i := range closes {
		closes[i] = 40000 + float64(i)*10
	}
	router, _, photos := newTestRouter(t, &fakePrices{closes: closes})

	reply := router.HandleUpdate(context.Background(), makeUpdate("/grafico 7"))
	assert.Empty(t, reply)
	require.Len(t, photos.photos, 1)
	assert.NotEmpty(t, photos.photos[0].Data)
}

func TestChartCommandRejectsBadRange(t *testing.T) {
	router, _, photos := newTestRouter(t, &fakePrices{closes: []float64{40, 50, 60}})

	for _, text := range []string{"/grafico abc", "/grafico 0", "/grafico 9999"} {
		reply := router.HandleUpdate(context.Background(), makeUpdate(text))
		assert.Contains(t, reply, "Usage", "command %s", text)
	}
	assert.Empty(t, photos.photos)
}
