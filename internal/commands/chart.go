package commands

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"btc-alertme-bot/internal/price"
	"btc-alertme-bot/internal/telegram"
	"btc-alertme-bot/lib/helpers"
	"btc-alertme-bot/lib/translation"

	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	defaultChartDays = 7
	maxChartDays     = 365
	chartCacheTTL    = 5 * time.Minute
)

var (
	chartBackground = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	chartText       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	chartLine       = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	chartFill       = drawing.Color{R: 0, G: 122, B: 255, A: 25}
	chartSMALine    = drawing.Color{R: 255, G: 149, B: 0, A: 255}
)

// CommandChart renders a price chart and sends it as a photo. One day plots
// the locally recorded samples, anything longer plots daily closes. The
// reply text is empty unless something went wrong.
func (r *Router) CommandChart(ctx context.Context, chatID int64, messageID int, args string) string {
	days := defaultChartDays
	if fields := strings.Fields(args); len(fields) > 0 {
		parsed, err := strconv.Atoi(fields[0])
		if err != nil || parsed < 1 || parsed > maxChartDays {
			return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Usage: /grafico <days> (1-365)"))
		}
		days = parsed
	}

	cacheKey := strconv.Itoa(days)
	if item, found := r.charts.get(cacheKey); found {
		log.Debugf("returning cached chart for %d days", days)
		r.sendChart(chatID, messageID, item.ChartData, item.Caption)
		return ""
	}

	times, values, sma, errText := r.chartSeries(ctx, days)
	if errText != "" {
		return errText
	}

	chartData, err := renderChart(r.prices.Symbol(), days, times, values, sma)
	if err != nil {
		log.Errorf("failed to render chart: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not render the chart. Please try again."))
	}

	caption := helpers.EscapeMarkdownV2(fmt.Sprintf(
		translation.Translate("%s price, last %d day(s)"), r.prices.Symbol(), days))

	r.charts.set(cacheKey, chartData, caption, chartCacheTTL)
	r.sendChart(chatID, messageID, chartData, caption)
	return ""
}

// chartSeries collects the points to plot. Multi-day charts also fetch the
// history needed to overlay the 200-day moving average; the overlay is
// omitted when the exchange returns too little history to fill the window.
func (r *Router) chartSeries(ctx context.Context, days int) ([]time.Time, []float64, []float64, string) {
	if days == 1 {
		samples, err := r.store.GetPricesSince(time.Now().Add(-24 * time.Hour).Unix())
		if err != nil {
			log.Errorf("failed to load recorded prices: %v", err)
			return nil, nil, nil, helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not load the price history. Please try again."))
		}
		if len(samples) < 2 {
			return nil, nil, nil, helpers.EscapeMarkdownV2(translation.Translate("Not enough recorded data yet, try again in a few minutes."))
		}

		times := make([]time.Time, 0, len(samples))
		values := make([]float64, 0, len(samples))
		for _, sample := range samples {
			times = append(times, time.Unix(sample.Timestamp, 0))
			values = append(values, sample.Price)
		}
		return times, values, nil, ""
	}

	closes, err := r.prices.DailyCloses(ctx, days+price.SMADays-1)
	if err != nil {
		log.Errorf("failed to fetch daily closes: %v", err)
		return nil, nil, nil, helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not fetch the price history. Please try again."))
	}

	values := closes
	var sma []float64
	if len(closes) > days {
		head := len(closes) - days
		values = closes[head:]

		if head >= price.SMADays-1 {
			sma = make([]float64, 0, days)
			for i := 0; i < days; i++ {
				end := head + i + 1
				window := closes[end-price.SMADays : end]
				var sum float64
				for _, c := range window {
					sum += c
				}
				sma = append(sma, sum/float64(len(window)))
			}
		}
	}

	// Klines carry no timestamps here; anchor the series so the last
	// close lands on today.
	now := time.Now()
	times := make([]time.Time, 0, len(values))
	for i := range values {
		times = append(times, now.AddDate(0, 0, i-len(values)+1))
	}
	return times, values, sma, ""
}

func (r *Router) sendChart(chatID int64, messageID int, data []byte, caption string) {
	err := r.photos.SendPhoto(telegram.Photo{
		ChatID:    chatID,
		MessageID: messageID,
		Name:      "chart.png",
		Data:      data,
		Caption:   caption,
	})
	if err != nil {
		log.Errorf("error sending chart: %v", err)
	}
}

func renderChart(symbol string, days int, times []time.Time, values, sma []float64) ([]byte, error) {
	minValue, maxValue := getMinMax(append(append([]float64{}, values...), sma...))
	padding := (maxValue - minValue) * 0.1
	if padding == 0 {
		padding = 1
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s %d day price chart", symbol, days),
		Width:  1200,
		Height: 500,
		Background: chart.Style{
			FillColor: chartBackground,
			FontColor: chartText,
		},
		Canvas: chart.Style{
			FillColor: chartBackground,
		},
		XAxis: chart.XAxis{
			Style: chart.Style{FontColor: chartText},
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: chartText},
			Range: &chart.ContinuousRange{
				Min: minValue - padding,
				Max: maxValue + padding,
			},
			ValueFormatter: func(v interface{}) string {
				if value, ok := v.(float64); ok {
					return helpers.FormatPriceUS(value, false)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: symbol,
				Style: chart.Style{
					StrokeColor: chartLine,
					FillColor:   chartFill,
				},
				XValues: times,
				YValues: values,
			},
		},
	}

	if len(sma) == len(values) && len(sma) > 0 {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name: "SMA 200",
			Style: chart.Style{
				StrokeColor: chartSMALine,
			},
			XValues: times,
			YValues: sma,
		})
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getMinMax(values []float64) (min, max float64) {
	if len(values) == 0 {
		return 0, 1
	}

	min, max = values[0], values[0]
	for _, value := range values {
		if value < min {
			min = value
		}
		if value > max {
			max = value
		}
	}
	return min, max
}
