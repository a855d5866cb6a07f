package alert

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"btc-alertme-bot/internal/telegram"
	"btc-alertme-bot/internal/types"
	"btc-alertme-bot/lib/helpers"
	"btc-alertme-bot/lib/translation"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// PriceSource provides the spot price for the tracked pair.
type PriceSource interface {
	CurrentPrice(ctx context.Context) (float64, error)
}

// Notifier delivers an alert message to a chat.
type Notifier interface {
	SendMessage(m telegram.Message) error
}

// Store is the subset of the database used by the evaluation loop.
type Store interface {
	GetAllAlerts() ([]types.Alert, error)
	DeleteAlert(alertID int64) error
	RebaseAlert(alertID int64, setTime int64, initialPrice float64) error
	InsertPriceSample(price float64, timestamp int64) error
}

// Metrics are engine-side instrumentation hooks. The struct may be nil.
type Metrics struct {
	Ticks         prometheus.Counter
	FetchFailures prometheus.Counter
	AlertsFired   prometheus.Counter
	ActiveAlerts  prometheus.Gauge
}

// Engine evaluates alerts against the live price on a fixed period.
type Engine struct {
	store    Store
	prices   PriceSource
	notifier Notifier
	interval time.Duration
	metrics  *Metrics

	// now is replaceable in tests to cross midnight boundaries on demand.
	now func() time.Time

	// mu makes ticks non-reentrant.
	mu sync.Mutex
}

func NewEngine(store Store, prices PriceSource, notifier Notifier, interval time.Duration, metrics *Metrics) *Engine {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Engine{
		store:    store,
		prices:   prices,
		notifier: notifier,
		interval: interval,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run blocks, evaluating alerts every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Infof("alert engine started, interval %s", e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.Tick(ctx)

		select {
		case <-ctx.Done():
			log.Info("alert engine stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one evaluation pass. A failed price fetch skips the pass
// entirely; per-alert store or delivery failures only affect that alert.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic recovered in alert checker: %v", r)
		}
	}()

	if e.metrics != nil {
		e.metrics.Ticks.Inc()
	}

	now := e.now()

	currentPrice, err := e.prices.CurrentPrice(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.FetchFailures.Inc()
		}
		log.Errorf("skipping tick, price fetch failed: %v", err)
		return
	}

	if err := e.store.InsertPriceSample(currentPrice, now.Unix()); err != nil {
		log.Errorf("failed to record price sample: %v", err)
	}

	alerts, err := e.store.GetAllAlerts()
	if err != nil {
		log.Errorf("skipping tick, failed to fetch alerts: %v", err)
		return
	}

	active := len(alerts)
	for _, a := range alerts {
		if e.evaluate(a, currentPrice, now) {
			active--
		}
	}

	if e.metrics != nil {
		e.metrics.ActiveAlerts.Set(float64(active))
	}
}

// evaluate applies the per-kind policy to one alert and reports whether the
// alert was removed from the store.
func (e *Engine) evaluate(a types.Alert, currentPrice float64, now time.Time) bool {
	priceDiff := (currentPrice - a.InitialPrice) / a.InitialPrice * 100
	crossed := math.Abs(priceDiff) >= a.PercentChange

	switch a.AlertType {
	case types.KindNormal:
		if !crossed {
			return false
		}

		e.notify(a.ChatID, fmt.Sprintf(
			translation.Translate("🚨 *Price Alert*\n\nBitcoin moved *%s%%* since your reference price of *$%s*\nCurrent price: *$%s*"),
			helpers.FormatPercent(priceDiff),
			helpers.FormatPriceUS(a.InitialPrice, true),
			helpers.FormatPriceUS(currentPrice, true),
		))

		// The alert is removed whether or not delivery succeeded;
		// at-most-once beats a storm of repeats on a sustained move.
		if err := e.store.DeleteAlert(a.ID); err != nil {
			log.Errorf("failed to delete fired alert %d: %v", a.ID, err)
			return false
		}
		return true

	case types.KindMidnight:
		lastMidnight := MidnightBefore(now).Unix()
		if a.SetTime >= lastMidnight {
			// Already anchored to today, nothing to do until the
			// next boundary.
			return false
		}

		if crossed {
			e.notify(a.ChatID, fmt.Sprintf(
				translation.Translate("🕛 *Midnight Alert*\n\nBitcoin moved *%s%%* since midnight \\(*$%s*\\)\nCurrent price: *$%s*"),
				helpers.FormatPercent(priceDiff),
				helpers.FormatPriceUS(a.InitialPrice, true),
				helpers.FormatPriceUS(currentPrice, true),
			))
		}

		// Re-anchor to today's window even when nothing fired, so the
		// alert always measures change since the most recent midnight.
		if err := e.store.RebaseAlert(a.ID, lastMidnight, currentPrice); err != nil {
			log.Errorf("failed to rebase alert %d: %v", a.ID, err)
		}
		return false

	default:
		log.Errorf("alert %d has unknown type %q", a.ID, a.AlertType)
		return false
	}
}

func (e *Engine) notify(chatID int64, text string) {
	err := e.notifier.SendMessage(telegram.Message{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.Errorf("failed to deliver alert notification to chat %d: %v", chatID, err)
		return
	}

	if e.metrics != nil {
		e.metrics.AlertsFired.Inc()
	}
	log.Debugf("alert notification sent to chat %d", chatID)
}

// MidnightBefore returns the most recent local midnight at or before t.
// Command handlers use the same boundary when anchoring midnight alerts at
// creation time.
func MidnightBefore(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
