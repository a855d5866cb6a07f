package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"btc-alertme-bot/config"
	"btc-alertme-bot/internal/alert"
	"btc-alertme-bot/internal/commands"
	"btc-alertme-bot/internal/database"
	"btc-alertme-bot/internal/price"
	"btc-alertme-bot/internal/telegram"
	"btc-alertme-bot/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/leonelquinteros/gotext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

type BotMetrics struct {
	CommandsProcessed  prometheus.Counter
	MessagesHandled    prometheus.Counter
	TicksTotal         prometheus.Counter
	PriceFetchFailures prometheus.Counter
	AlertsFired        prometheus.Counter
	ActiveAlerts       prometheus.Gauge
}

var (
	metrics = NewBotMetrics()
)

func init() {
	config.InitConfig()
	setupLogging()
}

func NewBotMetrics() *BotMetrics {
	metrics := &BotMetrics{
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btcalertme",
			Subsystem: "telegram_bot",
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btcalertme",
			Subsystem: "telegram_bot",
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btcalertme",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "The total number of alert evaluation passes",
		}),
		PriceFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btcalertme",
			Subsystem: "engine",
			Name:      "price_fetch_failures",
			Help:      "The total number of skipped ticks due to price fetch failures",
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btcalertme",
			Subsystem: "engine",
			Name:      "alerts_fired",
			Help:      "The total number of delivered alert notifications",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "btcalertme",
			Subsystem: "engine",
			Name:      "alerts_active",
			Help:      "The current number of stored alerts",
		}),
	}

	prometheus.MustRegister(metrics.CommandsProcessed)
	prometheus.MustRegister(metrics.MessagesHandled)
	prometheus.MustRegister(metrics.TicksTotal)
	prometheus.MustRegister(metrics.PriceFetchFailures)
	prometheus.MustRegister(metrics.AlertsFired)
	prometheus.MustRegister(metrics.ActiveAlerts)

	return metrics
}

func main() {
	gotext.Configure("locales", strings.ToLower(config.GetString("lang")), "default")
	log.Infof("Translations configured for language %q", translation.GetLanguage())

	token := config.GetString("telegram_bot_token")
	if token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not set")
	}

	store, err := database.NewStore(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	LoadMetricsFromDB(store)

	prices := price.NewClient(
		config.GetString("binance_api_url"),
		config.GetString("symbol"),
		10*time.Second,
	)

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          token,
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := alert.NewEngine(store, prices, bot, config.GetDuration("poll_interval"), &alert.Metrics{
		Ticks:         metrics.TicksTotal,
		FetchFailures: metrics.PriceFetchFailures,
		AlertsFired:   metrics.AlertsFired,
		ActiveAlerts:  metrics.ActiveAlerts,
	})
	go engine.Run(ctx)

	router := commands.NewRouter(store, prices, bot)

	updates, err := bot.GetUpdatesChannel()
	if err != nil {
		log.Fatalf("Failed to get updates channel: %v", err)
	}

	go handleUpdates(ctx, router, bot, updates)

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			SaveMetricsToDB(store)
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		cancel()
		SaveMetricsToDB(store)
		log.Println("Metrics saved, shutting down...")
		os.Exit(0)
	}()

	if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
		log.Fatalf("Failed to start metrics and health server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.ErrorLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting telegram bot...")
}

func handleUpdates(ctx context.Context, router *commands.Router, bot *telegram.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		// Non-command text still gets a reply (the router's unknown-command
		// hint); updates with no text at all are dropped.
		if update.Message == nil || update.Message.Text == "" {
			log.Debug("Received update without message text")
			continue
		}

		metrics.MessagesHandled.Inc()

		// Each command runs on its own goroutine so a slow price fetch
		// never blocks the update stream.
		go handleCommand(ctx, router, bot, update)
	}
}

func handleCommand(ctx context.Context, router *commands.Router, bot *telegram.Bot, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	text := router.HandleUpdate(ctx, update)
	if text == "" {
		return
	}

	err := bot.SendMessage(telegram.Message{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		MessageID: update.Message.MessageID,
	})

	if err != nil {
		log.Errorf("Failed to send message: %v", err)
	} else {
		metrics.CommandsProcessed.Inc()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

func LoadMetricsFromDB(store *database.Store) {
	commandsProcessed, _ := store.GetMetric("commands_processed")
	messagesHandled, _ := store.GetMetric("messages_handled")
	ticksTotal, _ := store.GetMetric("ticks_total")
	priceFetchFailures, _ := store.GetMetric("price_fetch_failures")
	alertsFired, _ := store.GetMetric("alerts_fired")

	metrics.CommandsProcessed.Add(commandsProcessed)
	metrics.MessagesHandled.Add(messagesHandled)
	metrics.TicksTotal.Add(ticksTotal)
	metrics.PriceFetchFailures.Add(priceFetchFailures)
	metrics.AlertsFired.Add(alertsFired)

	if count, err := store.CountAlerts(); err == nil {
		metrics.ActiveAlerts.Set(float64(count))
	}

	log.Println("Metrics loaded from database.")
}

func SaveMetricsToDB(store *database.Store) {
	counters := map[string]prometheus.Collector{
		"commands_processed":   metrics.CommandsProcessed,
		"messages_handled":     metrics.MessagesHandled,
		"ticks_total":          metrics.TicksTotal,
		"price_fetch_failures": metrics.PriceFetchFailures,
		"alerts_fired":         metrics.AlertsFired,
	}

	for name, counter := range counters {
		if err := store.SaveMetric(name, GetMetricValue(counter)); err != nil {
			log.Errorf("Failed to persist metric %s: %v", name, err)
		}
	}

	log.Println("Metrics saved to database.")
}

func GetMetricValue(metric prometheus.Collector) float64 {
	var metricValue float64
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Printf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		metricValue = metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		metricValue = metricProto.Gauge.GetValue()
	}
	return metricValue
}
