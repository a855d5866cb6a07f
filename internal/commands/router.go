package commands

import (
	"context"

	"btc-alertme-bot/internal/price"
	"btc-alertme-bot/internal/telegram"
	"btc-alertme-bot/internal/types"
	"btc-alertme-bot/lib/helpers"
	"btc-alertme-bot/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// PriceSource is the market-data surface the commands need.
type PriceSource interface {
	Symbol() string
	CurrentPrice(ctx context.Context) (float64, error)
	DailyCloses(ctx context.Context, n int) ([]float64, error)
	MayerMultiple(ctx context.Context) (price.Mayer, error)
}

// Store is the subset of the database used by command handlers.
type Store interface {
	InsertAlert(chatID int64, alertType string, percentChange float64, setTime int64, initialPrice float64) (int64, error)
	DeleteAlertsByChatID(chatID int64) error
	DeleteAlertsByChatIDAndKind(chatID int64, alertType string) error
	GetAlertsByChatID(chatID int64) ([]types.Alert, error)
	GetPricesSince(timestamp int64) ([]types.PriceSample, error)
}

// PhotoSender delivers chart images; replies stay on the text path.
type PhotoSender interface {
	SendPhoto(p telegram.Photo) error
}

// Router maps inbound commands to store mutations or read-only queries. It
// holds no per-update state, so concurrent updates are safe.
type Router struct {
	store  Store
	prices PriceSource
	photos PhotoSender
	charts *chartCache
}

func NewRouter(store Store, prices PriceSource, photos PhotoSender) *Router {
	return &Router{
		store:  store,
		prices: prices,
		photos: photos,
		charts: newChartCache(),
	}
}

// HandleUpdate processes one inbound message and returns the reply text,
// already MarkdownV2 escaped. An empty reply means the handler responded
// through another channel (photo) or there is nothing to say.
func (r *Router) HandleUpdate(ctx context.Context, u tgbotapi.Update) string {
	if u.Message == nil {
		return ""
	}

	chatID := u.Message.Chat.ID
	args := u.Message.CommandArguments()
	log.Debugf("received command: %s", u.Message.Command())

	switch u.Message.Command() {
	case "start", "help":
		return helpText()
	case "alerta":
		return r.CommandCreateAlert(ctx, chatID, args, types.KindNormal)
	case "alert_midnight":
		return r.CommandCreateAlert(ctx, chatID, args, types.KindMidnight)
	case "cancelar_alerta":
		return r.CommandCancelAlert(chatID)
	case "alertas":
		return r.CommandListAlerts(chatID)
	case "preco":
		return r.CommandPrice(ctx)
	case "mayer":
		return r.CommandMayer(ctx)
	case "grafico":
		return r.CommandChart(ctx, chatID, u.Message.MessageID, args)
	default:
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Unknown command. Send /help to see what I understand."))
	}
}

func helpText() string {
	return helpers.EscapeMarkdownV2(translation.Translate("👋 Hello! Available commands:\n" +
		"📌 /alerta <percent> - alert once when the price moves that much from now\n" +
		"🕛 /alert_midnight <percent> - daily alert measured from local midnight\n" +
		"❌ /cancelar_alerta - cancel your alerts\n" +
		"🔔 /alertas - list your active alerts\n" +
		"📈 /preco - current Bitcoin price\n" +
		"📊 /mayer - Mayer Multiple\n" +
		"📉 /grafico <days> - price chart"))
}
