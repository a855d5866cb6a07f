package commands

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"btc-alertme-bot/internal/alert"
	"btc-alertme-bot/internal/types"
	"btc-alertme-bot/lib/helpers"
	"btc-alertme-bot/lib/translation"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CommandCreateAlert validates the percent argument, captures the current
// price as reference and stores the alert. Nothing is written when
// validation or the price fetch fails.
func (r *Router) CommandCreateAlert(ctx context.Context, chatID int64, args string, kind string) string {
	percent, err := parsePercentArg(args)
	if err != nil {
		log.Debugf("rejected alert argument %q: %v", args, err)
		if kind == types.KindMidnight {
			return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Usage: /alert_midnight <percent>"))
		}
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Usage: /alerta <percent>"))
	}

	currentPrice, err := r.prices.CurrentPrice(ctx)
	if err != nil {
		log.Errorf("alert creation aborted, price fetch failed: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not fetch the Bitcoin price. Please try again."))
	}

	now := time.Now()
	setTime := now.Unix()
	if kind == types.KindMidnight {
		setTime = alert.MidnightBefore(now).Unix()
	}

	// A chat holds at most one alert per kind; a new one replaces it.
	if err := r.store.DeleteAlertsByChatIDAndKind(chatID, kind); err != nil {
		log.Errorf("failed to replace existing %s alert: %v", kind, err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not save the alert. Please try again."))
	}

	if _, err := r.store.InsertAlert(chatID, kind, percent, setTime, currentPrice); err != nil {
		log.Errorf("failed to insert alert: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not save the alert. Please try again."))
	}

	if kind == types.KindMidnight {
		return helpers.EscapeMarkdownV2(fmt.Sprintf(
			translation.Translate("✅ Midnight alert set for %.1f%% change, measured from 00:00 each day."), percent))
	}
	return helpers.EscapeMarkdownV2(fmt.Sprintf(
		translation.Translate("✅ Alert set for %.1f%% change from $%s."), percent, helpers.FormatPriceUS(currentPrice, false)))
}

// CommandCancelAlert removes every alert the chat owns. Cancelling with no
// alerts is still a success.
func (r *Router) CommandCancelAlert(chatID int64) string {
	if err := r.store.DeleteAlertsByChatID(chatID); err != nil {
		log.Errorf("failed to cancel alerts for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not cancel your alerts. Please try again."))
	}
	return helpers.EscapeMarkdownV2(translation.Translate("✅ Your alerts were removed."))
}

// CommandListAlerts renders the chat's active alerts with their age.
func (r *Router) CommandListAlerts(chatID int64) string {
	alerts, err := r.store.GetAlertsByChatID(chatID)
	if err != nil {
		log.Errorf("failed to fetch alerts for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not fetch your alerts. Please try again."))
	}

	if len(alerts) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("You have no active alerts."))
	}

	var list strings.Builder
	list.WriteString(helpers.EscapeMarkdownV2(translation.Translate("🔔 Your active alerts:")))
	for _, a := range alerts {
		kind := translation.Translate("one-shot")
		if a.AlertType == types.KindMidnight {
			kind = translation.Translate("midnight")
		}
		list.WriteString(fmt.Sprintf(
			"\n▫️ %s *%s%%* \\(%s $%s, %s\\)",
			helpers.EscapeMarkdownV2(kind),
			helpers.EscapeMarkdownV2(strconv.FormatFloat(a.PercentChange, 'f', -1, 64)),
			helpers.EscapeMarkdownV2(translation.Translate("from")),
			helpers.FormatPriceUS(a.InitialPrice, true),
			helpers.EscapeMarkdownV2(formatAge(a.CreatedAt)),
		))
	}

	return list.String()
}

// formatAge turns the sqlite CURRENT_TIMESTAMP string into a relative age.
func formatAge(createdAt string) string {
	t, err := time.Parse("2006-01-02 15:04:05", createdAt)
	if err != nil {
		return createdAt
	}
	return humanize.Time(t.UTC())
}

// parsePercentArg extracts a strictly positive percent from the first
// argument token.
func parsePercentArg(args string) (float64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, errors.New("missing percent argument")
	}

	percent, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid percent argument %q", fields[0])
	}
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent <= 0 {
		return 0, errors.Errorf("percent argument out of range: %v", percent)
	}

	return percent, nil
}
