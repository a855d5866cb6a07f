package commands

import (
	"context"
	"fmt"

	"btc-alertme-bot/lib/helpers"
	"btc-alertme-bot/lib/translation"

	log "github.com/sirupsen/logrus"
)

// CommandMayer reports the Mayer Multiple: spot price over the 200-day
// simple moving average of daily closes.
func (r *Router) CommandMayer(ctx context.Context) string {
	mayer, err := r.prices.MayerMultiple(ctx)
	if err != nil {
		log.Errorf("command /mayer failed: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not compute the Mayer Multiple. Please try again."))
	}

	return fmt.Sprintf(
		"📊 *Mayer Multiple*: %s\n💰 %s: *$%s*\n📉 %s: *$%s*",
		helpers.EscapeMarkdownV2(fmt.Sprintf("%.2f", mayer.Multiple)),
		helpers.EscapeMarkdownV2(translation.Translate("Current price")),
		helpers.FormatPriceUS(mayer.Price, true),
		helpers.EscapeMarkdownV2(translation.Translate("200d moving average")),
		helpers.FormatPriceUS(mayer.SMA200, true),
	)
}
