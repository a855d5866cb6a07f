package commands

import (
	"context"
	"fmt"

	"btc-alertme-bot/lib/helpers"
	"btc-alertme-bot/lib/translation"

	log "github.com/sirupsen/logrus"
)

// CommandPrice reports the current spot price.
func (r *Router) CommandPrice(ctx context.Context) string {
	currentPrice, err := r.prices.CurrentPrice(ctx)
	if err != nil {
		log.Errorf("command /preco failed: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Could not fetch the Bitcoin price. Please try again."))
	}

	return fmt.Sprintf(
		"📈 %s *$%s*",
		helpers.EscapeMarkdownV2(translation.Translate("The current Bitcoin price is")),
		helpers.FormatPriceUS(currentPrice, true),
	)
}
