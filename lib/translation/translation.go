package translation

import (
	"github.com/leonelquinteros/gotext"
)

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

// Translate resolves a message through gotext; without a matching locale the
// message id itself is returned, so ids double as the English text.
func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
