package config

import (
	"time"

	"github.com/spf13/viper"
	"sync"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("symbol", "SYMBOL")
		viper.BindEnv("poll_interval", "POLL_INTERVAL")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("binance_api_url", "BINANCE_API_URL")
		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")

		viper.SetDefault("symbol", "BTCUSDT")
		viper.SetDefault("poll_interval", "5s")
		viper.SetDefault("db_path", "alerts.db")
		viper.SetDefault("binance_api_url", "https://api.binance.com")
		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}
