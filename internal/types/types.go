package types

// Alert kinds as stored in the alert_type column.
const (
	KindNormal   = "normal"   // fires once, then removed
	KindMidnight = "midnight" // recurring, re-anchored daily at local midnight
)

type Alert struct {
	ID            int64   `json:"id"`
	ChatID        int64   `json:"chat_id"`
	AlertType     string  `json:"alert_type"`
	PercentChange float64 `json:"percent_change"`
	SetTime       int64   `json:"set_time"`
	InitialPrice  float64 `json:"initial_price"`
	CreatedAt     string  `json:"created_at"`
}

// PriceSample is one recorded spot price reading.
type PriceSample struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}
