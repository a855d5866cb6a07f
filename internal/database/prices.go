package database

import (
	"fmt"

	"btc-alertme-bot/internal/types"
)

// InsertPriceSample appends one spot price reading to the history.
func (s *Store) InsertPriceSample(price float64, timestamp int64) error {
	query := `INSERT INTO prices (price, timestamp) VALUES (?, ?);`
	if _, err := s.db.Exec(query, price, timestamp); err != nil {
		return fmt.Errorf("failed to insert price sample: %w", err)
	}
	return nil
}

// GetPricesSince returns recorded samples at or after the given epoch
// second, oldest first.
func (s *Store) GetPricesSince(timestamp int64) ([]types.PriceSample, error) {
	query := `SELECT price, timestamp FROM prices WHERE timestamp >= ? ORDER BY timestamp ASC;`

	rows, err := s.db.Query(query, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var samples []types.PriceSample
	for rows.Next() {
		var sample types.PriceSample
		if err := rows.Scan(&sample.Price, &sample.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}
