package database

import (
	"fmt"

	"btc-alertme-bot/internal/types"

	log "github.com/sirupsen/logrus"
)

// InsertAlert saves an alert and returns its assigned id.
func (s *Store) InsertAlert(chatID int64, alertType string, percentChange float64, setTime int64, initialPrice float64) (int64, error) {
	query := `
	INSERT INTO alerts (chat_id, alert_type, percent_change, set_time, initial_price)
	VALUES (?, ?, ?, ?, ?);`

	res, err := s.db.Exec(query, chatID, alertType, percentChange, setTime, initialPrice)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read alert id: %w", err)
	}

	log.Debugf("alert inserted: id=%d chat_id=%d type=%s percent=%.2f initial=%.2f", id, chatID, alertType, percentChange, initialPrice)
	return id, nil
}

// GetAllAlerts fetches every alert for one evaluation pass.
func (s *Store) GetAllAlerts() ([]types.Alert, error) {
	query := `SELECT id, chat_id, alert_type, percent_change, set_time, initial_price, created_at FROM alerts;`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var alert types.Alert
		if err := rows.Scan(&alert.ID, &alert.ChatID, &alert.AlertType, &alert.PercentChange, &alert.SetTime, &alert.InitialPrice, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// GetAlertsByChatID fetches all alerts owned by one chat.
func (s *Store) GetAlertsByChatID(chatID int64) ([]types.Alert, error) {
	query := `SELECT id, chat_id, alert_type, percent_change, set_time, initial_price, created_at FROM alerts WHERE chat_id = ?;`

	rows, err := s.db.Query(query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for chat ID %d: %w", chatID, err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var alert types.Alert
		if err := rows.Scan(&alert.ID, &alert.ChatID, &alert.AlertType, &alert.PercentChange, &alert.SetTime, &alert.InitialPrice, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// DeleteAlert removes one alert. Deleting an id that is already gone is a
// no-op, so a fired alert and a concurrent cancellation cannot fault.
func (s *Store) DeleteAlert(alertID int64) error {
	query := `DELETE FROM alerts WHERE id = ?;`
	if _, err := s.db.Exec(query, alertID); err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

// DeleteAlertsByChatID removes every alert owned by the chat.
func (s *Store) DeleteAlertsByChatID(chatID int64) error {
	query := `DELETE FROM alerts WHERE chat_id = ?;`
	if _, err := s.db.Exec(query, chatID); err != nil {
		return fmt.Errorf("failed to delete alerts for chat ID %d: %w", chatID, err)
	}
	return nil
}

// DeleteAlertsByChatIDAndKind removes the chat's alerts of one kind. Used to
// enforce the one-alert-per-kind policy before an insert.
func (s *Store) DeleteAlertsByChatIDAndKind(chatID int64, alertType string) error {
	query := `DELETE FROM alerts WHERE chat_id = ? AND alert_type = ?;`
	if _, err := s.db.Exec(query, chatID, alertType); err != nil {
		return fmt.Errorf("failed to delete %s alerts for chat ID %d: %w", alertType, chatID, err)
	}
	return nil
}

// RebaseAlert replaces the anchor timestamp and reference price of an
// existing row in place.
func (s *Store) RebaseAlert(alertID int64, setTime int64, initialPrice float64) error {
	query := `UPDATE alerts SET set_time = ?, initial_price = ? WHERE id = ?;`
	if _, err := s.db.Exec(query, setTime, initialPrice, alertID); err != nil {
		return fmt.Errorf("failed to rebase alert %d: %w", alertID, err)
	}
	return nil
}

// CountAlerts reports the number of active alerts.
func (s *Store) CountAlerts() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}
