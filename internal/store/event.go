package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// EventRecord is one logged lifecycle event. Payload holds the event's
// full wire form; the indexed columns exist for querying.
type EventRecord struct {
	ID          int64           `json:"id"`
	IntentID    string          `json:"intent_id"`
	InstanceID  string          `json:"instance_id"`
	Phase       string          `json:"phase"`
	TimestampMs int64           `json:"timestamp_ms"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EventRepository provides append and query operations for the event log.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Append inserts one logged event.
func (r *EventRepository) Append(e *EventRecord) error {
	payload := e.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	result, err := r.db.Exec(
		`INSERT INTO events (intent_id, instance_id, phase, timestamp_ms, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		e.IntentID, e.InstanceID, e.Phase, e.TimestampMs, string(payload),
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// GetByIntentID retrieves the most recent events for a given intent,
// newest first, up to limit rows. A non-positive limit retrieves all.
func (r *EventRepository) GetByIntentID(intentID string, limit int) ([]EventRecord, error) {
	query := `SELECT id, intent_id, instance_id, phase, timestamp_ms, payload, created_at
		 FROM events WHERE intent_id = ? ORDER BY timestamp_ms DESC, id DESC`
	args := []any{intentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByInstanceID retrieves every logged event for one instance, oldest
// first, reconstructing its start/update/end history.
func (r *EventRepository) GetByInstanceID(instanceID string) ([]EventRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, intent_id, instance_id, phase, timestamp_ms, payload, created_at
		 FROM events WHERE instance_id = ? ORDER BY timestamp_ms ASC, id ASC`,
		instanceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteBefore removes logged events older than the given timestamp.
func (r *EventRepository) DeleteBefore(timestampMs int64) error {
	_, err := r.db.Exec(`DELETE FROM events WHERE timestamp_ms < ?`, timestampMs)
	return err
}

func scanEvents(rows *sql.Rows) ([]EventRecord, error) {
	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var payload string
		if err := rows.Scan(&e.ID, &e.IntentID, &e.InstanceID, &e.Phase, &e.TimestampMs, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
