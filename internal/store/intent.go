package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ConcurrencyScope controls how concurrency caps count an intent's
// instances.
type ConcurrencyScope string

const (
	// ScopePerHand counts instances per physical hand.
	ScopePerHand ConcurrencyScope = "per-hand"
	// ScopeGlobal counts instances across all hands.
	ScopeGlobal ConcurrencyScope = "global"
)

// Intent represents an intent definition stored in the database. Pattern
// holds the expression's serialized wire form; decoding it into an
// evaluable expression is the ingest layer's job.
type Intent struct {
	ID               string
	Pattern          json.RawMessage
	MinDurationMs    int64
	MaxGapMs         int64
	Group            string
	Priority         int
	ConcurrencyScope ConcurrencyScope
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IntentRepository provides CRUD operations for intents.
type IntentRepository struct {
	db *sql.DB
}

// Intents returns the intent repository for this store.
func (s *Store) Intents() *IntentRepository {
	return &IntentRepository{db: s.db}
}

// Create inserts a new intent into the database.
func (r *IntentRepository) Create(in *Intent) error {
	now := time.Now()
	in.CreatedAt = now
	in.UpdatedAt = now
	if in.ConcurrencyScope == "" {
		in.ConcurrencyScope = ScopeGlobal
	}

	enabled := 0
	if in.Enabled {
		enabled = 1
	}

	_, err := r.db.Exec(
		`INSERT INTO intents (id, pattern, min_duration_ms, max_gap_ms, res_group, priority, concurrency_scope, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, string(in.Pattern), in.MinDurationMs, in.MaxGapMs, in.Group, in.Priority, string(in.ConcurrencyScope), enabled, in.CreatedAt, in.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetByID retrieves an intent by its ID.
func (r *IntentRepository) GetByID(id string) (*Intent, error) {
	row := r.db.QueryRow(
		`SELECT id, pattern, min_duration_ms, max_gap_ms, res_group, priority, concurrency_scope, enabled, created_at, updated_at
		 FROM intents WHERE id = ?`,
		id,
	)

	in, err := scanIntent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

// List retrieves all intents from the database, oldest first so the
// configured evaluation order is stable.
func (r *IntentRepository) List() ([]*Intent, error) {
	rows, err := r.db.Query(
		`SELECT id, pattern, min_duration_ms, max_gap_ms, res_group, priority, concurrency_scope, enabled, created_at, updated_at
		 FROM intents ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*Intent
	for rows.Next() {
		in, err := scanIntent(rows.Scan)
		if err != nil {
			return nil, err
		}
		intents = append(intents, in)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return intents, nil
}

// ListEnabled retrieves only enabled intents, in the same stable order as
// List.
func (r *IntentRepository) ListEnabled() ([]*Intent, error) {
	rows, err := r.db.Query(
		`SELECT id, pattern, min_duration_ms, max_gap_ms, res_group, priority, concurrency_scope, enabled, created_at, updated_at
		 FROM intents WHERE enabled = 1 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*Intent
	for rows.Next() {
		in, err := scanIntent(rows.Scan)
		if err != nil {
			return nil, err
		}
		intents = append(intents, in)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return intents, nil
}

// Update updates an existing intent in the database.
func (r *IntentRepository) Update(in *Intent) error {
	in.UpdatedAt = time.Now()

	enabled := 0
	if in.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE intents SET pattern = ?, min_duration_ms = ?, max_gap_ms = ?, res_group = ?, priority = ?, concurrency_scope = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		string(in.Pattern), in.MinDurationMs, in.MaxGapMs, in.Group, in.Priority, string(in.ConcurrencyScope), enabled, in.UpdatedAt, in.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an intent from the database by its ID.
func (r *IntentRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM intents WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func scanIntent(scan func(dest ...any) error) (*Intent, error) {
	in := &Intent{}
	var pattern, scope string
	var enabled int

	err := scan(&in.ID, &pattern, &in.MinDurationMs, &in.MaxGapMs, &in.Group, &in.Priority, &scope, &enabled, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}

	in.Pattern = json.RawMessage(pattern)
	in.ConcurrencyScope = ConcurrencyScope(scope)
	in.Enabled = enabled != 0
	return in, nil
}
