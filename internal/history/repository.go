// Package history stores every MQTT connect attempt in SQLite and answers
// queries about past attempts.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Filter controls which attempts List returns.
type Filter struct {
	ClientID string    // optional: only this client
	Outcome  string    // optional: connected, rejected, unmapped, invalid_config
	Since    time.Time // optional: only attempts at or after this time
	Limit    int       // default 50, max 200
	Offset   int       // pagination offset
}

// ListResult contains one page of attempts, newest first.
type ListResult struct {
	Attempts []mqtt.Attempt
	Total    int
	Limit    int
	Offset   int
}

// Repository defines the connect history operations.
type Repository interface {
	mqtt.Recorder
	List(ctx context.Context, filter Filter) (*ListResult, error)
	CountByOutcome(ctx context.Context, clientID string) (map[string]int, error)
}

// SQLiteRepository keeps attempts in the connect_attempts table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a history repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordAttempt inserts one attempt. The ID and timestamp are generated
// when empty.
func (r *SQLiteRepository) RecordAttempt(ctx context.Context, attempt mqtt.Attempt) error {
	if attempt.ID == "" {
		attempt.ID = "att-" + uuid.NewString()
	}
	if attempt.At.IsZero() {
		attempt.At = time.Now()
	}

	uris := attempt.ServerURIs
	if uris == nil {
		uris = []string{}
	}
	urisJSON, err := json.Marshal(uris)
	if err != nil {
		return fmt.Errorf("marshalling server URIs: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO connect_attempts
		   (id, client_id, server_uri, server_uris, code, outcome, message, duration_ms, attempted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.ClientID, attempt.ServerURI, string(urisJSON),
		int(attempt.Code), attempt.Outcome, attempt.Message,
		attempt.Duration.Milliseconds(),
		attempt.At.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting connect attempt: %w", err)
	}
	return nil
}

// List returns attempts matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := filter.where()

	var total int
	countQuery := "SELECT COUNT(*) FROM connect_attempts" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting connect attempts: %w", err)
	}

	query := `SELECT id, client_id, server_uri, server_uris, code, outcome, message, duration_ms, attempted_at
		FROM connect_attempts` + where + ` ORDER BY attempted_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying connect attempts: %w", err)
	}
	defer rows.Close()

	attempts := []mqtt.Attempt{}
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connect attempts: %w", err)
	}

	return &ListResult{
		Attempts: attempts,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// CountByOutcome returns the number of attempts per outcome, for one client
// or, with an empty clientID, for all of them.
func (r *SQLiteRepository) CountByOutcome(ctx context.Context, clientID string) (map[string]int, error) {
	where, args := Filter{ClientID: clientID}.where()

	rows, err := r.db.QueryContext(ctx,
		"SELECT outcome, COUNT(*) FROM connect_attempts"+where+" GROUP BY outcome", args...)
	if err != nil {
		return nil, fmt.Errorf("counting connect attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning outcome count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outcome counts: %w", err)
	}
	return counts, nil
}

// where builds a parameterised WHERE clause; values never enter the SQL text.
func (f Filter) where() (string, []any) {
	var conditions []string
	var args []any

	if f.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "attempted_at >= ?")
		args = append(args, f.Since.UTC().Format(timeFormat))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanAttempt(rows *sql.Rows) (mqtt.Attempt, error) {
	var attempt mqtt.Attempt
	var urisJSON, attemptedAt string
	var code int
	var durationMS int64

	if err := rows.Scan(&attempt.ID, &attempt.ClientID, &attempt.ServerURI, &urisJSON,
		&code, &attempt.Outcome, &attempt.Message, &durationMS, &attemptedAt); err != nil {
		return mqtt.Attempt{}, fmt.Errorf("scanning connect attempt: %w", err)
	}

	attempt.Code = mqtt.ReturnCode(code)
	attempt.Duration = time.Duration(durationMS) * time.Millisecond

	var uris []string
	if err := json.Unmarshal([]byte(urisJSON), &uris); err != nil {
		return mqtt.Attempt{}, fmt.Errorf("parsing server URIs of %s: %w", attempt.ID, err)
	}
	if len(uris) > 0 {
		attempt.ServerURIs = uris
	}

	at, err := time.Parse(timeFormat, attemptedAt)
	if err != nil {
		return mqtt.Attempt{}, fmt.Errorf("parsing attempt timestamp %q: %w", attemptedAt, err)
	}
	attempt.At = at
	return attempt, nil
}
