package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"readly/internal/util"

	"github.com/jmoiron/sqlx"
)

// eventRow mirrors the error_events table. Column aliases in queries are
// quoted lower-case so Oracle's upper-case identifiers still map.
type eventRow struct {
	ID            string         `db:"event_id"`
	OccurredAt    time.Time      `db:"occurred_at"`
	Level         string         `db:"event_level"`
	Category      sql.NullString `db:"category"`
	Message       string         `db:"message"`
	Method        sql.NullString `db:"http_method"`
	Path          sql.NullString `db:"http_path"`
	Status        sql.NullInt64  `db:"http_status"`
	RequestID     sql.NullString `db:"request_id"`
	QuestionIndex sql.NullInt64  `db:"question_index"`
	ErrorText     sql.NullString `db:"error_text"`
	FieldsJSON    sql.NullString `db:"fields_json"`
}

// SQLStore is a Store backed by the error_events table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a SQLStore on an open connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const insertEventQuery = `INSERT INTO error_events (event_id, occurred_at, event_level, category, message, http_method, http_path, http_status, request_id, question_index, error_text, fields_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const recentEventsQuery = `SELECT event_id AS "event_id", occurred_at AS "occurred_at", event_level AS "event_level", category AS "category", message AS "message", http_method AS "http_method", http_path AS "http_path", http_status AS "http_status", request_id AS "request_id", question_index AS "question_index", error_text AS "error_text", fields_json AS "fields_json" FROM error_events ORDER BY occurred_at DESC FETCH FIRST ? ROWS ONLY`

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, event Event) error {
	row, err := toRow(event)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(insertEventQuery),
		row.ID, row.OccurredAt, row.Level, row.Category, row.Message, row.Method, row.Path,
		row.Status, row.RequestID, row.QuestionIndex, row.ErrorText, row.FieldsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}
	return nil
}

// Recent implements Store.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(recentEventsQuery), limit); err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	events := make([]Event, 0, len(rows))
	for i := range rows {
		events = append(events, fromRow(&rows[i]))
	}
	return events, nil
}

func toRow(e Event) (*eventRow, error) {
	row := &eventRow{
		ID:         e.ID,
		OccurredAt: e.Time.UTC(),
		Level:      e.Level,
		Category:   util.StringToNullString(e.Category),
		Message:    e.Message,
		Method:     util.StringToNullString(e.Method),
		Path:       util.StringToNullString(e.Path),
		RequestID:  util.StringToNullString(e.RequestID),
		ErrorText:  util.StringToNullString(e.Error),
	}
	if row.ID == "" {
		row.ID = util.NewULID()
	}
	if e.Status != 0 {
		row.Status = sql.NullInt64{Int64: int64(e.Status), Valid: true}
	}
	if e.QuestionIndex != nil {
		row.QuestionIndex = sql.NullInt64{Int64: int64(*e.QuestionIndex), Valid: true}
	}
	if len(e.Fields) > 0 {
		b, err := json.Marshal(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event fields: %w", err)
		}
		row.FieldsJSON = sql.NullString{String: string(b), Valid: true}
	}
	return row, nil
}

func fromRow(r *eventRow) Event {
	e := Event{
		ID:        r.ID,
		Time:      r.OccurredAt,
		Level:     r.Level,
		Category:  r.Category.String,
		Message:   r.Message,
		Method:    r.Method.String,
		Path:      r.Path.String,
		RequestID: r.RequestID.String,
		Error:     r.ErrorText.String,
	}
	if r.Status.Valid {
		e.Status = int(r.Status.Int64)
	}
	if r.QuestionIndex.Valid {
		idx := int(r.QuestionIndex.Int64)
		e.QuestionIndex = &idx
	}
	if r.FieldsJSON.Valid && r.FieldsJSON.String != "" {
		// A corrupt fields column should not hide the event itself.
		_ = json.Unmarshal([]byte(r.FieldsJSON.String), &e.Fields)
	}
	return e
}
