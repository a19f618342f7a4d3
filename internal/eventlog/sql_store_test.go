package eventlog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEventTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestSQLStore_Append(t *testing.T) {
	db, mock := setupEventTestDB(t)
	store := NewSQLStore(db)

	idx := 1
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	ev := Event{
		ID:            "01HGZ8VNRYXS8QKNJV5GRWPWDQ",
		Time:          now,
		Level:         "error",
		Category:      "EMBEDDING_FAILURE",
		Message:       "Domain error occurred",
		Method:        "POST",
		Path:          "/compare",
		Status:        500,
		QuestionIndex: &idx,
		Error:         "model unavailable",
		Fields:        map[string]interface{}{"model": "minilm"},
	}

	mock.ExpectExec(regexp.QuoteMeta(insertEventQuery)).
		WithArgs(ev.ID, now, "error", "EMBEDDING_FAILURE", "Domain error occurred", "POST", "/compare",
			int64(500), nil, int64(1), "model unavailable", `{"model":"minilm"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Append_Error(t *testing.T) {
	db, mock := setupEventTestDB(t)
	store := NewSQLStore(db)

	dbErr := errors.New("ORA-00942: table or view does not exist")
	mock.ExpectExec(regexp.QuoteMeta(insertEventQuery)).WillReturnError(dbErr)

	err := store.Append(context.Background(), Event{ID: "x", Time: time.Now(), Level: "error", Message: "m"})
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Recent(t *testing.T) {
	db, mock := setupEventTestDB(t)
	store := NewSQLStore(db)

	now := time.Now().UTC().Truncate(time.Second)
	rows := sqlmock.NewRows([]string{"event_id", "occurred_at", "event_level", "category", "message", "http_method", "http_path", "http_status", "request_id", "question_index", "error_text", "fields_json"}).
		AddRow("b", now, "error", "EMBEDDING_FAILURE", "second", "POST", "/compare", int64(500), "req-2", int64(0), "boom", `{"model":"minilm"}`).
		AddRow("a", now.Add(-time.Minute), "error", nil, "first", nil, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta(recentEventsQuery)).WithArgs(2).WillReturnRows(rows)

	events, err := store.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "b", events[0].ID)
	assert.Equal(t, 500, events[0].Status)
	require.NotNil(t, events[0].QuestionIndex)
	assert.Equal(t, 0, *events[0].QuestionIndex)
	assert.Equal(t, "minilm", events[0].Fields["model"])

	assert.Equal(t, "a", events[1].ID)
	assert.Nil(t, events[1].QuestionIndex)
	assert.Empty(t, events[1].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}
