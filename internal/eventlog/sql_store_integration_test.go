package eventlog_test

import (
	"context"
	"os"
	"testing"
	"time"

	"readly/internal/config"
	"readly/internal/database"
	"readly/internal/eventlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLStore_Integration runs against the database described by the APP_DB_*
// variables. It only runs when APP_EVENTS_STORE=sql is set.
func TestSQLStore_Integration(t *testing.T) {
	if testing.Short() || os.Getenv("APP_EVENTS_STORE") != "sql" {
		t.Skip("Skipping SQL event store integration test; set APP_EVENTS_STORE=sql to run.")
	}
	t.Setenv("ENV", "test")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	db, err := database.NewSQLXDB(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, database.RunMigrations(ctx, db, database.Up, false))
	t.Cleanup(func() {
		assert.NoError(t, database.RunMigrations(context.Background(), db, database.Down, true))
	})

	store := eventlog.NewSQLStore(db)
	idx := 2
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Append(ctx, eventlog.Event{
		Time: base, Level: "warn", Category: "validation", Message: "Request validation failed",
		Method: "POST", Path: "/compare", Status: 422,
	}))
	require.NoError(t, store.Append(ctx, eventlog.Event{
		Time: base.Add(time.Second), Level: "error", Category: "embedding", Message: "Failed to generate embeddings",
		Method: "POST", Path: "/compare/batch", Status: 500, QuestionIndex: &idx,
		Fields: map[string]interface{}{"model": "onnx/all-MiniLM-L6-v2"},
	}))

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "embedding", events[0].Category)
	require.NotNil(t, events[0].QuestionIndex)
	assert.Equal(t, 2, *events[0].QuestionIndex)
	assert.Equal(t, "onnx/all-MiniLM-L6-v2", events[0].Fields["model"])
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, 422, events[1].Status)
	assert.Nil(t, events[1].QuestionIndex)
}
