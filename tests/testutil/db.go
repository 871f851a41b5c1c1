package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/chatly-hq/chatly/internal/common/config"
	"github.com/chatly-hq/chatly/internal/infra/db"
	"github.com/chatly-hq/chatly/internal/infra/migrations"
	"github.com/chatly-hq/chatly/internal/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// SetupTestDB connects to the test database, applies migrations, and wipes
// domain tables. Tests skip when no database is reachable so the unit suite
// stays runnable without infrastructure.
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOrInt("TEST_DB_PORT", 5432),
		User:     envOr("TEST_DB_USER", "postgres"),
		Password: envOr("TEST_DB_PASSWORD", "postgres"),
		Database: envOr("TEST_DB_NAME", "chatly_test"),
		MaxConns: 5,
		MinConns: 1,
	}

	database, err := db.New(cfg, zap.NewNop())
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	ctx := context.Background()
	if err := database.Health(ctx); err != nil {
		database.Close()
		t.Skipf("test database unavailable: %v", err)
	}

	require.NoError(t, migrations.Run(ctx, database.Pool))
	CleanTables(t, database)

	return database
}

// CleanTables wipes every domain table in dependency order.
func CleanTables(t *testing.T, database *db.DB) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"saved_messages",
		"message_reactions",
		"messages",
		"poll_votes",
		"poll_options",
		"polls",
		"channel_members",
		"channels",
		"bots",
		"users",
	}
	for _, table := range tables {
		_, err := database.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		require.NoError(t, err)
	}
}

// CreateUser inserts a human user and returns its id.
func CreateUser(t *testing.T, database *db.DB, handle string) uuid.UUID {
	t.Helper()

	repo := users.NewRepository(database.Pool)
	u := &users.User{
		ID:          uuid.New(),
		Handle:      handle,
		DisplayName: handle,
		Type:        users.TypeHuman,
		Enabled:     true,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u.ID
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
