package protocol

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datazip-inc/olake-jdbc/drivers/abstract"
	"github.com/datazip-inc/olake-jdbc/pkg/offsetstore"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/datazip-inc/olake-jdbc/destination/jsonl"
	_ "github.com/mattn/go-sqlite3"
)

func writeConfig(t *testing.T, dir, mode string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "app.db")
	db, err := sqlx.Open("sqlite3", dbPath)
	require.NoError(t, err)
	db.MustExec(`CREATE TABLE IF NOT EXISTS orders (id INTEGER, note TEXT)`)
	db.MustExec(`INSERT INTO orders (id, note) VALUES (1, 'a'), (2, 'b')`)
	require.NoError(t, db.Close())

	config := fmt.Sprintf(`
jdbc_url: jdbc:sqlite:%s
tables:
  - table: orders
    mode: %s
    incrementing_column: id
output:
  path: %s
`, dbPath, mode, filepath.Join(dir, "records.jsonl"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	logger.SetOutput(&out, "error")

	// flags keep their values between executions
	configPath, statePath, once = notSet, "", false
	root := CreateRootCommand(abstract.NewAbstractDriver())
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncOnce(t *testing.T) {
	dir := t.TempDir()
	config := writeConfig(t, dir, "incrementing")

	out, err := execute(t, "sync", "--config", config, "--once")
	require.NoError(t, err)

	var message types.Message
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &message))
	assert.Equal(t, types.StateMessage, message.Type)
	assert.Equal(t, int64(2), *message.State["orders"].Incrementing)

	store, err := offsetstore.NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	offset, err := store.Load(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), *offset.Incrementing)

	records, err := os.ReadFile(filepath.Join(dir, "records.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(records), "\n"))
}

func TestSyncRequiresConfig(t *testing.T) {
	_, err := execute(t, "sync", "--once")
	assert.ErrorContains(t, err, "--config not passed")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "check", "--config", writeConfig(t, dir, "incrementing"))
	require.NoError(t, err)
	var message types.Message
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &message))
	assert.Equal(t, types.ConnectionSucceed, message.ConnectionStatus.Status)

	out, err = execute(t, "check", "--config", writeConfig(t, t.TempDir(), "timestamp"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &message))
	assert.Equal(t, types.ConnectionFailed, message.ConnectionStatus.Status)
	assert.NotEmpty(t, message.ConnectionStatus.Message)
}

func TestSpec(t *testing.T) {
	out, err := execute(t, "spec")
	require.NoError(t, err)

	var message types.Message
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &message))
	assert.Equal(t, types.SpecMessage, message.Type)
	assert.Equal(t, "jdbc", message.Spec["type"])
}
