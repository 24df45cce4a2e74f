package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteCreatesSchema(t *testing.T) {
	conn, err := Open(DriverSQLite, "file::memory:?cache=shared")
	require.NoError(t, err)
	defer conn.Close()

	for _, table := range []string{"kv_store", "payment_attempt"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, table, name)
	}

	assert.Equal(t, DriverSQLite, DriverOf(conn))
}

func TestRebind(t *testing.T) {
	q := `UPDATE payment_attempt SET state = $1 WHERE id = $2`
	assert.Equal(t, q, Rebind(DriverPostgres, q))
	assert.Equal(t, `UPDATE payment_attempt SET state = ? WHERE id = ?`, Rebind(DriverSQLite, q))
}

func TestOpen_AddsSessionKeyToOlderLedger(t *testing.T) {
	dsn := "file:legacy_ledger?mode=memory&cache=shared"
	legacy, err := sql.Open(DriverSQLite, dsn)
	require.NoError(t, err)
	defer legacy.Close()
	_, err = legacy.Exec(`CREATE TABLE payment_attempt (
		id TEXT PRIMARY KEY, application_id TEXT NOT NULL, application_type TEXT NOT NULL,
		amount TEXT NOT NULL, gateway_id INTEGER NOT NULL, psid TEXT NOT NULL, redirect_url TEXT,
		state TEXT NOT NULL, status TEXT, tran_id TEXT, error_message TEXT,
		created_at TIMESTAMP NOT NULL, updated_at TIMESTAMP NOT NULL)`)
	require.NoError(t, err)

	conn, err := Open(DriverSQLite, dsn)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`SELECT session_key FROM payment_attempt`)
	assert.NoError(t, err)

	// opening again is a no-op
	again, err := Open(DriverSQLite, dsn)
	require.NoError(t, err)
	again.Close()
}
