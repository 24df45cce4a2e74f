package db

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"student-portal/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// InitDB opens the configured store, checks it and creates the tables.
func InitDB() error {
	var err error
	DB, err = Open(config.AppConfig.StoreDriver, config.AppConfig.StoreDSN)
	return err
}

// Open connects to driver/dsn and makes sure the schema exists.
func Open(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer
		conn.SetMaxOpenConns(1)
	}

	// Test the connection
	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return conn, nil
}

func createTables(conn *sql.DB) error {
	kvTable := `
	CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

	attemptTable := `
	CREATE TABLE IF NOT EXISTS payment_attempt (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL,
		application_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		gateway_id INTEGER NOT NULL,
		psid TEXT NOT NULL,
		redirect_url TEXT,
		session_key TEXT,
		state TEXT NOT NULL,
		status TEXT,
		tran_id TEXT,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`

	attemptIndex := `CREATE INDEX IF NOT EXISTS idx_payment_attempt_application ON payment_attempt (application_id);`

	for name, stmt := range map[string]string{
		"kv_store":        kvTable,
		"payment_attempt": attemptTable,
	} {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("error creating %s table: %w", name, err)
		}
	}

	if _, err := conn.Exec(attemptIndex); err != nil {
		return fmt.Errorf("error creating payment_attempt index: %w", err)
	}

	// ledgers created before session keys were recorded
	if _, err := conn.Exec(`ALTER TABLE payment_attempt ADD COLUMN session_key TEXT`); err != nil && !duplicateColumn(err) {
		return fmt.Errorf("error adding payment_attempt.session_key: %w", err)
	}

	return nil
}

func duplicateColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

var placeholder = regexp.MustCompile(`\$\d+`)

// Rebind rewrites postgres style $N placeholders for drivers that expect '?'.
// Each $N must appear once and in order.
func Rebind(driver, query string) string {
	if driver == DriverPostgres {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

// DriverOf guesses the driver name behind conn.
func DriverOf(conn *sql.DB) string {
	if conn == nil {
		return DriverSQLite
	}
	if strings.Contains(fmt.Sprintf("%T", conn.Driver()), "pq.") {
		return DriverPostgres
	}
	return DriverSQLite
}
