package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const schemaName = "sunat_scraper"

// DB wraps the database connection
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection. An empty connStr is built from DB_* variables.
func NewDB(connStr string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if connStr == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "sunat_scraper")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "sunat_scraper")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	connStr, err := withSearchPath(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// withSearchPath adds search_path to the DSN unless one is set. lib/pq sends it as a
// startup parameter, so every pooled connection gets it, including redials.
func withSearchPath(connStr string) (string, error) {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return "", err
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", schemaName)
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	}

	for _, field := range strings.Fields(connStr) {
		if strings.HasPrefix(field, "search_path=") {
			return connStr, nil
		}
	}
	return strings.TrimSpace(connStr + " search_path=" + schemaName), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema() error {
	// The schema usually exists already; lacking permission to create it is not fatal
	if _, err := db.conn.Exec(`CREATE SCHEMA IF NOT EXISTS ` + schemaName); err != nil {
		db.logger.Info("Note: could not create schema (may already exist)", zap.Error(err))
	}

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS requests (
			id SERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			telegram_message_id INTEGER NOT NULL,
			mode VARCHAR(20) NOT NULL,
			value TEXT NOT NULL,
			document_type VARCHAR(2),
			status VARCHAR(20) NOT NULL DEFAULT 'created',
			results_count INTEGER DEFAULT 0,
			errors_count INTEGER DEFAULT 0,
			sheet_name VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT valid_status CHECK (status IN ('created', 'in_progress', 'done', 'failed')),
			CONSTRAINT valid_mode CHECK (mode IN ('nombre', 'ruc', 'documento'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create requests table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			id SERIAL PRIMARY KEY,
			request_id INTEGER NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			data JSONB,
			error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT record_or_error CHECK ((data IS NULL) <> (error IS NULL)),
			UNIQUE (request_id, position)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create results table: %w", err)
	}

	if _, err := db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_requests_status_created ON requests(status, created_at)`); err != nil {
		return fmt.Errorf("failed to create requests index: %w", err)
	}

	return nil
}

// GetConn returns the underlying connection
func (db *DB) GetConn() *sql.DB {
	return db.conn
}
