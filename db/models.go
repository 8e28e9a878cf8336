package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/debugsito/scrap-sunat/models"
)

// Request statuses
const (
	StatusCreated    = "created"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Request represents a queued lookup coming from the chat front-end
type Request struct {
	ID                int
	UserID            int64
	ChatID            int64
	TelegramMessageID int
	Mode              models.SearchMode
	Value             string
	DocumentType      sql.NullString
	Status            string // "created", "in_progress", "done", "failed"
	ResultsCount      int
	ErrorsCount       int
	SheetName         sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SearchRequest converts the stored row into the scraper's request type
func (r *Request) SearchRequest() models.SearchRequest {
	return models.SearchRequest{
		Value:        r.Value,
		Mode:         r.Mode,
		DocumentType: models.DocumentType(r.DocumentType.String),
	}
}

// Result is one stored entry of a request's result sequence. Exactly one of Data and Error is set.
type Result struct {
	ID        int
	RequestID int
	Position  int
	Data      sql.NullString // record as JSON
	Error     sql.NullString
	CreatedAt time.Time
}

const requestColumns = `id, user_id, chat_id, telegram_message_id, mode, value, document_type, status,
	results_count, errors_count, sheet_name, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var req Request
	var mode string
	err := row.Scan(
		&req.ID, &req.UserID, &req.ChatID, &req.TelegramMessageID, &mode, &req.Value, &req.DocumentType,
		&req.Status, &req.ResultsCount, &req.ErrorsCount, &req.SheetName, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Mode = models.SearchMode(mode)
	return &req, nil
}

// CreateRequest queues a new lookup
func (db *DB) CreateRequest(userID, chatID int64, telegramMessageID int, search models.SearchRequest) (*Request, error) {
	var docType sql.NullString
	if search.DocumentType != "" {
		docType = sql.NullString{String: string(search.DocumentType), Valid: true}
	}

	row := db.conn.QueryRow(`
		INSERT INTO requests (user_id, chat_id, telegram_message_id, mode, value, document_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'created')
		RETURNING `+requestColumns,
		userID, chatID, telegramMessageID, string(search.Mode), search.Value, docType)
	req, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

// ClaimNextRequest marks the oldest 'created' request as 'in_progress' and returns it.
// It returns nil when the queue is empty.
func (db *DB) ClaimNextRequest() (*Request, error) {
	row := db.conn.QueryRow(`
		UPDATE requests
		SET status = 'in_progress', updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM requests
			WHERE status = 'created'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + requestColumns)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequestByID gets a request by its ID
func (db *DB) GetRequestByID(requestID int) (*Request, error) {
	row := db.conn.QueryRow(`SELECT `+requestColumns+` FROM requests WHERE id = $1`, requestID)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateRequestStatus updates the status of a request
func (db *DB) UpdateRequestStatus(requestID int, status string) error {
	_, err := db.conn.Exec(`
		UPDATE requests
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`, status, requestID)
	return err
}

// UpdateRequestCounts updates result and error counts for a request
func (db *DB) UpdateRequestCounts(requestID int, resultsCount, errorsCount int) error {
	_, err := db.conn.Exec(`
		UPDATE requests
		SET results_count = $1, errors_count = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`, resultsCount, errorsCount, requestID)
	return err
}

// UpdateRequestSheetName updates the sheet name for a request
func (db *DB) UpdateRequestSheetName(requestID int, sheetName string) error {
	_, err := db.conn.Exec(`
		UPDATE requests
		SET sheet_name = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`, sheetName, requestID)
	return err
}

// SaveResults stores the full entry sequence of a request, replacing any previous one.
// Failure entries are stored as data in the error column.
func (db *DB) SaveResults(requestID int, entries []models.ResultEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM results WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("failed to clear previous results: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO results (request_id, position, data, error)
		VALUES ($1, $2, $3::jsonb, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		data, errText, err := entryColumns(entry)
		if err != nil {
			return fmt.Errorf("failed to encode result %d: %w", i+1, err)
		}
		if _, err := stmt.Exec(requestID, i+1, data, errText); err != nil {
			return fmt.Errorf("failed to insert result %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// GetResultsByRequestID returns stored results in sequence order
func (db *DB) GetResultsByRequestID(requestID int) ([]Result, error) {
	rows, err := db.conn.Query(`
		SELECT id, request_id, position, data, error, created_at
		FROM results
		WHERE request_id = $1
		ORDER BY position ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Position, &r.Data, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// entryColumns maps an entry to the (data, error) column pair
func entryColumns(entry models.ResultEntry) (data, errText sql.NullString, err error) {
	if entry.IsFailure() {
		return sql.NullString{}, sql.NullString{String: entry.Reason(), Valid: true}, nil
	}
	raw, err := entry.MarshalJSON()
	if err != nil {
		return sql.NullString{}, sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, sql.NullString{}, nil
}
