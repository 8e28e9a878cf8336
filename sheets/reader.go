package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"
)

// Reader loads bulk query input from a spreadsheet
type Reader struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewReader creates a new Google Sheets reader
func NewReader(ctx context.Context, spreadsheetID string, creds Credentials, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	service, err := newService(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &Reader{service: service, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// ReadColumn returns the non-empty values under the header named column within rangeA1
func (r *Reader) ReadColumn(rangeA1, column string) ([]string, error) {
	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, rangeA1).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet range %s: %w", rangeA1, err)
	}

	values, err := ColumnValues(resp.Values, column)
	if err != nil {
		return nil, err
	}
	r.logger.Info("bulk input loaded", zap.String("range", rangeA1), zap.Int("queries", len(values)))
	return values, nil
}

// ColumnValues finds column in the header row and returns its trimmed, non-empty cells
func ColumnValues(rows [][]interface{}, column string) ([]string, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("la hoja debe tener una columna llamada '%s'", column)
	}

	idx := -1
	for i, cell := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(fmt.Sprint(cell)), column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("la hoja debe tener una columna llamada '%s'", column)
	}

	var values []string
	for _, row := range rows[1:] {
		if idx >= len(row) || row[idx] == nil {
			continue
		}
		if v := strings.TrimSpace(fmt.Sprint(row[idx])); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}
