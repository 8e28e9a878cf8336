package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"github.com/debugsito/scrap-sunat/models"
)

const (
	columnQuery    = "empresa_buscada"
	columnPosition = "numero_resultado"
	columnError    = "error"
	maxSheetName   = 100
)

// Writer handles exporting query results to Google Sheets
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewWriter creates a new Google Sheets writer
func NewWriter(ctx context.Context, spreadsheetID string, creds Credentials, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	service, err := newService(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &Writer{service: service, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// CreateSheetAndWriteResults creates a new sheet at the beginning of the spreadsheet with one row
// per result entry. When errs is not empty a second "<name> Errores" sheet lists them.
// Returns the sheet name and sheet ID (gid) that was created.
func (w *Writer) CreateSheetAndWriteResults(sheetName string, results []models.QueryResult, errs []string) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)

	sheetID, err := w.addSheet(sheetName, 0)
	if err != nil {
		return "", 0, err
	}

	rows := BuildResultRows(results)
	if err := w.writeValues(sheetName, rows); err != nil {
		return "", 0, err
	}
	w.logger.Info("results exported", zap.String("sheet", sheetName), zap.Int("rows", len(rows)-1))

	if len(errs) > 0 {
		errorsSheet := sanitizeSheetName(sheetName + " Errores")
		if _, err := w.addSheet(errorsSheet, 1); err != nil {
			// Continue anyway, the main sheet already has the failures inline
			w.logger.Warn("Warning: failed to create errors sheet", zap.Error(err))
			return sheetName, sheetID, nil
		}
		if err := w.writeValues(errorsSheet, BuildErrorRows(errs)); err != nil {
			w.logger.Warn("Warning: failed to write errors sheet", zap.Error(err))
		}
	}

	return sheetName, sheetID, nil
}

func (w *Writer) addSheet(title string, index int64) (int64, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title:           title,
						Index:           index,
						ForceSendFields: []string{"Index"},
					},
				},
			},
		},
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to create sheet %q: %w", title, err)
	}

	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	w.logger.Debug("sheet created", zap.String("sheet", title), zap.Int64("sheet_id", sheetID))
	return sheetID, nil
}

func (w *Writer) writeValues(sheetName string, rows [][]interface{}) error {
	range_ := fmt.Sprintf("'%s'!A1", sheetName)
	_, err := w.service.Spreadsheets.Values.Update(w.spreadsheetID, range_, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		return fmt.Errorf("failed to write to sheet %q: %w", sheetName, err)
	}
	return nil
}

// BuildResultRows flattens results into a header row plus one row per entry.
// Columns are empresa_buscada, numero_resultado, every record key in first-seen order, then error.
func BuildResultRows(results []models.QueryResult) [][]interface{} {
	columns := []string{columnQuery, columnPosition}
	seen := map[string]bool{columnQuery: true, columnPosition: true, columnError: true}
	for _, qr := range results {
		for _, e := range qr.Entries {
			rec, ok := e.Record()
			if !ok {
				continue
			}
			for _, k := range rec.Keys() {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
		}
	}
	columns = append(columns, columnError)

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	rows := [][]interface{}{header}

	for _, qr := range results {
		for i, e := range qr.Entries {
			row := make([]interface{}, len(columns))
			for j := range row {
				row[j] = ""
			}
			row[0] = qr.Query
			row[1] = i + 1

			if rec, ok := e.Record(); ok {
				for j, c := range columns[2 : len(columns)-1] {
					if v, present, _ := rec.Get(c); present {
						row[j+2] = v
					}
				}
			} else {
				row[len(columns)-1] = e.Reason()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// BuildErrorRows lays out batch-level errors under a single "error" header
func BuildErrorRows(errs []string) [][]interface{} {
	rows := [][]interface{}{{columnError}}
	for _, e := range errs {
		rows = append(rows, []interface{}{e})
	}
	return rows
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ] :
	invalidChars := []string{"/", "\\", "?", "*", "[", "]", ":", "'"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Resultados SUNAT"
	}
	if r := []rune(result); len(r) > maxSheetName {
		result = string(r[:maxSheetName])
	}
	return result
}
