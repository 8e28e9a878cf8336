package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Credentials locate a service account key. File wins over JSON.
type Credentials struct {
	File string
	JSON string
}

func newService(ctx context.Context, creds Credentials) (*sheets.Service, error) {
	var credsJSON []byte
	var err error

	if creds.File != "" {
		credsJSON, err = os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
	} else {
		// Trim whitespace and newlines that might come from the environment variable
		raw := strings.TrimSpace(creds.JSON)
		if raw == "" {
			return nil, fmt.Errorf("credentials not found: set sheets.credentials_file or GOOGLE_SHEETS_CREDENTIALS")
		}
		credsJSON = []byte(raw)
	}

	if err := validateServiceAccount(credsJSON); err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return service, nil
}

func validateServiceAccount(credsJSON []byte) error {
	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}
	return nil
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
// A bare ID is returned unchanged.
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return strings.TrimSpace(url)
	}

	idPart := parts[1]
	if idx := strings.Index(idPart, "/"); idx != -1 {
		idPart = idPart[:idx]
	}
	if idx := strings.Index(idPart, "?"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}

// SheetURL opens a specific tab of the spreadsheet. It returns "" without a spreadsheet ID.
func SheetURL(spreadsheetID string, sheetID int64) string {
	if spreadsheetID == "" {
		return ""
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", spreadsheetID, sheetID)
}
