package sheets

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugsito/scrap-sunat/models"
)

func TestColumnValues(t *testing.T) {
	rows := [][]interface{}{
		{"id", " Razon_Social "},
		{1, "SUPERMERCADOS PERUANOS"},
		{2, ""},
		{3},
		{4, "  RAMOS FLORES  "},
	}

	got, err := ColumnValues(rows, "razon_social")
	require.NoError(t, err)
	assert.Equal(t, []string{"SUPERMERCADOS PERUANOS", "RAMOS FLORES"}, got)
}

func TestColumnValuesMissingColumn(t *testing.T) {
	_, err := ColumnValues([][]interface{}{{"nombre"}}, "razon_social")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "razon_social")

	_, err = ColumnValues(nil, "razon_social")
	assert.Error(t, err)
}

func TestBuildResultRows(t *testing.T) {
	results := []models.QueryResult{
		{
			Query: "ACME",
			Entries: []models.ResultEntry{
				models.RecordEntry(models.NewRecord([]models.Field{
					{Key: "ruc", Value: models.Str("20100070970 - ACME")},
					{Key: "estado", Value: models.Str("ACTIVO")},
				})),
				models.FailureEntry("Error al procesar resultado 2: timeout"),
			},
		},
		{
			Query: "RAMOS",
			Entries: []models.ResultEntry{
				models.RecordEntry(models.NewRecord([]models.Field{
					{Key: "ruc", Value: models.Str("10750690713 - RAMOS")},
					{Key: "nombre_comercial", Value: nil},
					{Key: "condicion", Value: models.Str("HABIDO")},
				})),
			},
		},
	}

	want := [][]interface{}{
		{"empresa_buscada", "numero_resultado", "ruc", "estado", "nombre_comercial", "condicion", "error"},
		{"ACME", 1, "20100070970 - ACME", "ACTIVO", "", "", ""},
		{"ACME", 2, "", "", "", "", "Error al procesar resultado 2: timeout"},
		{"RAMOS", 1, "10750690713 - RAMOS", "", "", "HABIDO", ""},
	}
	if diff := cmp.Diff(want, BuildResultRows(results)); diff != "" {
		t.Errorf("BuildResultRows() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildErrorRows(t *testing.T) {
	got := BuildErrorRows([]string{"ACME: No se encontraron resultados para la búsqueda"})
	assert.Equal(t, [][]interface{}{{"error"}, {"ACME: No se encontraron resultados para la búsqueda"}}, got)
}

func TestSanitizeSheetName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "Consulta 2026-10-14", "Consulta 2026-10-14"},
		{"invalid chars", "a/b\\c?d*e[f]g:h", "a_b_c_d_e_f_g_h"},
		{"empty", "   ", "Resultados SUNAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeSheetName(tt.input))
		})
	}

	long := sanitizeSheetName(strings.Repeat("Ñ", 150))
	assert.Equal(t, 100, len([]rune(long)))
}

func TestExtractSpreadsheetID(t *testing.T) {
	assert.Equal(t, "1AbC", ExtractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC/edit?usp=sharing"))
	assert.Equal(t, "1AbC", ExtractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC?x=1"))
	assert.Equal(t, "1AbC", ExtractSpreadsheetID(" 1AbC "))
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/1AbC/edit#gid=7", SheetURL("1AbC", 7))
	assert.Empty(t, SheetURL("", 7))
}

func TestValidateServiceAccount(t *testing.T) {
	assert.NoError(t, validateServiceAccount([]byte(`{"type":"service_account"}`)))
	assert.Error(t, validateServiceAccount([]byte(`{"type":"authorized_user"}`)))
	assert.Error(t, validateServiceAccount([]byte(`not json`)))
}
