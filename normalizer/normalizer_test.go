package normalizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/debugsito/scrap-sunat/models"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"accented with colon", "Número de RUC:", "numero_de_ruc"},
		{"parenthesized plural", "Actividad(es) Económica(s):", "actividades_economicas"},
		{"irregular spacing", "  Estado   del  Contribuyente ", "estado_del_contribuyente"},
		{"slashes and dots", "Comprobantes de Pago c/aut. de impresión (F. 806 u 816):", "comprobantes_de_pago_caut_de_impresion_f_806_u_816"},
		{"repeated separators", "__Fecha__de   Inscripción__", "fecha_de_inscripcion"},
		{"empty", "", ""},
		{"punctuation only", " : - ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.label))
		})
	}
}

func TestNormalizeKeyIdempotent(t *testing.T) {
	labels := []string{
		"Número de RUC:",
		"Sistema Emisión de Comprobante:",
		"Afiliado al PLE desde:",
		"numero_de_ruc",
		"Padrones :",
	}
	for _, label := range labels {
		once := NormalizeKey(label)
		assert.Equal(t, once, NormalizeKey(once), "label %q", label)
	}
}

func TestMapKey(t *testing.T) {
	assert.Equal(t, "ruc", MapKey("numero_de_ruc"))
	assert.Equal(t, "estado", MapKey("estado_del_contribuyente"))
	assert.Equal(t, "actividad_economica", MapKey("actividad_es_economica_s"))
	assert.Equal(t, "comprobantes_autorizados", MapKey(NormalizeKey("Comprobantes de Pago c/aut. de impresión (F. 806 u 816):")))
	assert.Equal(t, "campo_desconocido", MapKey("campo_desconocido"))
}

func TestCleanValue(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		absent bool
	}{
		// Absent placeholders
		{"empty", "", "", true},
		{"lone dash", "-", "", true},
		{"padded dash", "  -  ", "", true},
		{"none token", "NONE", "", true},
		{"ninguno token", "NINGUNO", "", true},

		// Registry number
		{"registry canonical", "10750690713 - RAMOS FLORES CARLOS SEBASTIAN", "10750690713 - RAMOS FLORES CARLOS SEBASTIAN", false},
		{"registry with marker", "RUC 20100070970 -   SUPERMERCADOS PERUANOS", "20100070970 - SUPERMERCADOS PERUANOS", false},

		// Personal document
		{"document irregular spacing", "DNI  75069071 - RAMOS FLORES, CARLOS SEBASTIAN", "DNI 75069071 - RAMOS FLORES, CARLOS SEBASTIAN", false},
		{"document without number", "DNI - SIN NUMERO", "DNI - SIN NUMERO", false},

		// Economic activity
		{"activity", "Principal - 6202 - CONSULTORÍA DE INFORMÁTICA", "6202 - CONSULTORÍA DE INFORMÁTICA", false},
		{"activity without code", "Principal - SIN CODIGO", "Principal - SIN CODIGO", false},

		// Affiliated since
		{"affiliated", "RECIBOS POR HONORARIOS AFILIADO DESDE 03/01/2017", "RECIBOS POR HONORARIOS (afiliado desde 03/01/2017)", false},
		{"affiliated lowercase", "factura afiliado desde 15/06/2019", "factura (afiliado desde 15/06/2019)", false},

		// Generic since
		{"since unparenthesized", "FACTURA desde 01/02/2020", "FACTURA (desde 01/02/2020)", false},
		{"since already canonical", "FACTURA (desde 01/02/2020)", "FACTURA (desde 01/02/2020)", false},
		{"since lenient parenthesized", "FACTURA (desde 99/99/9999)", "FACTURA (desde 99/99/9999)", false},
		{"since without date", "EMISOR desde siempre", "EMISOR desde siempre", false},

		// Dates and defaults
		{"date", "03/01/2017", "03/01/2017", false},
		{"default collapses", "  ACTIVO \n\t ", "ACTIVO", false},
		{"default inner spaces", "AV.  JAVIER   PRADO", "AV. JAVIER PRADO", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CleanValue(tt.input)
			assert.Equal(t, !tt.absent, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanValueIdempotentOnCanonicalForms(t *testing.T) {
	inputs := []string{
		"DNI  75069071 - RAMOS FLORES, CARLOS SEBASTIAN",
		"RECIBOS POR HONORARIOS AFILIADO DESDE 03/01/2017",
		"FACTURA desde 01/02/2020",
		"10750690713 - RAMOS FLORES CARLOS SEBASTIAN",
		"03/01/2017",
	}
	for _, in := range inputs {
		once, ok := CleanValue(in)
		assert.True(t, ok)
		twice, ok := CleanValue(once)
		assert.True(t, ok)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestRulesOrder(t *testing.T) {
	var names []string
	for _, r := range Rules() {
		names = append(names, r.Name)
	}
	want := []string{"absent", "registry_number", "personal_document", "economic_activity", "affiliated_since", "since", "date", "default"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}
}

func TestRulesInIsolation(t *testing.T) {
	byName := map[string]Rule{}
	for _, r := range Rules() {
		byName[r.Name] = r
	}

	tests := []struct {
		rule  string
		input string
		want  string
	}{
		{"registry_number", "RUC 10750690713 - RAMOS", "10750690713 - RAMOS"},
		{"personal_document", "DNI 1234 - X", "DNI 1234 - X"},
		{"economic_activity", "Principal - 4711 - VENTA", "4711 - VENTA"},
		{"affiliated_since", "BOLETA AFILIADO DESDE 01/01/2001", "BOLETA (afiliado desde 01/01/2001)"},
		{"since", "X desde 01/01/2001", "X (desde 01/01/2001)"},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			r := byName[tt.rule]
			assert.True(t, r.Match(tt.input))
			got, ok := r.Apply(tt.input)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.False(t, byName["date"].Match("03/01/17"))
	assert.False(t, byName["economic_activity"].Match("Secundaria 1 - 4722 - VENTA"))
}

func TestNormalize(t *testing.T) {
	raw := []models.RawField{
		{Label: "Número de RUC", Value: "10750690713 - RAMOS FLORES CARLOS SEBASTIAN"},
		{Label: "Tipo de Documento", Value: "DNI  75069071 - RAMOS FLORES, CARLOS SEBASTIAN"},
		{Label: "Nombre Comercial", Value: "-"},
		{Label: "Actividad(es) Económica(s)", Value: "Principal - 6202 - CONSULTORÍA DE INFORMÁTICA"},
		{Label: "Campo Nuevo", Value: "valor"},
		{Label: "Nombre Comercial", Value: "RAMOS DEV"},
	}

	got := Normalize(raw)

	want := []models.Field{
		{Key: "ruc", Value: models.Str("10750690713 - RAMOS FLORES CARLOS SEBASTIAN")},
		{Key: "documento_identidad", Value: models.Str("DNI 75069071 - RAMOS FLORES, CARLOS SEBASTIAN")},
		{Key: "nombre_comercial", Value: models.Str("RAMOS DEV")},
		{Key: "actividad_economica", Value: models.Str("6202 - CONSULTORÍA DE INFORMÁTICA")},
		{Key: "campo_nuevo", Value: models.Str("valor")},
	}
	if diff := cmp.Diff(want, got.Fields()); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeKeepsAbsentMarker(t *testing.T) {
	got := Normalize([]models.RawField{{Label: "Padrones:", Value: "NINGUNO"}})
	v, present, found := got.Get("padrones")
	assert.True(t, found)
	assert.False(t, present)
	assert.Empty(t, v)
}
