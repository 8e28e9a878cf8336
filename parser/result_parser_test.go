package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugsito/scrap-sunat/models"
)

const listDetailHTML = `<html><body>
<div class="panel panel-primary">
  <div class="list-group">
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Número de RUC:</h4></div>
        <div class="col-sm-7"><h4 class="list-group-item-heading">10750690713 - RAMOS FLORES CARLOS SEBASTIAN</h4></div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Tipo de Documento:</h4></div>
        <div class="col-sm-7"><p class="list-group-item-text">DNI  75069071  - RAMOS FLORES, CARLOS SEBASTIAN</p></div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Nombre Comercial:</h4></div>
        <div class="col-sm-7"><p class="list-group-item-text">-</p></div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-3"><h4 class="list-group-item-heading">Fecha de Inscripción:</h4></div>
        <div class="col-sm-3"><p class="list-group-item-text">03/01/2017</p></div>
        <div class="col-sm-3"><h4 class="list-group-item-heading">Fecha de Inicio de Actividades:</h4></div>
        <div class="col-sm-3"><p class="list-group-item-text">03/01/2017</p></div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Actividad(es) Económica(s):</h4></div>
        <div class="col-sm-7"><table><tr><td>Principal - 6202 - CONSULTORÍA DE INFORMÁTICA</td></tr></table></div>
      </div>
    </div>
  </div>
</div>
</body></html>`

const directHTML = `<html><body>
<div class="panel panel-primary">
  <div class="panel-heading">Resultado de la Búsqueda</div>
  <div class="list-group">
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Número de RUC:</h4></div>
        <div class="col-sm-7"><h4 class="list-group-item-heading">20100070970 - SUPERMERCADOS PERUANOS SOCIEDAD ANONIMA</h4></div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Estado del Contribuyente:</h4></div>
        <div class="col-sm-7"><p class="list-group-item-text">ACTIVO</p></div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Sistema de Emisión Electrónica:</h4></div>
        <div class="col-sm-7">
          <table class="table tblResultado"><tbody><tr><td>FACTURA AFILIADO DESDE 01/02/2015</td></tr></tbody></table>
        </div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Padrones:</h4></div>
        <div class="col-sm-7">
          <table class="table tblResultado"><tbody>
            <tr><td>Incorporado al Régimen de Agentes de Retención</td></tr>
            <tr><td>Incorporado al Régimen de Buenos Contribuyentes</td></tr>
          </tbody></table>
        </div>
      </div>
    </div>
    <div class="list-group-item">
      <div class="row">
        <div class="col-sm-5"><h4 class="list-group-item-heading">Domicilio Fiscal:</h4></div>
        <div class="col-sm-7"><span>CAL. MORELLI</span> <span>NRO. 181</span></div>
      </div>
    </div>
  </div>
</div>
</body></html>`

func TestExtractListDetailShape(t *testing.T) {
	entry, err := NewResultParser().Extract(listDetailHTML)
	require.NoError(t, err)
	require.False(t, entry.IsFailure())

	rec, ok := entry.Record()
	require.True(t, ok)

	want := []models.Field{
		{Key: "ruc", Value: models.Str("10750690713 - RAMOS FLORES CARLOS SEBASTIAN")},
		{Key: "documento_identidad", Value: models.Str("DNI 75069071 - RAMOS FLORES, CARLOS SEBASTIAN")},
		{Key: "nombre_comercial", Value: nil},
		{Key: "fecha_inscripcion", Value: models.Str("03/01/2017")},
		{Key: "fecha_de_inicio_de_actividades", Value: models.Str("03/01/2017")},
		{Key: "actividad_economica", Value: models.Str("6202 - CONSULTORÍA DE INFORMÁTICA")},
	}
	if diff := cmp.Diff(want, rec.Fields()); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDirectShape(t *testing.T) {
	assert.True(t, IsDirectShape(directHTML))
	assert.False(t, IsDirectShape(listDetailHTML))

	fields, found, err := NewResultParser().ExtractFields(directHTML)
	require.NoError(t, err)
	require.True(t, found)

	want := []models.RawField{
		{Label: "Número de RUC", Value: "20100070970 - SUPERMERCADOS PERUANOS SOCIEDAD ANONIMA"},
		{Label: "Estado del Contribuyente", Value: "ACTIVO"},
		{Label: "Sistema de Emisión Electrónica", Value: "FACTURA AFILIADO DESDE 01/02/2015"},
		{Label: "Padrones", Value: "Incorporado al Régimen de Agentes de Retención | Incorporado al Régimen de Buenos Contribuyentes"},
		{Label: "Domicilio Fiscal", Value: "CAL. MORELLI NRO. 181"},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("ExtractFields() mismatch (-want +got):\n%s", diff)
	}

	entry, err := NewResultParser().Extract(directHTML)
	require.NoError(t, err)
	rec, ok := entry.Record()
	require.True(t, ok)

	v, present, _ := rec.Get("emision_electronica")
	assert.True(t, present)
	assert.Equal(t, "FACTURA (afiliado desde 01/02/2015)", v)
}

func TestExtractWithoutPanel(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"empty document", ""},
		{"other panel", `<div class="panel panel-default"><div class="list-group-item">x</div></div>`},
		{"error page", `<html><body><p>El servicio no está disponible</p></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := NewResultParser().Extract(tt.html)
			require.NoError(t, err)
			assert.True(t, entry.IsFailure())
			assert.Equal(t, NoInformationReason, entry.Reason())
		})
	}
}

func TestHasNoResultsMessage(t *testing.T) {
	assert.True(t, HasNoResultsMessage(`<div class="alert">No se encontraron resultados para la búsqueda</div>`))
	assert.False(t, HasNoResultsMessage(listDetailHTML))
}

func TestJoinedTextRowWithSingleColumn(t *testing.T) {
	html := `<div class="panel panel-primary"><div class="list-group-item"><div class="col-sm-5">Solo etiqueta:</div></div></div>`
	fields, found, err := NewResultParser().ExtractFields(html)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, fields)
}
