package models

import (
	"fmt"
	"strings"
)

// SearchMode selects which form of the SUNAT lookup portal is used
type SearchMode string

const (
	ModeByName             SearchMode = "nombre"
	ModeByRegistryNumber   SearchMode = "ruc"
	ModeByPersonalDocument SearchMode = "documento"
)

// ParseSearchMode converts a user supplied mode into a SearchMode
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nombre", "name", "razon_social":
		return ModeByName, nil
	case "ruc":
		return ModeByRegistryNumber, nil
	case "documento", "document", "doc":
		return ModeByPersonalDocument, nil
	}
	return "", &ValidationError{Field: "tipo", Reason: fmt.Sprintf("tipo de búsqueda no válido: %q (use 'nombre', 'ruc' o 'documento')", s)}
}

// DocumentType is the option value of the portal's document selector (#cmbTipoDoc)
type DocumentType string

const (
	DocNationalID   DocumentType = "1" // DNI
	DocForeignCard  DocumentType = "4" // Carnet de extranjería
	DocPassport     DocumentType = "7"
	DocDiplomaticID DocumentType = "A" // Cédula diplomática
)

var documentAliases = map[string]DocumentType{
	"1":         DocNationalID,
	"dni":       DocNationalID,
	"4":         DocForeignCard,
	"ce":        DocForeignCard,
	"carnet":    DocForeignCard,
	"7":         DocPassport,
	"pasaporte": DocPassport,
	"passport":  DocPassport,
	"a":         DocDiplomaticID,
	"cedula":    DocDiplomaticID,
}

// ParseDocumentType accepts either the selector code or a common name
func ParseDocumentType(s string) (DocumentType, error) {
	if dt, ok := documentAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return dt, nil
	}
	return "", &ValidationError{Field: "tipo_doc", Reason: fmt.Sprintf("tipo de documento no válido: %q", s)}
}

// Label returns a human readable name for the document type
func (d DocumentType) Label() string {
	switch d {
	case DocNationalID:
		return "DNI"
	case DocForeignCard:
		return "Carnet de Extranjería"
	case DocPassport:
		return "Pasaporte"
	case DocDiplomaticID:
		return "Cédula Diplomática"
	}
	return string(d)
}

// SearchRequest is one query against the portal
type SearchRequest struct {
	Value        string
	Mode         SearchMode
	DocumentType DocumentType // required only for ModeByPersonalDocument
}

// Normalized returns the request with surrounding whitespace removed from Value.
// The portal receives exactly the value that was validated.
func (r SearchRequest) Normalized() SearchRequest {
	r.Value = strings.TrimSpace(r.Value)
	return r
}

// Validate checks the normalized request before any browser resources are committed
func (r SearchRequest) Validate() error {
	value := r.Normalized().Value
	if value == "" {
		return &ValidationError{Field: "valor", Reason: "el valor de búsqueda no puede estar vacío"}
	}

	switch r.Mode {
	case ModeByName:
	case ModeByRegistryNumber:
		if !isDigits(value, 11) {
			return &ValidationError{Field: "valor", Reason: "el RUC debe tener exactamente 11 dígitos numéricos"}
		}
	case ModeByPersonalDocument:
		switch r.DocumentType {
		case DocNationalID:
			if !isDigits(value, 8) {
				return &ValidationError{Field: "valor", Reason: "el DNI debe tener exactamente 8 dígitos numéricos"}
			}
		case DocForeignCard, DocPassport, DocDiplomaticID:
		case "":
			return &ValidationError{Field: "tipo_doc", Reason: "el tipo de documento es obligatorio para búsquedas por documento"}
		default:
			return &ValidationError{Field: "tipo_doc", Reason: fmt.Sprintf("tipo de documento no válido: %q", r.DocumentType)}
		}
	default:
		return &ValidationError{Field: "tipo", Reason: fmt.Sprintf("tipo de búsqueda no válido: %q", r.Mode)}
	}

	return nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String is used in logs
func (r SearchRequest) String() string {
	if r.Mode == ModeByPersonalDocument {
		return fmt.Sprintf("%s(%s)=%s", r.Mode, r.DocumentType.Label(), r.Value)
	}
	return fmt.Sprintf("%s=%s", r.Mode, r.Value)
}
