package bot

import (
	"fmt"
	"strings"

	"github.com/debugsito/scrap-sunat/models"
)

// Chat commands
const (
	CommandStart    = "start"
	CommandHelp     = "help"
	CommandRUC      = "ruc"
	CommandName     = "nombre"
	CommandDocument = "documento"
)

// HelpText lists the commands the bot understands
const HelpText = "Comandos:\n" +
	"/ruc <número> - Consulta por RUC (11 dígitos)\n" +
	"/nombre <razón social> - Consulta por nombre o razón social\n" +
	"/documento <tipo> <número> - Consulta por documento (tipo: dni, ce, pasaporte, cedula)\n" +
	"/help - Muestra esta ayuda\n\n" +
	"También puedes enviar solo el nombre de la empresa."

// ParseCommand builds a validated search from a command and its arguments.
// Plain text is sent with an empty command and searched by name.
func ParseCommand(command, args string) (models.SearchRequest, error) {
	args = strings.TrimSpace(args)

	var req models.SearchRequest
	switch strings.ToLower(command) {
	case "", CommandName:
		req = models.SearchRequest{Mode: models.ModeByName, Value: strings.Join(strings.Fields(args), " ")}
	case CommandRUC:
		req = models.SearchRequest{Mode: models.ModeByRegistryNumber, Value: args}
	case CommandDocument:
		parts := strings.Fields(args)
		if len(parts) != 2 {
			return models.SearchRequest{}, &models.ValidationError{Reason: "uso: /documento <tipo> <número>"}
		}
		docType, err := models.ParseDocumentType(parts[0])
		if err != nil {
			return models.SearchRequest{}, err
		}
		req = models.SearchRequest{Mode: models.ModeByPersonalDocument, DocumentType: docType, Value: parts[1]}
	default:
		return models.SearchRequest{}, fmt.Errorf("comando desconocido: /%s", command)
	}

	if err := req.Validate(); err != nil {
		return models.SearchRequest{}, err
	}
	return req, nil
}
