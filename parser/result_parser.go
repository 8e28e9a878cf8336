package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/debugsito/scrap-sunat/models"
	"github.com/debugsito/scrap-sunat/normalizer"
)

const (
	// NoInformationReason is returned when the page has no result panel
	NoInformationReason = "No se encontró información"

	panelSelector  = ".panel.panel-primary"
	rowSelector    = ".list-group-item"
	columnSelector = ".col-sm-5, .col-sm-7, .col-sm-3"
	directHeading  = "Resultado de la Búsqueda"
	noResultsText  = "No se encontraron"
	tableSeparator = " | "
)

// ResultParser extracts taxpayer records from rendered SUNAT result pages
type ResultParser struct{}

// NewResultParser creates a new ResultParser instance
func NewResultParser() *ResultParser {
	return &ResultParser{}
}

// Extract turns the markup of a result page into a normalized record entry.
// A page without a result panel yields a Failure entry, not an error.
func (p *ResultParser) Extract(htmlContent string) (models.ResultEntry, error) {
	fields, found, err := p.ExtractFields(htmlContent)
	if err != nil {
		return models.ResultEntry{}, err
	}
	if !found {
		return models.FailureEntry(NoInformationReason), nil
	}
	return models.RecordEntry(normalizer.Normalize(fields)), nil
}

// ExtractFields returns the raw label/value pairs of the result panel.
// found is false when no panel is present.
func (p *ResultParser) ExtractFields(htmlContent string) (fields []models.RawField, found bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse HTML: %w", err)
	}

	panel := doc.Find(panelSelector).First()
	if panel.Length() == 0 {
		return nil, false, nil
	}

	direct := isDirectShape(panel)
	panel.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		fields = append(fields, extractRow(row, direct)...)
	})
	return fields, true, nil
}

// IsDirectShape reports whether the page is the single-result rendering that skips the list
func IsDirectShape(htmlContent string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return false
	}
	panel := doc.Find(panelSelector).First()
	return panel.Length() > 0 && isDirectShape(panel)
}

// HasNoResultsMessage reports whether the page shows the portal's "no results" notice
func HasNoResultsMessage(htmlContent string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return strings.Contains(htmlContent, noResultsText)
	}
	return strings.Contains(doc.Text(), noResultsText)
}

func isDirectShape(panel *goquery.Selection) bool {
	return strings.Contains(panel.Text(), directHeading)
}

// extractRow reads label/value column pairs. Wide rows hold one pair (col-sm-5 + col-sm-7),
// narrow rows hold two (four col-sm-3 columns).
func extractRow(row *goquery.Selection, direct bool) []models.RawField {
	cols := row.Find(columnSelector)
	var fields []models.RawField
	for i := 0; i+1 < cols.Length(); i += 2 {
		labelCol, valueCol := cols.Eq(i), cols.Eq(i+1)

		var label, value string
		if direct {
			label = directLabel(labelCol)
			value = directValue(valueCol)
		} else {
			label = joinedText(labelCol, "")
			value = joinedText(valueCol, " ")
		}

		label = cleanLabel(label)
		if label == "" {
			continue
		}
		fields = append(fields, models.RawField{Label: label, Value: value})
	}
	return fields
}

func directLabel(col *goquery.Selection) string {
	if h := col.Find("h4").First(); h.Length() > 0 {
		return joinedText(h, " ")
	}
	return joinedText(col, " ")
}

// directValue tries a single text element, then a value table, then every text node of the column
func directValue(col *goquery.Selection) string {
	if rows := col.Find("table tr"); rows.Length() > 0 {
		var parts []string
		rows.Each(func(_ int, tr *goquery.Selection) {
			if text := joinedText(tr, " "); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) == 1 {
			return parts[0]
		}
		if len(parts) > 1 {
			return strings.Join(parts, tableSeparator)
		}
	}

	if el := col.Find("p, h4").First(); el.Length() > 0 {
		if text := joinedText(el, " "); text != "" {
			return text
		}
	}

	return joinedText(col, " ")
}

func cleanLabel(label string) string {
	return strings.TrimSpace(strings.ReplaceAll(label, ":", ""))
}

// joinedText collects every descendant text node, trimmed, joined with sep
func joinedText(sel *goquery.Selection, sep string) string {
	var parts []string
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if text := strings.TrimSpace(c.Text()); text != "" {
					parts = append(parts, text)
				}
				return
			}
			walk(c)
		})
	}
	walk(sel)
	return strings.Join(parts, sep)
}
