// Package normalizer canonicalizes the label/value text read from SUNAT result panels.
package normalizer

import "github.com/debugsito/scrap-sunat/models"

// Normalize cleans every raw field and maps its key to the canonical schema
func Normalize(raw []models.RawField) models.Record {
	fields := make([]models.Field, 0, len(raw))
	for _, rf := range raw {
		key := MapKey(NormalizeKey(rf.Label))
		if key == "" {
			continue
		}
		f := models.Field{Key: key}
		if v, ok := CleanValue(rf.Value); ok {
			f.Value = &v
		}
		fields = append(fields, f)
	}
	return models.NewRecord(fields)
}
