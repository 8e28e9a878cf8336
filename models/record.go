package models

import (
	"bytes"
	"encoding/json"
)

// RawField is one label/value pair as read from the rendered page
type RawField struct {
	Label string
	Value string
}

// Field is one normalized key with its cleaned value. A nil Value is the explicit absent marker.
type Field struct {
	Key   string
	Value *string
}

// Record is an ordered, immutable mapping of canonical keys to cleaned values
type Record struct {
	fields []Field
}

// NewRecord builds a Record. A repeated key keeps its first position and takes the last value.
func NewRecord(fields []Field) Record {
	out := make([]Field, 0, len(fields))
	index := make(map[string]int, len(fields))
	for _, f := range fields {
		f.Value = copyValue(f.Value)
		if i, ok := index[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		index[f.Key] = len(out)
		out = append(out, f)
	}
	return Record{fields: out}
}

func copyValue(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// Get returns the value for key. found reports whether the key exists; present is false for absent values.
func (r Record) Get(key string) (value string, present bool, found bool) {
	for _, f := range r.fields {
		if f.Key == key {
			if f.Value == nil {
				return "", false, true
			}
			return *f.Value, true, true
		}
	}
	return "", false, false
}

// Keys returns the keys in order
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the ordered fields
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	for i, f := range r.fields {
		out[i] = Field{Key: f.Key, Value: copyValue(f.Value)}
	}
	return out
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.fields)
}

// MarshalJSON writes the record as an object preserving field order; absent values become null
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if f.Value == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(*f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Str is a helper for building present field values
func Str(s string) *string {
	return &s
}
