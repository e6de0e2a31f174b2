package ingest

import (
	"bytes"
	"encoding/json"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

// parseJSON expects a top-level array of objects. Field names match exactly
// and case-sensitively. Numbers must be JSON numbers and strings JSON
// strings; a type mismatch rejects the batch.
func parseJSON(content []byte) ([]model.Record, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, invalid("expected a JSON array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, invalid("parse json: %v", err)
	}
	raws := make([]rawRecord, 0, len(elems))
	for i, el := range elems {
		raw, err := objectToRaw(el)
		if err != nil {
			return nil, invalid("record %d: %v", i+1, err)
		}
		raws = append(raws, raw)
	}
	return checkBatch(raws)
}

// objectToRaw reads the required fields by their exact names. The standard
// decoder folds case when matching struct fields, so the object is split
// into its keys first.
func objectToRaw(el json.RawMessage) (rawRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(el, &obj); err != nil {
		return rawRecord{}, err
	}
	if obj == nil {
		return rawRecord{}, &cellError{column: "record", reason: "not an object"}
	}
	var raw rawRecord
	targets := [len(requiredColumns)]any{&raw.Lat, &raw.Lng, &raw.Label, &raw.Type, &raw.Species, &raw.Year}
	for i, name := range requiredColumns {
		v, ok := obj[name]
		if !ok {
			return rawRecord{}, &cellError{column: name, reason: "missing"}
		}
		if err := json.Unmarshal(v, targets[i]); err != nil {
			return rawRecord{}, &cellError{column: name, reason: "wrong type"}
		}
	}
	return raw, nil
}
