package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

// columnIndex maps each required column to its position in the header.
type columnIndex [len(requiredColumns)]int

const (
	colLat = iota
	colLng
	colLabel
	colType
	colSpecies
	colYear
)

func indexHeader(tokens []string) (columnIndex, error) {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}
	for pos, tok := range tokens {
		name := strings.ToLower(strings.TrimSpace(tok))
		for i, want := range requiredColumns {
			// first occurrence wins
			if name == want && idx[i] < 0 {
				idx[i] = pos
			}
		}
	}
	for i, pos := range idx {
		if pos < 0 {
			return idx, invalid("header: missing column %q", requiredColumns[i])
		}
	}
	return idx, nil
}

// parseCSVSimple splits on newlines and commas only. A comma inside a value
// shifts the columns of that row; this is a known limitation of the format.
func parseCSVSimple(content string) ([]model.Record, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, invalid("empty file")
	}
	lines := strings.Split(text, "\n")

	idx, err := indexHeader(strings.Split(lines[0], ","))
	if err != nil {
		return nil, err
	}

	raws := make([]rawRecord, 0, len(lines)-1)
	for i, line := range lines[1:] {
		cells := strings.Split(strings.TrimSuffix(line, "\r"), ",")
		raw, err := rowToRaw(cells, idx)
		if err != nil {
			return nil, invalid("row %d: %v", i+2, err)
		}
		raws = append(raws, raw)
	}
	return checkBatch(raws)
}

func parseCSVQuoted(content []byte) ([]model.Record, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimSpace(content)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, invalid("empty file")
	}
	if err != nil {
		return nil, invalid("header: %v", err)
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var raws []rawRecord
	for row := 2; ; row++ {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalid("row %d: %v", row, err)
		}
		raw, err := rowToRaw(cells, idx)
		if err != nil {
			return nil, invalid("row %d: %v", row, err)
		}
		raws = append(raws, raw)
	}
	return checkBatch(raws)
}

type cellError struct {
	column string
	reason string
}

func (e *cellError) Error() string { return "column " + e.column + ": " + e.reason }

// ParseFloat takes hex floats ("0x1p-2") which are not decimal numbers.
func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// rowToRaw converts cells positionally. String cells are kept verbatim.
func rowToRaw(cells []string, idx columnIndex) (rawRecord, error) {
	get := func(col int) (string, error) {
		pos := idx[col]
		if pos >= len(cells) {
			return "", &cellError{column: requiredColumns[col], reason: "missing"}
		}
		return cells[pos], nil
	}
	num := func(col int) (*float64, error) {
		s, err := get(col)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || isHexLiteral(s) {
			return nil, &cellError{column: requiredColumns[col], reason: "not a number"}
		}
		return &f, nil
	}
	str := func(col int) (*string, error) {
		s, err := get(col)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}

	var (
		raw rawRecord
		err error
	)
	if raw.Lat, err = num(colLat); err != nil {
		return raw, err
	}
	if raw.Lng, err = num(colLng); err != nil {
		return raw, err
	}
	if raw.Label, err = str(colLabel); err != nil {
		return raw, err
	}
	if raw.Type, err = str(colType); err != nil {
		return raw, err
	}
	if raw.Species, err = str(colSpecies); err != nil {
		return raw, err
	}
	ys, err := get(colYear)
	if err != nil {
		return raw, err
	}
	y, convErr := strconv.Atoi(strings.TrimSpace(ys))
	if convErr != nil {
		return raw, &cellError{column: "year", reason: "not an integer"}
	}
	yf := float64(y)
	raw.Year = &yf
	return raw, nil
}
