// Package ingest turns uploaded CSV or JSON bytes into validated point
// records. A batch is accepted whole or rejected whole.
package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

// ErrInvalidFile is the single user-facing rejection. Every parse or
// validation failure wraps it.
var ErrInvalidFile = errors.New("Invalid file. Must include lat, lng, label, type, species, year.")

// CSVMode selects how CSV rows are split into cells.
type CSVMode int

const (
	// CSVSimple splits every line on commas with no quote handling.
	CSVSimple CSVMode = iota
	// CSVQuoted accepts RFC 4180 quoted fields. Opt-in only.
	CSVQuoted
)

var utf8BOM = []byte("\xEF\xBB\xBF")

// Columns the CSV header must carry, in any order.
var requiredColumns = [...]string{"lat", "lng", "label", "type", "species", "year"}

type Options struct {
	CSVMode CSVMode
}

type Parser struct {
	opts Options
}

func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Parse returns the records of content, or an error wrapping ErrInvalidFile.
// On error no records are returned.
func (p *Parser) Parse(content []byte, format model.Format) ([]model.Record, error) {
	var (
		recs []model.Record
		err  error
	)
	content = bytes.TrimPrefix(content, utf8BOM)
	switch format {
	case model.FormatCSV:
		if p.opts.CSVMode == CSVQuoted {
			recs, err = parseCSVQuoted(content)
		} else {
			recs, err = parseCSVSimple(string(content))
		}
	case model.FormatJSON:
		recs, err = parseJSON(content)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidFile, format)
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFile, fmt.Sprintf(format, args...))
}
