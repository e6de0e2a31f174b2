package ingest

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

// rawRecord is the wire shape shared by both formats. Pointers distinguish
// an absent field from a zero value.
type rawRecord struct {
	Lat     *float64 `json:"lat" validate:"required,finite"`
	Lng     *float64 `json:"lng" validate:"required,finite"`
	Label   *string  `json:"label" validate:"required"`
	Type    *string  `json:"type" validate:"required"`
	Species *string  `json:"species" validate:"required"`
	Year    *float64 `json:"year" validate:"required,finite,integral"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			return name
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		_ = v.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32
		})
		validate = v
	})
	return validate
}

// check validates one raw record and converts it.
func (r rawRecord) check() (model.Record, error) {
	if err := schema().Struct(r); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return model.Record{}, fmt.Errorf("field %s: failed %q", fe.Field(), fe.Tag())
		}
		return model.Record{}, fmt.Errorf("validate: %w", err)
	}
	return model.Record{
		Lat:     *r.Lat,
		Lng:     *r.Lng,
		Label:   *r.Label,
		Type:    *r.Type,
		Species: *r.Species,
		Year:    int(*r.Year),
	}, nil
}

// checkBatch converts every raw record or rejects the whole batch.
func checkBatch(raws []rawRecord) ([]model.Record, error) {
	out := make([]model.Record, 0, len(raws))
	for i, r := range raws {
		rec, err := r.check()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidFile, i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
