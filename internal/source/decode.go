package source

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/theirongolddev/salesdash/internal/model"
)

// Default field names used by the series collection.
const (
	DefaultDateField  = "date"
	DefaultValueField = "value"
)

// ValidationError describes the first record rejected during strict ingestion.
type ValidationError struct {
	Index  int    // zero-based position in source order
	Field  string // source field name
	Raw    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("source: record %d: field %q (%q): %s", e.Index, e.Field, e.Raw, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Float64 && fl.Field().Kind() != reflect.Float32 {
			return false
		}
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// Decoder turns raw source fields into SalesRecords.
type Decoder struct {
	DateField  string
	ValueField string
	// Strict rejects records with a malformed date or a non-finite value.
	// When false, unreadable values become NaN and flow through downstream.
	Strict bool
}

// DefaultDecoder returns a strict decoder over the default field names.
func DefaultDecoder() Decoder {
	return Decoder{DateField: DefaultDateField, ValueField: DefaultValueField, Strict: true}
}

func (d Decoder) withDefaults() Decoder {
	if d.DateField == "" {
		d.DateField = DefaultDateField
	}
	if d.ValueField == "" {
		d.ValueField = DefaultValueField
	}
	return d
}

// Record builds the record at index from an already extracted date and value.
// valueErr is the coercion error for the value, if any; rawValue is only used
// for error reporting.
func (d Decoder) Record(index int, date string, value float64, rawValue string, valueErr error) (model.SalesRecord, error) {
	rec := model.SalesRecord{Date: date, Value: value}
	if !d.Strict {
		return rec, nil
	}

	if valueErr != nil {
		return rec, &ValidationError{Index: index, Field: d.ValueField, Raw: rawValue, Reason: valueErr.Error()}
	}

	if err := validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return rec, fmt.Errorf("source: validating record %d: %w", index, err)
		}
		fe := verrs[0]
		switch fe.StructField() {
		case "Date":
			return rec, &ValidationError{Index: index, Field: d.DateField, Raw: date, Reason: "not a YYYY-MM-DD date"}
		default:
			return rec, &ValidationError{Index: index, Field: d.ValueField, Raw: rawValue, Reason: "value is not finite"}
		}
	}

	return rec, nil
}
