// Package features defines the car-specification inputs and their mapping
// onto the column names the trained pricing pipeline expects.
package features

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IlyassOtmani/car-price-ml/internal/record"
)

// Kind is the semantic type of an input
type Kind string

const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

// Count is the number of inputs the pipeline is trained on
const Count = 24

// Request is one prediction request: a snapshot of every input
type Request struct {
	Symboling        float64 `json:"symboling"`
	Wheelbase        float64 `json:"wheelbase"`
	CarLength        float64 `json:"carlength"`
	CarWidth         float64 `json:"carwidth"`
	CarHeight        float64 `json:"carheight"`
	CurbWeight       float64 `json:"curbweight"`
	EngineSize       float64 `json:"enginesize"`
	BoreRatio        float64 `json:"boreratio"`
	Stroke           float64 `json:"stroke"`
	CompressionRatio float64 `json:"compressionratio"`
	Horsepower       float64 `json:"horsepower"`
	PeakRPM          float64 `json:"peakrpm"`
	CityMPG          float64 `json:"citympg"`
	HighwayMPG       float64 `json:"highwaympg"`
	FuelType         string  `json:"fueltype"`
	Aspiration       string  `json:"aspiration"`
	DoorNumber       string  `json:"doornumber"`
	CarBody          string  `json:"carbody"`
	DriveWheel       string  `json:"drivewheel"`
	EngineLocation   string  `json:"enginelocation"`
	EngineType       string  `json:"enginetype"`
	CylinderNumber   string  `json:"cylindernumber"`
	FuelSystem       string  `json:"fuelsystem"`
	CarBrand         string  `json:"carbrand"`
}

// Column maps one input field to the pipeline column it feeds
type Column struct {
	Field  string
	Column string
	Kind   Kind

	num func(r *Request) *float64
	cat func(r *Request) *string
}

// columns is the positional order of the inputs. Column names must match the
// trained pipeline exactly; the brand column was trained as "CarBrand".
var columns = []Column{
	numeric("symboling", "symboling", func(r *Request) *float64 { return &r.Symboling }),
	numeric("wheelbase", "wheelbase", func(r *Request) *float64 { return &r.Wheelbase }),
	numeric("carlength", "carlength", func(r *Request) *float64 { return &r.CarLength }),
	numeric("carwidth", "carwidth", func(r *Request) *float64 { return &r.CarWidth }),
	numeric("carheight", "carheight", func(r *Request) *float64 { return &r.CarHeight }),
	numeric("curbweight", "curbweight", func(r *Request) *float64 { return &r.CurbWeight }),
	numeric("enginesize", "enginesize", func(r *Request) *float64 { return &r.EngineSize }),
	numeric("boreratio", "boreratio", func(r *Request) *float64 { return &r.BoreRatio }),
	numeric("stroke", "stroke", func(r *Request) *float64 { return &r.Stroke }),
	numeric("compressionratio", "compressionratio", func(r *Request) *float64 { return &r.CompressionRatio }),
	numeric("horsepower", "horsepower", func(r *Request) *float64 { return &r.Horsepower }),
	numeric("peakrpm", "peakrpm", func(r *Request) *float64 { return &r.PeakRPM }),
	numeric("citympg", "citympg", func(r *Request) *float64 { return &r.CityMPG }),
	numeric("highwaympg", "highwaympg", func(r *Request) *float64 { return &r.HighwayMPG }),
	categorical("fueltype", "fueltype", func(r *Request) *string { return &r.FuelType }),
	categorical("aspiration", "aspiration", func(r *Request) *string { return &r.Aspiration }),
	categorical("doornumber", "doornumber", func(r *Request) *string { return &r.DoorNumber }),
	categorical("carbody", "carbody", func(r *Request) *string { return &r.CarBody }),
	categorical("drivewheel", "drivewheel", func(r *Request) *string { return &r.DriveWheel }),
	categorical("enginelocation", "enginelocation", func(r *Request) *string { return &r.EngineLocation }),
	categorical("enginetype", "enginetype", func(r *Request) *string { return &r.EngineType }),
	categorical("cylindernumber", "cylindernumber", func(r *Request) *string { return &r.CylinderNumber }),
	categorical("fuelsystem", "fuelsystem", func(r *Request) *string { return &r.FuelSystem }),
	categorical("carbrand", "CarBrand", func(r *Request) *string { return &r.CarBrand }),
}

var byField = func() map[string]int {
	m := make(map[string]int, len(columns))
	for i, c := range columns {
		m[c.Field] = i
	}
	return m
}()

func numeric(field, column string, get func(r *Request) *float64) Column {
	return Column{Field: field, Column: column, Kind: Numeric, num: get}
}

func categorical(field, column string, get func(r *Request) *string) Column {
	return Column{Field: field, Column: column, Kind: Categorical, cat: get}
}

// Columns returns the field -> pipeline column table in positional order
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// Lookup finds a column by its input field name
func Lookup(field string) (Column, bool) {
	i, ok := byField[field]
	if !ok {
		return Column{}, false
	}
	return columns[i], true
}

// FieldNames returns the input field names in positional order
func FieldNames() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Field
	}
	return out
}

// ColumnNames returns the pipeline column names in positional order
func ColumnNames() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Column
	}
	return out
}

// Values returns the positional snapshot of the request
func (r Request) Values() []record.Value {
	out := make([]record.Value, len(columns))
	for i, c := range columns {
		if c.Kind == Numeric {
			out[i] = record.Number(*c.num(&r))
		} else {
			out[i] = record.Text(*c.cat(&r))
		}
	}
	return out
}

// Record assembles the single-row labeled record the pipeline scores
func (r Request) Record() record.Record {
	rec, err := record.New(ColumnNames(), r.Values())
	if err != nil {
		// the column table is static and has no duplicates
		panic(err)
	}
	return rec
}

// Number returns a numeric field by name
func (r Request) Number(field string) (float64, bool) {
	c, ok := Lookup(field)
	if !ok || c.Kind != Numeric {
		return 0, false
	}
	return *c.num(&r), true
}

// Label returns a categorical field by name
func (r Request) Label(field string) (string, bool) {
	c, ok := Lookup(field)
	if !ok || c.Kind != Categorical {
		return "", false
	}
	return *c.cat(&r), true
}

// Set assigns one field from its textual form
func (r *Request) Set(field, raw string) error {
	c, ok := Lookup(field)
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	if c.Kind == Categorical {
		*c.cat(r) = raw
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("field %s: %q is not a number", field, raw)
	}
	*c.num(r) = v
	return nil
}

// FromValues builds a request from positional values in the order of Columns.
// Numeric positions accept any Go number or a numeric string; categorical
// positions accept strings. Domains are not checked here.
func FromValues(values []interface{}) (Request, error) {
	var r Request
	if len(values) != len(columns) {
		return r, fmt.Errorf("expected %d values, got %d", len(columns), len(values))
	}
	for i, c := range columns {
		if c.Kind == Categorical {
			s, ok := values[i].(string)
			if !ok {
				return r, fmt.Errorf("position %d (%s): expected string, got %T", i, c.Field, values[i])
			}
			*c.cat(&r) = s
			continue
		}
		v, err := toFloat(values[i])
		if err != nil {
			return r, fmt.Errorf("position %d (%s): %w", i, c.Field, err)
		}
		*c.num(&r) = v
	}
	return r, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
