// Package form holds the widget schema of the prediction page: one widget per
// input with a fixed domain and default, and the snapshot taken on submit.
package form

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/IlyassOtmani/car-price-ml/internal/features"
)

//go:embed form.yaml
var schemaYAML []byte

// Widget kinds
const (
	Slider   = "slider"
	Dropdown = "dropdown"
)

// Widget is a single input control with a fixed valid domain
type Widget struct {
	Field   string        `yaml:"field" json:"field"`
	Widget  string        `yaml:"widget" json:"widget"`
	Label   string        `yaml:"label" json:"label"`
	Min     float64       `yaml:"min" json:"min,omitempty"`
	Max     float64       `yaml:"max" json:"max,omitempty"`
	Step    float64       `yaml:"step" json:"step,omitempty"`
	Choices []string      `yaml:"choices" json:"choices,omitempty"`
	Default interface{}   `yaml:"default" json:"default"`
	Column  string        `yaml:"-" json:"column"`
	Kind    features.Kind `yaml:"-" json:"kind"`
}

// Section groups widgets under a heading
type Section struct {
	Title   string    `yaml:"title" json:"title"`
	Widgets []*Widget `yaml:"widgets" json:"widgets"`
}

// Column is one column of sections on the page
type Column struct {
	Sections []*Section `yaml:"sections" json:"sections"`
}

// Example is a built-in configuration given as positional values
type Example struct {
	ID     string        `yaml:"id" json:"id"`
	Title  string        `yaml:"title" json:"title"`
	Values []interface{} `yaml:"values" json:"values"`
}

// Schema is the page definition
type Schema struct {
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description"`
	Button      string    `yaml:"button" json:"button"`
	OutputLabel string    `yaml:"output_label" json:"output_label"`
	Columns     []*Column `yaml:"columns" json:"columns"`
	Examples    []Example `yaml:"examples" json:"examples"`
	Guide       string    `yaml:"guide" json:"guide"`
}

// Preset is a named request
type Preset struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Builtin bool             `json:"builtin"`
	Request features.Request `json:"request"`
}

// Form is a validated schema ready to parse submissions and render the page
type Form struct {
	schema   Schema
	widgets  []*Widget
	defaults features.Request
	examples []Preset

	descriptionHTML template.HTML
	guideHTML       template.HTML
	page            *template.Template
}

// Load parses the embedded page schema
func Load() (*Form, error) {
	return New(schemaYAML)
}

// New parses and checks a page schema against the feature table
func New(data []byte) (*Form, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse form schema: %w", err)
	}

	f := &Form{schema: s}
	if err := f.bindWidgets(); err != nil {
		return nil, err
	}
	if err := f.bindExamples(); err != nil {
		return nil, err
	}

	var err error
	if f.descriptionHTML, err = renderMarkdown(s.Description); err != nil {
		return nil, err
	}
	if f.guideHTML, err = renderMarkdown(s.Guide); err != nil {
		return nil, err
	}
	if f.page, err = parsePage(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Form) bindWidgets() error {
	byField := make(map[string]*Widget)
	for _, col := range f.schema.Columns {
		for _, sec := range col.Sections {
			for _, w := range sec.Widgets {
				if _, dup := byField[w.Field]; dup {
					return fmt.Errorf("field %s has more than one widget", w.Field)
				}
				if err := bindWidget(w); err != nil {
					return err
				}
				byField[w.Field] = w
			}
		}
	}

	for _, c := range features.Columns() {
		w, ok := byField[c.Field]
		if !ok {
			return fmt.Errorf("field %s has no widget", c.Field)
		}
		f.widgets = append(f.widgets, w)
		if err := setDefault(&f.defaults, w); err != nil {
			return err
		}
	}
	return nil
}

func bindWidget(w *Widget) error {
	c, ok := features.Lookup(w.Field)
	if !ok {
		return fmt.Errorf("widget for unknown field %q", w.Field)
	}
	w.Column = c.Column
	w.Kind = c.Kind

	switch w.Widget {
	case Slider:
		if c.Kind != features.Numeric {
			return fmt.Errorf("field %s: slider on a categorical field", w.Field)
		}
		if w.Min >= w.Max || w.Step <= 0 {
			return fmt.Errorf("field %s: bad slider range %v..%v step %v", w.Field, w.Min, w.Max, w.Step)
		}
		v, ok := toNumber(w.Default)
		if !ok || v < w.Min || v > w.Max {
			return fmt.Errorf("field %s: default %v outside %v..%v", w.Field, w.Default, w.Min, w.Max)
		}
		w.Default = v
	case Dropdown:
		if c.Kind != features.Categorical {
			return fmt.Errorf("field %s: dropdown on a numeric field", w.Field)
		}
		if len(w.Choices) == 0 {
			return fmt.Errorf("field %s: dropdown without choices", w.Field)
		}
		d, ok := w.Default.(string)
		if !ok || !w.allows(d) {
			return fmt.Errorf("field %s: default %v is not a choice", w.Field, w.Default)
		}
	default:
		return fmt.Errorf("field %s: unknown widget %q", w.Field, w.Widget)
	}
	return nil
}

func setDefault(r *features.Request, w *Widget) error {
	switch d := w.Default.(type) {
	case float64:
		return r.Set(w.Field, strconv.FormatFloat(d, 'f', -1, 64))
	case string:
		return r.Set(w.Field, d)
	}
	return fmt.Errorf("field %s: unusable default %v", w.Field, w.Default)
}

func (f *Form) bindExamples() error {
	seen := make(map[string]bool)
	for _, ex := range f.schema.Examples {
		if ex.ID == "" || seen[ex.ID] {
			return fmt.Errorf("example %q: missing or duplicate id", ex.ID)
		}
		seen[ex.ID] = true
		req, err := features.FromValues(ex.Values)
		if err != nil {
			return fmt.Errorf("example %s: %w", ex.ID, err)
		}
		if err := f.Validate(req); err != nil {
			return fmt.Errorf("example %s: %w", ex.ID, err)
		}
		f.examples = append(f.examples, Preset{ID: ex.ID, Title: ex.Title, Builtin: true, Request: req})
	}
	return nil
}

// Schema returns the page definition with widgets bound to pipeline columns
func (f *Form) Schema() Schema {
	return f.schema
}

// Widgets returns the widgets in positional order
func (f *Form) Widgets() []*Widget {
	return append([]*Widget(nil), f.widgets...)
}

// Defaults returns the request formed by every widget's default value
func (f *Form) Defaults() features.Request {
	return f.defaults
}

// Examples returns the built-in example configurations
func (f *Form) Examples() []Preset {
	return append([]Preset(nil), f.examples...)
}

// Parse takes the snapshot of a submitted form. Every field is required.
func (f *Form) Parse(values url.Values) (features.Request, error) {
	var req features.Request
	verr := &ValidationError{}
	for _, w := range f.widgets {
		raw, ok := values[w.Field]
		if !ok || len(raw) == 0 {
			verr.add(w.Field, "is required")
			continue
		}
		if err := req.Set(w.Field, raw[0]); err != nil {
			verr.add(w.Field, "must be a number")
		}
	}
	if verr.has() {
		return req, verr
	}
	return req, f.Validate(req)
}

// Validate enforces each widget's domain: slider bounds and dropdown choices
func (f *Form) Validate(req features.Request) error {
	verr := &ValidationError{}
	for _, w := range f.widgets {
		switch w.Widget {
		case Slider:
			v, _ := req.Number(w.Field)
			if math.IsNaN(v) || v < w.Min || v > w.Max {
				verr.add(w.Field, fmt.Sprintf("must be between %v and %v", w.Min, w.Max))
			}
		case Dropdown:
			v, _ := req.Label(w.Field)
			if !w.allows(v) {
				verr.add(w.Field, fmt.Sprintf("must be one of %s", strings.Join(w.Choices, ", ")))
			}
		}
	}
	if verr.has() {
		return verr
	}
	return nil
}

func (w *Widget) allows(choice string) bool {
	for _, c := range w.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// FieldError is one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field outside its widget's domain
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) has() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.Field + " " + fe.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

var sanitizer = bluemonday.UGCPolicy()

func renderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil
}
