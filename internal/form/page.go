package form

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/IlyassOtmani/car-price-ml/internal/features"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// PageData is everything the prediction page shows for one response
type PageData struct {
	Request features.Request
	Result  string
	Error   string
	Fields  map[string]string
	Presets []Preset
	Version string
}

type widgetView struct {
	Field    string
	Label    string
	IsSlider bool
	Min      string
	Max      string
	Step     string
	Choices  []string
	Value    string
	Message  string
}

type sectionView struct {
	Title   string
	Widgets []widgetView
}

type pageView struct {
	Title       string
	Description template.HTML
	Guide       template.HTML
	Button      string
	OutputLabel string
	Columns     [][]sectionView
	Result      string
	Error       string
	Presets     []Preset
	Version     string
}

func parsePage() (*template.Template, error) {
	t, err := template.New("page").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return t, nil
}

// Render writes the prediction page with the request's values filled in
func (f *Form) Render(w io.Writer, data PageData) error {
	view := pageView{
		Title:       f.schema.Title,
		Description: f.descriptionHTML,
		Guide:       f.guideHTML,
		Button:      f.schema.Button,
		OutputLabel: f.schema.OutputLabel,
		Result:      data.Result,
		Error:       data.Error,
		Presets:     data.Presets,
		Version:     data.Version,
	}
	if view.Presets == nil {
		view.Presets = f.examples
	}

	for _, col := range f.schema.Columns {
		var sections []sectionView
		for _, sec := range col.Sections {
			sv := sectionView{Title: sec.Title}
			for _, wd := range sec.Widgets {
				sv.Widgets = append(sv.Widgets, widgetView{
					Field:    wd.Field,
					Label:    wd.Label,
					IsSlider: wd.Widget == Slider,
					Min:      formatNumber(wd.Min),
					Max:      formatNumber(wd.Max),
					Step:     formatNumber(wd.Step),
					Choices:  wd.Choices,
					Value:    currentValue(data.Request, wd),
					Message:  data.Fields[wd.Field],
				})
			}
			sections = append(sections, sv)
		}
		view.Columns = append(view.Columns, sections)
	}

	return f.page.ExecuteTemplate(w, "page.html.tmpl", view)
}

func currentValue(req features.Request, w *Widget) string {
	if w.Kind == features.Numeric {
		v, _ := req.Number(w.Field)
		return formatNumber(v)
	}
	v, _ := req.Label(w.Field)
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
