package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyassOtmani/car-price-ml/internal/api"
	"github.com/IlyassOtmani/car-price-ml/internal/config"
	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/models"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline/pipelinetest"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
	"github.com/IlyassOtmani/car-price-ml/internal/presets"
)

type failingPredictor struct{}

func (failingPredictor) PredictRequest(ctx context.Context, req features.Request) (predict.Result, error) {
	return predict.Result{ID: "x"}, errors.New("model prediction failed: boom")
}

func newTestServer(t *testing.T, p api.Predictor) (*Server, *form.Form) {
	t.Helper()
	f, err := form.Load()
	require.NoError(t, err)
	store, err := presets.NewStore("", f.Examples())
	require.NoError(t, err)

	model := pipelinetest.MustBuild(t, pipelinetest.Linear())
	if p == nil {
		p = predict.New(model)
	}
	srv, err := New(config.Config{Host: "127.0.0.1", Port: 7860, Version: "test"}, Deps{
		Predictor: p,
		Form:      f,
		Presets:   store,
		Info:      model.Info(),
	})
	require.NoError(t, err)
	return srv, f
}

func get(t *testing.T, srv *Server, path string) (*http.Response, string) {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	body, _ := io.ReadAll(w.Result().Body)
	return w.Result(), string(body)
}

func postForm(t *testing.T, srv *Server, values url.Values) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/predict", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	body, _ := io.ReadAll(w.Result().Body)
	return w.Result(), string(body)
}

func formValues(req features.Request) url.Values {
	values := url.Values{}
	for i, v := range req.Values() {
		values.Set(features.FieldNames()[i], v.String())
	}
	return values
}

func TestIndexShowsDefaults(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, body := get(t, srv, "/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `<option value="toyota" selected>toyota</option>`)
	assert.Contains(t, body, `href="/?preset=luxury"`)
	assert.Contains(t, body, "car-price-ml test")
}

func TestIndexWithPreset(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := get(t, srv, "/?preset=luxury")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<option value="bmw" selected>bmw</option>`)

	resp, body = get(t, srv, "/?preset=nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Unknown preset: nope")
}

var numberInput = regexp.MustCompile(`<input type="number" id="(\w+)" name="(\w+)" min="[^"]*" max="[^"]*" step="([^"]*)" value="([^"]*)">`)

func TestPresetSliderValuesAreSubmittedExactly(t *testing.T) {
	srv, f := newTestServer(t, nil)

	for _, ex := range f.Examples() {
		t.Run(ex.ID, func(t *testing.T) {
			resp, body := get(t, srv, "/?preset="+ex.ID)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NotRegexp(t, `<input type="range"[^>]* name=`, body)

			matches := numberInput.FindAllStringSubmatch(body, -1)
			numeric := 0
			for _, c := range features.Columns() {
				if c.Kind == features.Numeric {
					numeric++
				}
			}
			require.Len(t, matches, numeric)

			for _, m := range matches {
				field, step, value := m[2], m[3], m[4]
				assert.Equal(t, "any", step, field)

				want, ok := ex.Request.Number(field)
				require.True(t, ok, field)
				got, err := strconv.ParseFloat(value, 64)
				require.NoError(t, err, field)
				assert.Equal(t, want, got, field)
			}
		})
	}
}

func TestSubmitFormShowsPrice(t *testing.T) {
	srv, f := newTestServer(t, nil)
	examples := f.Examples()

	resp, body := postForm(t, srv, formValues(examples[0].Request))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="$16,390.00"`)
	assert.Contains(t, body, `<option value="toyota" selected>toyota</option>`)
}

func TestSubmitInvalidFormShowsFieldErrors(t *testing.T) {
	srv, f := newTestServer(t, nil)
	values := formValues(f.Defaults())
	values.Set("carbrand", "lada")
	values.Del("stroke")

	resp, body := postForm(t, srv, values)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `<p class="field-error">is required</p>`)
	assert.Contains(t, body, "invalid input: stroke is required")
}

func TestSubmitModelFailureShowsError(t *testing.T) {
	srv, f := newTestServer(t, failingPredictor{})

	resp, body := postForm(t, srv, formValues(f.Defaults()))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Error: model prediction failed: boom")
	assert.Contains(t, body, `id="output" readonly value=""`)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	first, _ := get(t, srv, "/api/health")
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.NotEmpty(t, first.Header.Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.NotEqual(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.NotEqual(t, first.Header.Get(RequestIDHeader), w.Header().Get(RequestIDHeader))
}

func TestPredictionUsesResponseRequestID(t *testing.T) {
	srv, f := newTestServer(t, nil)

	payload, err := json.Marshal(f.Examples()[0].Request)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/predict", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body models.PredictResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, w.Header().Get(RequestIDHeader), body.RequestID)
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := get(t, srv, "/static/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/api/predict")

	resp, _ = get(t, srv, "/static/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStopWithoutStart(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.NoError(t, srv.Stop())
}
