package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyassOtmani/car-price-ml/internal/audit"
	"github.com/IlyassOtmani/car-price-ml/internal/config"
	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/models"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline/pipelinetest"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
	"github.com/IlyassOtmani/car-price-ml/internal/presets"
)

type testEnv struct {
	router *mux.Router
	form   *form.Form
	audit  *audit.Store
}

func newTestEnv(t *testing.T, withAudit bool) *testEnv {
	t.Helper()

	f, err := form.Load()
	require.NoError(t, err)

	model := pipelinetest.MustBuild(t, pipelinetest.Linear())
	store, err := presets.NewStore(t.TempDir(), f.Examples())
	require.NoError(t, err)

	env := &testEnv{router: mux.NewRouter(), form: f}
	var history History
	var opts []predict.Option
	if withAudit {
		env.audit, err = audit.Open(filepath.Join(t.TempDir(), "audit.db"), model.Info().Fingerprint)
		require.NoError(t, err)
		t.Cleanup(func() { env.audit.Close() })
		history = env.audit
		opts = append(opts, predict.WithRecorder(env.audit))
	}

	cfg := config.Config{Port: 7860, Version: "test"}
	h := NewHandler(predict.New(model, opts...), f, store, history, model.Info(), cfg)
	h.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) example(t *testing.T, id string) features.Request {
	t.Helper()
	for _, ex := range e.form.Examples() {
		if ex.ID == id {
			return ex.Request
		}
	}
	t.Fatalf("no example %s", id)
	return features.Request{}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", response["status"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, "GET", "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.InfoResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	assert.Equal(t, "test", response.Version)
	assert.Len(t, response.Features, features.Count)
	assert.NotEmpty(t, response.Model.Fingerprint)
	assert.Contains(t, response.Model.Types, pipeline.TypeLinearRegression)
	assert.False(t, response.AuditEnabled)
	assert.False(t, response.CacheEnabled)
	assert.True(t, response.PresetsWritable)
}

func TestSchemaEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, "GET", "/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var schema form.Schema
	require.NoError(t, json.NewDecoder(w.Body).Decode(&schema))

	count := 0
	for _, col := range schema.Columns {
		for _, sec := range col.Sections {
			count += len(sec.Widgets)
		}
	}
	assert.Equal(t, features.Count, count)
}

func TestExamplesEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, "GET", "/examples", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var examples []form.Preset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&examples))
	require.Len(t, examples, 3)
	assert.Equal(t, "bmw", examples[1].Request.CarBrand)
}

func TestPredictNamedFields(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, "POST", "/predict", env.example(t, "economy"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response models.PredictResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "$16,390.00", response.Price)
	assert.Equal(t, 16390.0, response.Value)
	assert.NotEmpty(t, response.RequestID)
	assert.Nil(t, response.Data)
}

func TestPredictPositionalData(t *testing.T) {
	env := newTestEnv(t, false)
	body := map[string]interface{}{
		"data": []interface{}{2, 89.5, 168.9, 68.3, 50.2, 2778, 194, 3.74, 3.15, 9.5, 207, 5900, 17, 25,
			"gas", "turbo", "two", "hardtop", "rwd", "rear", "ohcf", "six", "mpfi", "porsche"},
	}
	w := env.do(t, "POST", "/predict", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response models.PredictResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "$41,676.00", response.Price)
	assert.Equal(t, []string{"$41,676.00"}, response.Data)
}

func TestPredictRejectsOutOfDomainInput(t *testing.T) {
	env := newTestEnv(t, false)
	req := env.example(t, "luxury")
	req.Horsepower = 999
	req.CarBrand = "lada"

	w := env.do(t, "POST", "/predict", req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var response models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Fields, 2)
	assert.Equal(t, "horsepower", response.Fields[0].Field)
	assert.Equal(t, "carbrand", response.Fields[1].Field)
}

// withoutField encodes req as a JSON object and removes one key
func withoutField(t *testing.T, req features.Request, field string) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	delete(body, field)
	return body
}

func TestPredictRequiresEveryField(t *testing.T) {
	env := newTestEnv(t, false)
	body := withoutField(t, env.example(t, "economy"), "symboling")

	w := env.do(t, "POST", "/predict", body)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var response models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, []form.FieldError{{Field: "symboling", Message: "is required"}}, response.Fields)
	assert.Contains(t, response.Error, "symboling is required")
}

func TestCreatePresetRequiresEveryField(t *testing.T) {
	env := newTestEnv(t, false)
	body := map[string]interface{}{
		"title":   "partial",
		"request": withoutField(t, env.example(t, "luxury"), "horsepower"),
	}

	w := env.do(t, "POST", "/presets", body)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var response models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Fields, 1)
	assert.Equal(t, "horsepower", response.Fields[0].Field)
}

func TestPredictBadBodies(t *testing.T) {
	env := newTestEnv(t, false)
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"brand":"bmw"}`},
		{"short data", `{"data":[1,2,3]}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response models.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.NotEmpty(t, response.Error)
		})
	}
}

func TestPredictionsDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, "GET", "/predictions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredictionsAreLogged(t *testing.T) {
	env := newTestEnv(t, true)
	for _, id := range []string{"economy", "sports"} {
		w := env.do(t, "POST", "/predict", env.example(t, id))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, "GET", "/predictions?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []audit.Entry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "$41,676.00", entries[0].Price)
	assert.Equal(t, "porsche", entries[0].Request.CarBrand)

	w = env.do(t, "GET", "/predictions?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresetLifecycle(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, "GET", "/presets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []presets.Preset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 3)

	req := env.example(t, "sports")
	req.Horsepower = 250
	w = env.do(t, "POST", "/presets", models.CreatePresetRequest{Title: "Tuned", Request: req})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created presets.Preset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "Tuned", created.Title)

	w = env.do(t, "GET", "/presets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched presets.Preset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fetched))
	assert.Equal(t, 250.0, fetched.Request.Horsepower)

	w = env.do(t, "DELETE", "/presets/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, "GET", "/presets/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPresetErrors(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, "DELETE", "/presets/economy", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "GET", "/presets/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	bad := env.example(t, "economy")
	bad.FuelType = "electric"
	w = env.do(t, "POST", "/presets", models.CreatePresetRequest{Title: "bad", Request: bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
