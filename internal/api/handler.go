package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/audit"
	"github.com/IlyassOtmani/car-price-ml/internal/config"
	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/models"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
	"github.com/IlyassOtmani/car-price-ml/internal/presets"
)

const maxBodyBytes = 1 << 20

// Predictor scores a validated request
type Predictor interface {
	PredictRequest(ctx context.Context, req features.Request) (predict.Result, error)
}

// History lists logged predictions
type History interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Handler provides HTTP API endpoints
type Handler struct {
	predictor Predictor
	form      *form.Form
	presets   *presets.Store
	history   History
	info      pipeline.Info
	cfg       config.Config
}

// NewHandler creates a new API handler. history may be nil when the audit
// log is disabled.
func NewHandler(
	predictor Predictor,
	f *form.Form,
	store *presets.Store,
	history History,
	info pipeline.Info,
	cfg config.Config,
) *Handler {
	return &Handler{
		predictor: predictor,
		form:      f,
		presets:   store,
		history:   history,
		info:      info,
		cfg:       cfg,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Form definition
	r.HandleFunc("/schema", h.handleSchema).Methods("GET")
	r.HandleFunc("/examples", h.handleExamples).Methods("GET")

	// Scoring
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/predictions", h.handlePredictions).Methods("GET")

	// Presets
	r.HandleFunc("/presets", h.handleListPresets).Methods("GET")
	r.HandleFunc("/presets", h.handleCreatePreset).Methods("POST")
	r.HandleFunc("/presets/{id}", h.handleGetPreset).Methods("GET")
	r.HandleFunc("/presets/{id}", h.handleDeletePreset).Methods("DELETE")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondValidation reports every rejected field
func respondValidation(w http.ResponseWriter, err *form.ValidationError) {
	respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Fields: err.Fields})
}

// readJSON strictly decodes the body into dst and returns the raw bytes
func readJSON(r *http.Request, dst interface{}) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return data, nil
}

// missingFields lists the input fields absent from a JSON object body
func missingFields(data []byte) (*form.ValidationError, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	present := make(map[string]struct{}, len(keys))
	for k := range keys {
		present[strings.ToLower(k)] = struct{}{}
	}

	verr := &form.ValidationError{}
	for _, field := range features.FieldNames() {
		if _, ok := present[field]; !ok {
			verr.Fields = append(verr.Fields, form.FieldError{Field: field, Message: "is required"})
		}
	}
	if len(verr.Fields) == 0 {
		return nil, nil
	}
	return verr, nil
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server and model information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.InfoResponse{
		Version:         h.cfg.Version,
		Model:           h.info,
		Features:        features.FieldNames(),
		CacheEnabled:    h.cfg.CacheMB > 0,
		AuditEnabled:    h.history != nil,
		PresetsWritable: h.presets != nil && h.presets.Writable(),
	})
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.form.Schema())
}

func (h *Handler) handleExamples(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.form.Examples())
}

// handlePredict scores one car. Inputs outside the form's domains are
// rejected before the model sees them.
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var body models.PredictRequest
	data, err := readJSON(r, &body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := body.Request
	positional := body.Data != nil
	if !positional {
		// absent fields would otherwise score as zero values
		verr, err := missingFields(data)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if verr != nil {
			respondValidation(w, verr)
			return
		}
	} else {
		if req, err = features.FromValues(body.Data); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.form.Validate(req); err != nil {
		var verr *form.ValidationError
		if errors.As(err, &verr) {
			respondValidation(w, verr)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.predictor.PredictRequest(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("request_id", res.ID).Msg("Prediction failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := models.PredictResponse{
		Price:     res.Price,
		Value:     res.Value,
		RequestID: res.ID,
		Cached:    res.Cached,
	}
	if positional {
		resp.Data = []string{res.Price}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusNotFound, "prediction audit log is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleListPresets(w http.ResponseWriter, r *http.Request) {
	list, err := h.presets.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := h.presets.Get(mux.Vars(r)["id"])
	if err != nil {
		respondPresetError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var body models.CreatePresetRequest
	data, err := readJSON(r, &body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var raw struct {
		Request json.RawMessage `json:"request"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || len(raw.Request) == 0 {
		respondError(w, http.StatusBadRequest, "invalid request body: missing request")
		return
	}
	verr, err := missingFields(raw.Request)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if verr != nil {
		respondValidation(w, verr)
		return
	}
	if err := h.form.Validate(body.Request); err != nil {
		var verr *form.ValidationError
		if errors.As(err, &verr) {
			respondValidation(w, verr)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.presets.Create(body.Title, body.Request)
	if err != nil {
		respondPresetError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := h.presets.Delete(mux.Vars(r)["id"]); err != nil {
		respondPresetError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondPresetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, presets.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, presets.ErrBuiltin), errors.Is(err, presets.ErrReadOnly):
		respondError(w, http.StatusForbidden, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
