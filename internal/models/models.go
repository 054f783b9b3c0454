package models

import (
	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
)

// PredictRequest is the body of POST /api/predict. Either the named fields
// are set, or Data carries the 24 values positionally.
type PredictRequest struct {
	features.Request
	Data []interface{} `json:"data,omitempty"`
}

// PredictResponse contains the formatted price and the raw model output
type PredictResponse struct {
	Price     string   `json:"price"`
	Value     float64  `json:"value"`
	RequestID string   `json:"request_id"`
	Cached    bool     `json:"cached"`
	Data      []string `json:"data,omitempty"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields []form.FieldError `json:"fields,omitempty"`
}

// InfoResponse describes the running service
type InfoResponse struct {
	Version         string        `json:"version"`
	Model           pipeline.Info `json:"model"`
	Features        []string      `json:"features"`
	CacheEnabled    bool          `json:"cache_enabled"`
	AuditEnabled    bool          `json:"audit_enabled"`
	PresetsWritable bool          `json:"presets_writable"`
}

// CreatePresetRequest saves a configuration under a title
type CreatePresetRequest struct {
	Title   string           `json:"title"`
	Request features.Request `json:"request"`
}
