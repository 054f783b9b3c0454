// Package predict turns a car-specification request into a formatted price.
package predict

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/metric"
	"github.com/IlyassOtmani/car-price-ml/internal/record"
)

// Scorer is the trained pipeline's scoring entry point
type Scorer interface {
	Predict(rec record.Record) (float64, error)
}

// Result is a single scored request
type Result struct {
	ID      string           `json:"request_id"`
	Value   float64          `json:"value"`
	Price   string           `json:"price"`
	Request features.Request `json:"request"`
	Cached  bool             `json:"cached"`
}

// Recorder receives every successful prediction
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// Adapter maps requests onto the model's record schema and formats its output.
// It does not validate inputs.
type Adapter struct {
	model    Scorer
	cache    *freecache.Cache
	recorder Recorder
}

// Option configures an Adapter
type Option func(*Adapter)

// WithCache memoizes model scores in a cache of the given size in megabytes.
// Zero disables caching.
func WithCache(sizeMB int) Option {
	return func(a *Adapter) {
		if sizeMB > 0 {
			a.cache = freecache.NewCache(sizeMB * 1024 * 1024)
		}
	}
}

// WithRecorder hands every result to r after it has been scored
func WithRecorder(r Recorder) Option {
	return func(a *Adapter) {
		a.recorder = r
	}
}

// New creates an adapter around a loaded model
func New(model Scorer, opts ...Option) *Adapter {
	a := &Adapter{model: model}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Predict scores 24 positional values, in the order of features.Columns, and
// returns the formatted price.
func (a *Adapter) Predict(ctx context.Context, values ...interface{}) (string, error) {
	req, err := features.FromValues(values)
	if err != nil {
		return "", err
	}
	res, err := a.PredictRequest(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Price, nil
}

// PredictRequest scores a typed request
func (a *Adapter) PredictRequest(ctx context.Context, req features.Request) (Result, error) {
	start := time.Now()
	id := RequestID(ctx)
	if id == "" {
		id = uuid.New().String()
	}
	res := Result{ID: id, Request: req}

	rec := req.Record()
	value, cached, err := a.score(rec)
	if err != nil {
		metric.Count(metric.PredictionCount, 1, []string{metric.TagAsString(metric.TagStatus, "error")})
		return res, fmt.Errorf("model prediction failed: %w", err)
	}
	price, err := FormatPrice(value)
	if err != nil {
		metric.Count(metric.PredictionCount, 1, []string{metric.TagAsString(metric.TagStatus, "error")})
		return res, err
	}

	res.Value = value
	res.Price = price
	res.Cached = cached

	metric.Count(metric.PredictionCount, 1, []string{metric.TagAsString(metric.TagStatus, "ok")})
	metric.TimingWithStart(metric.PredictionLatency, start, nil)
	log.Debug().Str("request_id", res.ID).Float64("value", value).Bool("cached", cached).Msg("Scored request")

	if a.recorder != nil {
		if err := a.recorder.Record(ctx, res); err != nil {
			log.Warn().Err(err).Str("request_id", res.ID).Msg("Could not record prediction")
		}
	}
	return res, nil
}

func (a *Adapter) score(rec record.Record) (float64, bool, error) {
	if a.cache == nil {
		v, err := a.model.Predict(rec)
		return v, false, err
	}

	key := rec.Key()
	if raw, err := a.cache.Get(key); err == nil && len(raw) == 8 {
		metric.Count(metric.CacheHitCount, 1, nil)
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), true, nil
	}

	v, err := a.model.Predict(rec)
	if err != nil {
		return 0, false, err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	if err := a.cache.Set(key, buf[:], 0); err != nil {
		log.Debug().Err(err).Msg("Prediction not cached")
	}
	return v, false, nil
}
