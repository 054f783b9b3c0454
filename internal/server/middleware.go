package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/metric"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
)

// RequestIDHeader carries the id of every request through to the response
const RequestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns every request a fresh id. Predictions and
// audit entries reuse it, so the id stays unique per scored request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(predict.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// accessLogMiddleware logs every request and reports its latency
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		tags := []string{
			metric.TagAsString(metric.TagMethod, r.Method),
			metric.TagAsString(metric.TagPath, path),
			metric.TagAsString(metric.TagStatus, strconv.Itoa(rec.status)),
		}
		metric.Count(metric.ApiRequestCount, 1, tags)
		metric.TimingWithStart(metric.ApiRequestLatency, start, tags)

		log.Debug().
			Str("request_id", predict.RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}
