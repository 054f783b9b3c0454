package metric

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

const (
	PredictionCount   = "prediction_count"
	PredictionLatency = "prediction_latency"
	CacheHitCount     = "prediction_cache_hit_count"
	ApiRequestCount   = "api_request_count"
	ApiRequestLatency = "api_request_latency"

	TagService = "service"
	TagStatus  = "status"
	TagPath    = "path"
	TagMethod  = "method"
)

var (
	mu     sync.RWMutex
	client statsd.ClientInterface = &statsd.NoOpClient{}
	tags   []string
)

// Init points the package at a statsd agent. An empty address keeps the
// no-op client.
func Init(addr, appName string) error {
	mu.Lock()
	defer mu.Unlock()

	tags = []string{TagAsString(TagService, appName)}
	if addr == "" {
		client = &statsd.NoOpClient{}
		log.Debug().Msg("Metrics disabled, no statsd address configured")
		return nil
	}
	c, err := statsd.New(addr, statsd.WithTags(tags))
	if err != nil {
		return err
	}
	client = c
	log.Info().Msgf("Metrics client initialized with statsd address - %s", addr)
	return nil
}

// SetClient replaces the statsd client, used by tests
func SetClient(c statsd.ClientInterface) {
	mu.Lock()
	defer mu.Unlock()
	client = c
}

// Close flushes and closes the statsd client
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing statsd client")
	}
	client = &statsd.NoOpClient{}
}

// Count increases a counter by value
func Count(name string, value int64, extra []string) {
	mu.RLock()
	defer mu.RUnlock()
	if err := client.Count(name, value, extra, 1); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

// Timing sends timing information
func Timing(name string, value time.Duration, extra []string) {
	mu.RLock()
	defer mu.RUnlock()
	if err := client.Timing(name, value, extra, 1); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// TimingWithStart measures latency since start.
// Use as 'defer metric.TimingWithStart("name", time.Now(), nil)'.
func TimingWithStart(name string, start time.Time, extra []string) {
	Timing(name, time.Since(start), extra)
}

// TagAsString formats a statsd tag
func TagAsString(key, value string) string {
	return key + ":" + value
}
