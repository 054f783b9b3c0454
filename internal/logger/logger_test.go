package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestInitWritesToWriter(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(&buf, "carprice", "WARN"))

	log.Info().Msg("hidden")
	log.Warn().Msg("model loaded")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "model loaded")
	assert.Contains(t, buf.String(), "WARN")
}

func TestInitRejectsBadLevel(t *testing.T) {
	assert.Error(t, InitWithWriter(&bytes.Buffer{}, "carprice", "LOUD"))
}
