package predict

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline/pipelinetest"
)

func TestLoadModelTrustsEnumeratedTypes(t *testing.T) {
	path := pipelinetest.Write(t, t.TempDir(), "model_pipeline.json", pipelinetest.Forest())

	model, err := LoadModel(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{pipeline.TypeExpm1, pipeline.TypeLog1p}, model.Info().TrustedTypes)

	price, err := New(model).Predict(context.Background(), economy...)
	require.NoError(t, err)
	assert.Regexp(t, pricePattern, price)
}

func TestLoadModelEnforcesConfiguredTrust(t *testing.T) {
	path := pipelinetest.Write(t, t.TempDir(), "model_pipeline.json", pipelinetest.Forest())

	_, err := LoadModel(path, []string{pipeline.TypeLog1p})
	var untrusted *pipeline.UntrustedTypesError
	require.True(t, errors.As(err, &untrusted))
	assert.Equal(t, []string{pipeline.TypeExpm1}, untrusted.Types)

	_, err = LoadModel(path, []string{pipeline.TypeLog1p, pipeline.TypeExpm1})
	assert.NoError(t, err)
}

func TestLoadModelWithoutUntrustedTypes(t *testing.T) {
	path := pipelinetest.Write(t, t.TempDir(), "model_pipeline.json.gz", pipelinetest.Linear())

	model, err := LoadModel(path, []string{"numpy.exp"})
	require.NoError(t, err)
	assert.Empty(t, model.Info().TrustedTypes)
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel("does/not/exist.json", nil)
	assert.Error(t, err)
}
