package model

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

func fittedWeights() *ModelWeights {
	return &ModelWeights{
		ModelType:       "LinearRegression",
		Version:         "1.0.0",
		Coefficients:    []float64{1.5, 0.25},
		Intercept:       2.5,
		Features:        []string{"distance", "time__hour_3"},
		Hyperparameters: map[string]interface{}{"fit_intercept": true},
		IsFitted:        true,
	}
}

func TestSaveAndLoadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	w := fittedWeights()
	require.NoError(t, SaveWeights(w, path))

	loaded, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, w.Coefficients, loaded.Coefficients)
	assert.Equal(t, w.Intercept, loaded.Intercept)
	assert.Equal(t, w.Features, loaded.Features)
}

func TestWriteWeightsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		weights *ModelWeights
	}{
		{"nil", nil},
		{"missing type", &ModelWeights{Version: "1.0.0", Coefficients: []float64{1}, IsFitted: true}},
		{"unfitted with coefficients", &ModelWeights{ModelType: "LinearRegression", Version: "1.0.0", Coefficients: []float64{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteWeights(tt.weights, &buf)
			require.Error(t, err)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve))
			assert.Zero(t, buf.Len())
		})
	}
}

func TestReadWeightsErrors(t *testing.T) {
	_, err := ReadWeights(strings.NewReader("{not json"))
	assert.Error(t, err)

	_, err = ReadWeights(strings.NewReader(`{"model_type":"LinearRegression","version":"1.0.0","is_fitted":true}`))
	require.Error(t, err)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = LoadWeights(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
