package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

func TestOneHotEncoder(t *testing.T) {
	enc := NewOneHotEncoder(HandleUnknownIgnore)
	X := mat.NewDense(4, 2, []float64{
		3, 2013,
		1, 2014,
		3, 2014,
		0, 2013,
	})

	out, err := enc.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{0, 1, 3}, {2013, 2014}}, enc.Categories)
	want := mat.NewDense(4, 5, []float64{
		0, 0, 1, 1, 0,
		0, 1, 0, 0, 1,
		0, 0, 1, 0, 1,
		1, 0, 0, 1, 0,
	})
	assert.True(t, mat.Equal(want, out))
	assert.Equal(t,
		[]string{"dow_0", "dow_1", "dow_3", "year_2013", "year_2014"},
		enc.FeatureNamesOut([]string{"dow", "year"}))
}

func TestOneHotEncoderUnknownIgnored(t *testing.T) {
	enc := NewOneHotEncoder(HandleUnknownIgnore)
	require.NoError(t, enc.Fit(mat.NewDense(3, 1, []float64{1, 2, 3})))

	out, err := enc.Transform(mat.NewDense(2, 1, []float64{7, 2}))
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0}, mat.Row(nil, 0, out), "unseen category encodes as zeros")
	assert.Equal(t, []float64{0, 1, 0}, mat.Row(nil, 1, out))
}

func TestOneHotEncoderUnknownError(t *testing.T) {
	enc := NewOneHotEncoder("")
	assert.Equal(t, HandleUnknownError, enc.HandleUnknown)
	require.NoError(t, enc.Fit(mat.NewDense(3, 1, []float64{1, 2, 3})))

	_, err := enc.Transform(mat.NewDense(1, 1, []float64{7}))
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, 7.0, valErr.Value)
}

func TestOneHotEncoderNotFitted(t *testing.T) {
	_, err := NewOneHotEncoder(HandleUnknownIgnore).Transform(mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.IsNotFitted(err))
}

func TestOneHotEncoderInvalidOption(t *testing.T) {
	enc := NewOneHotEncoder("infrequent_if_exist")
	err := enc.Fit(mat.NewDense(1, 1, []float64{1}))
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}
