package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

func frameOf(n int) (*Frame, *mat.VecDense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.SetRow(i, []float64{float64(i), float64(i * 10)})
		y.SetVec(i, float64(i))
	}
	return &Frame{Columns: []string{"a", "b"}, X: X}, y
}

func TestTrainTestSplit(t *testing.T) {
	X, y := frameOf(100)
	seed := uint64(42)

	s, err := TrainTestSplit(X, y, DefaultTestSize, &seed)
	require.NoError(t, err)

	assert.Equal(t, 75, s.XTrain.Rows())
	assert.Equal(t, 25, s.XTest.Rows())
	assert.Equal(t, 75, s.YTrain.Len())
	assert.Equal(t, 25, s.YTest.Len())

	// Rows and targets stay paired and every sample lands in exactly one partition.
	seen := map[float64]bool{}
	for _, part := range []struct {
		X *Frame
		y *mat.VecDense
	}{{s.XTrain, s.YTrain}, {s.XTest, s.YTest}} {
		for i := 0; i < part.X.Rows(); i++ {
			assert.Equal(t, part.y.AtVec(i), part.X.X.At(i, 0))
			assert.Equal(t, part.X.X.At(i, 0)*10, part.X.X.At(i, 1))
			seen[part.y.AtVec(i)] = true
		}
	}
	assert.Len(t, seen, 100)
}

func TestTrainTestSplitReproducible(t *testing.T) {
	X, y := frameOf(20)
	seed := uint64(7)

	a, err := TrainTestSplit(X, y, 0.3, &seed)
	require.NoError(t, err)
	b, err := TrainTestSplit(X, y, 0.3, &seed)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.XTest.X, b.XTest.X))
	assert.Equal(t, 6, a.XTest.Rows())
}

func TestTrainTestSplitErrors(t *testing.T) {
	X, y := frameOf(3)

	_, err := TrainTestSplit(X, y, 0, nil)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = TrainTestSplit(X, mat.NewVecDense(2, nil), 0.25, nil)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	one, yOne := frameOf(1)
	_, err = TrainTestSplit(one, yOne, 0.25, nil)
	assert.Error(t, err)

	_, err = TrainTestSplit(&Frame{}, nil, 0.25, nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}
