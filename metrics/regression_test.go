package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     []float64
		yPred     []float64
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			yPred:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:      "simple case",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0},
			yPred:     []float64{2.0, 2.0, 3.0, 6.0},
			want:      1.25, // (1 + 0 + 0 + 4) / 4
			tolerance: 1e-10,
		},
		{
			name:    "empty input",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("MSE() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if math.Abs(got-tt.want) > tt.tolerance {
					t.Errorf("MSE() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     []float64
		yPred     []float64
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			yPred:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:      "constant offset",
			yTrue:     []float64{0.0, 0.0, 0.0, 0.0},
			yPred:     []float64{1.0, 1.0, 1.0, 1.0},
			want:      1.0,
			tolerance: 1e-10,
		},
		{
			name:      "single pair",
			yTrue:     []float64{10.0},
			yPred:     []float64{7.0},
			want:      3.0,
			tolerance: 1e-10,
		},
		{
			name:      "fares",
			yTrue:     []float64{5.5, 12.0, 7.5},
			yPred:     []float64{6.5, 10.0, 7.5},
			want:      math.Sqrt(5.0 / 3.0),
			tolerance: 1e-10,
		},
		{
			name:    "dimension mismatch",
			yTrue:   []float64{1.0, 2.0, 3.0},
			yPred:   []float64{1.0, 2.0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RMSE(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("RMSE() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if math.Abs(got-tt.want) > tt.tolerance {
					t.Errorf("RMSE() = %v, want %v", got, tt.want)
				}
				assert.GreaterOrEqual(t, got, 0.0)
			}
		})
	}
}

func TestRMSEErrorTypes(t *testing.T) {
	_, err := RMSE([]float64{1, 2, 3}, []float64{1, 2})
	require.Error(t, err)
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = RMSE(nil, nil)
	require.Error(t, err)
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))
}

func TestRMSEIsZeroOnlyForIdenticalInputs(t *testing.T) {
	a := []float64{3.2, 8.9, 15.0, 4.4}
	b := []float64{3.2, 8.9, 15.0, 4.5}

	same, err := RMSE(a, a)
	require.NoError(t, err)
	assert.Equal(t, 0.0, same)

	diff, err := RMSE(a, b)
	require.NoError(t, err)
	assert.Greater(t, diff, 0.0)
}

func TestMAE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     []float64
		yPred     []float64
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "simple case",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0},
			yPred:     []float64{1.5, 2.5, 2.5, 3.5},
			want:      0.5,
			tolerance: 1e-10,
		},
		{
			name:      "with negative differences",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0},
			yPred:     []float64{2.0, 1.0, 4.0, 3.0},
			want:      1.0,
			tolerance: 1e-10,
		},
		{
			name:    "dimension mismatch",
			yTrue:   []float64{1.0, 2.0, 3.0},
			yPred:   []float64{1.0, 2.0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MAE(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("MAE() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if math.Abs(got-tt.want) > tt.tolerance {
					t.Errorf("MAE() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestR2Score(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     []float64
		yPred     []float64
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			yPred:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			want:      1.0,
			tolerance: 1e-10,
		},
		{
			name:    "no variance in yTrue",
			yTrue:   []float64{3.0, 3.0, 3.0, 3.0, 3.0},
			yPred:   []float64{2.0, 3.0, 4.0, 3.0, 3.0},
			wantErr: true,
		},
		{
			name:      "worse than mean baseline",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0},
			yPred:     []float64{4.0, 3.0, 2.0, 1.0},
			want:      -3.0,
			tolerance: 1e-10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("R2Score() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if math.Abs(got-tt.want) > tt.tolerance {
					t.Errorf("R2Score() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRMSEMatrix(t *testing.T) {
	yTrue := mat.NewDense(3, 1, []float64{1, 2, 3})
	yPred := mat.NewDense(3, 1, []float64{1, 2, 5})

	got, err := RMSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(4.0/3.0), got, 1e-12)

	mse, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, mse, 1e-12)

	_, err = RMSEMatrix(mat.NewDense(3, 2, nil), yPred)
	assert.Error(t, err)
}

func BenchmarkRMSE(b *testing.B) {
	size := 10000
	yTrue := make([]float64, size)
	yPred := make([]float64, size)
	for i := 0; i < size; i++ {
		yTrue[i] = float64(i)
		yPred[i] = float64(i) + 0.1*float64(i%10)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = RMSE(yTrue, yPred)
	}
}
