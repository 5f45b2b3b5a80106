// Package metrics は回帰モデルの評価指標を提供する
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPaired("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	return meanSquared(yTrue, yPred), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
// RMSE = sqrt(mean((yPred - yTrue)^2))
func RMSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPaired("RMSE", yTrue, yPred); err != nil {
		return 0, err
	}
	return math.Sqrt(meanSquared(yTrue, yPred)), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPaired("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPaired("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	yMean := floats.Sum(yTrue) / float64(len(yTrue))

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i, v := range yTrue {
		tss += (v - yMean) * (v - yMean)
		rss += (v - yPred[i]) * (v - yPred[i])
	}

	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// RMSEMatrix は n×1 行列形式の入力に対してRMSEを計算する
func RMSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("RMSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return RMSE(t, p)
}

// MSEMatrix は n×1 行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// checkPaired は空入力と長さの不一致を検出する
func checkPaired(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty input")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

func meanSquared(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d / float64(len(a))
}

func columnPair(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	t, err := column(op, yTrue)
	if err != nil {
		return nil, nil, err
	}
	p, err := column(op, yPred)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func column(op string, m mat.Matrix) ([]float64, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.Col(nil, 0, m), nil
}
