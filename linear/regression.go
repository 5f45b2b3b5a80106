// Package linear は最小二乗法による線形回帰モデルを提供する
package linear

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/core/parallel"
	"github.com/YuminosukeSato/taxifare/metrics"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

const weightsVersion = "1.0"

// LinearRegression は切片付きの通常最小二乗法モデル
//
// 係数はSVDによる最小ノルム解で求める。one-hot特徴量と切片を同時に使うと
// 計画行列は必ずランク落ちするため、正規方程式の逆行列は使わない。
type LinearRegression struct {
	state *model.StateManager

	// ハイパーパラメータ
	fitIntercept      bool
	rcond             float64
	parallelThreshold int

	// 学習結果
	coef      []float64
	intercept float64
	rank      int
	singular  []float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:             model.NewStateManager(),
		fitIntercept:      true,
		parallelThreshold: parallel.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// 切片ありの場合は X と y を中心化してから min ||Xc w - yc||, ||w|| を解き、
// intercept = mean(y) - mean(X)·w とする
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("LinearRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", X); err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", y); err != nil {
		return err
	}

	yVals := mat.Col(nil, 0, y)
	xMean := make([]float64, nFeatures)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < nFeatures; j++ {
			xMean[j] = floats.Sum(mat.Col(nil, j, X)) / float64(nSamples)
		}
		yMean = floats.Sum(yVals) / float64(nSamples)
	}

	// 中心化した計画行列を組み立てる
	design := mat.NewDense(nSamples, nFeatures, nil)
	target := mat.NewVecDense(nSamples, nil)
	parallel.ParallelizeWithThreshold(nSamples, lr.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < nFeatures; j++ {
				design.Set(i, j, X.At(i, j)-xMean[j])
			}
			target.SetVec(i, yVals[i]-yMean)
		}
	})

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}

	rcond := lr.rcond
	if rcond <= 0 {
		rcond = float64(max(nSamples, nFeatures)) * eps
	}
	rank := svd.Rank(rcond)

	coef := make([]float64, nFeatures)
	if rank > 0 {
		var w mat.VecDense
		svd.SolveVecTo(&w, target, rank)
		coef = mat.Col(nil, 0, &w)
	}
	if rank < nFeatures {
		errors.Warn(errors.NewRankDeficiencyWarning("LinearRegression.Fit", rank, nFeatures))
	}

	lr.coef = coef
	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = yMean - floats.Dot(xMean, coef)
	}
	lr.rank = rank
	lr.singular = svd.Values(nil)

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// eps は float64 のマシンイプシロン (numpy.finfo(float64).eps と同じ)
var eps = math.Nextafter(1, 2) - 1

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}

	nSamples, nFeatures := X.Dims()
	expected, _ := lr.state.GetDimensions()
	if nFeatures != expected {
		return nil, errors.NewDimensionError("LinearRegression.Predict", expected, nFeatures, 1)
	}

	// 予測: y = X * coef + intercept
	coef := mat.NewVecDense(nFeatures, lr.coef)
	var out mat.VecDense
	out.MulVec(X, coef)

	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, out.AtVec(i)+lr.intercept)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	predRows, _ := yPred.Dims()
	if rows != predRows {
		return 0, errors.NewDimensionError("LinearRegression.Score", predRows, rows, 0)
	}
	return metrics.R2Score(mat.Col(nil, 0, y), mat.Col(nil, 0, yPred))
}

// Coef は学習された係数のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef == nil {
		return nil
	}
	out := make([]float64, len(lr.coef))
	copy(out, lr.coef)
	return out
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Rank は学習時の計画行列の実効ランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// SingularValues は学習時の計画行列の特異値を降順で返す
func (lr *LinearRegression) SingularValues() []float64 {
	return append([]float64(nil), lr.singular...)
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns the parameters of the model
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"rcond":         lr.rcond,
	}
}

// ExportWeights はモデルの重みをエクスポートする
// features は前処理後の列名で、指定する場合は係数の数と一致する必要がある
func (lr *LinearRegression) ExportWeights(features []string) (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}

	nFeatures, nSamples := lr.state.GetDimensions()
	weights := &model.ModelWeights{
		ModelType:       "LinearRegression",
		Version:         weightsVersion,
		Coefficients:    lr.Coef(),
		Intercept:       lr.intercept,
		Features:        features,
		IsFitted:        true,
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"rank":       lr.rank,
		},
	}

	// チェックサムを計算
	data, err := json.Marshal(weights.Coefficients)
	if err != nil {
		return nil, errors.Wrap(err, "marshal coefficients")
	}
	hash := sha256.Sum256(data)
	weights.Metadata["checksum"] = hex.EncodeToString(hash[:])

	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return weights, nil
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d, fitted=true)",
		lr.fitIntercept, nFeatures, lr.rank)
}
