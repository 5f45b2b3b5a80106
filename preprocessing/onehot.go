package preprocessing

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// HandleUnknown selects how OneHotEncoder treats categories not seen during Fit.
type HandleUnknown string

const (
	// HandleUnknownError rejects unseen categories with a ValidationError.
	HandleUnknownError HandleUnknown = "error"
	// HandleUnknownIgnore encodes unseen categories as an all-zero block.
	HandleUnknownIgnore HandleUnknown = "ignore"
)

// OneHotEncoder はscikit-learn互換のone-hotエンコーダー
// 列ごとに学習時のカテゴリを昇順で保持し、各値を指示ベクトルに展開する
type OneHotEncoder struct {
	model.BaseEstimator

	// HandleUnknown は未知カテゴリの扱い (デフォルト: error)
	HandleUnknown HandleUnknown

	// Categories は列ごとの学習済みカテゴリ（昇順）
	Categories [][]float64

	index []map[float64]int
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder(handleUnknown HandleUnknown) *OneHotEncoder {
	if handleUnknown == "" {
		handleUnknown = HandleUnknownError
	}
	return &OneHotEncoder{HandleUnknown: handleUnknown}
}

// Fit は列ごとのカテゴリ集合を学習する
func (o *OneHotEncoder) Fit(X mat.Matrix) error {
	if o.HandleUnknown != HandleUnknownError && o.HandleUnknown != HandleUnknownIgnore {
		return errors.NewValidationError("handle_unknown", "must be 'error' or 'ignore'", o.HandleUnknown)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("OneHotEncoder.Fit", X); err != nil {
		return err
	}

	o.Categories = make([][]float64, c)
	o.index = make([]map[float64]int, c)
	for j := 0; j < c; j++ {
		cats := lo.Uniq(mat.Col(nil, j, X))
		slices.Sort(cats)
		o.Categories[j] = cats
		o.index[j] = make(map[float64]int, len(cats))
		for k, v := range cats {
			o.index[j][v] = k
		}
	}

	o.SetFitted()
	return nil
}

// Transform は各値を学習済みカテゴリの指示ベクトルに変換する
func (o *OneHotEncoder) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !o.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	r, c := X.Dims()
	if c != len(o.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(o.Categories), c, 1)
	}

	offsets := make([]int, c)
	width := 0
	for j, cats := range o.Categories {
		offsets[j] = width
		width += len(cats)
	}

	out := mat.NewDense(r, width, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			k, ok := o.index[j][v]
			if !ok {
				if o.HandleUnknown == HandleUnknownIgnore {
					continue
				}
				return nil, errors.NewValidationError(
					fmt.Sprintf("column %d", j), "found unknown category during transform", v)
			}
			out.Set(i, offsets[j]+k, 1)
		}
	}
	return out, nil
}

// FitTransform は学習と変換を同時に行う
func (o *OneHotEncoder) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := o.Fit(X); err != nil {
		return nil, err
	}
	return o.Transform(X)
}

// FeatureNamesOut は "<入力列名>_<カテゴリ>" 形式の列名を返す
// 入力列名が足りない場合は x0, x1, ... を使う
func (o *OneHotEncoder) FeatureNamesOut(input []string) []string {
	var names []string
	for j, cats := range o.Categories {
		prefix := "x" + strconv.Itoa(j)
		if j < len(input) {
			prefix = input[j]
		}
		for _, v := range cats {
			names = append(names, prefix+"_"+formatCategory(v))
		}
	}
	return names
}

func formatCategory(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// GetParams はエンコーダーのパラメータを取得する
func (o *OneHotEncoder) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"handle_unknown": string(o.HandleUnknown),
	}
}

// String はエンコーダーの文字列表現を返す
func (o *OneHotEncoder) String() string {
	if !o.IsFitted() {
		return fmt.Sprintf("OneHotEncoder(handle_unknown=%s)", o.HandleUnknown)
	}
	return fmt.Sprintf("OneHotEncoder(handle_unknown=%s, n_features_out=%d)",
		o.HandleUnknown, lo.SumBy(o.Categories, func(c []float64) int { return len(c) }))
}
