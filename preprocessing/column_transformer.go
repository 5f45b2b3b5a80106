package preprocessing

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Branch applies one transformer to a named subset of input columns.
//
// Transformer must provide Transform(mat.Matrix) and either the
// model.Transformer contract or a pipeline-style FitTransform(X, y).
type Branch struct {
	Name        string
	Transformer interface{}
	Columns     []string
}

type transformFunc interface {
	Transform(X mat.Matrix) (mat.Matrix, error)
}

type supervisedFitTransformer interface {
	FitTransform(X, y mat.Matrix) (mat.Matrix, error)
}

// ColumnTransformer fits each branch on its own columns and concatenates the
// branch outputs in branch order. Columns that no branch references are
// dropped.
type ColumnTransformer struct {
	model.BaseEstimator

	columns  []string
	branches []Branch
	indices  [][]int
	widths   []int
}

// NewColumnTransformer validates the branches against the input column names.
func NewColumnTransformer(columns []string, branches ...Branch) (*ColumnTransformer, error) {
	if len(branches) == 0 {
		return nil, errors.NewValidationError("branches", "at least one branch is required", 0)
	}
	if dups := lo.FindDuplicates(lo.Map(branches, func(b Branch, _ int) string { return b.Name })); len(dups) > 0 {
		return nil, errors.NewValidationError("branches", "branch names must be unique", dups)
	}

	indices := make([][]int, len(branches))
	for i, b := range branches {
		if _, ok := b.Transformer.(transformFunc); !ok {
			return nil, errors.NewValidationError(b.Name, "transformer has no Transform method", b.Transformer)
		}
		switch b.Transformer.(type) {
		case model.Transformer, supervisedFitTransformer:
		default:
			return nil, errors.NewValidationError(b.Name, "transformer cannot be fitted", b.Transformer)
		}
		if len(b.Columns) == 0 {
			return nil, errors.NewValidationError(b.Name, "no columns selected", b.Columns)
		}
		for _, col := range b.Columns {
			idx := lo.IndexOf(columns, col)
			if idx < 0 {
				return nil, errors.NewValidationError(b.Name, "unknown column", col)
			}
			indices[i] = append(indices[i], idx)
		}
	}

	return &ColumnTransformer{
		columns:  append([]string(nil), columns...),
		branches: branches,
		indices:  indices,
	}, nil
}

// Fit fits every branch on its column subset.
func (c *ColumnTransformer) Fit(X mat.Matrix) error {
	_, err := c.FitTransform(X)
	return err
}

// FitTransform fits every branch and returns the concatenated outputs.
func (c *ColumnTransformer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkInput("ColumnTransformer.Fit", X); err != nil {
		return nil, err
	}

	outputs := make([]mat.Matrix, len(c.branches))
	widths := make([]int, len(c.branches))
	for i, b := range c.branches {
		sub := c.selectColumns(X, i)

		var (
			out mat.Matrix
			err error
		)
		switch t := b.Transformer.(type) {
		case model.Transformer:
			out, err = t.FitTransform(sub)
		case supervisedFitTransformer:
			out, err = t.FitTransform(sub, nil)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fit branch '%s'", b.Name)
		}
		outputs[i] = out
		_, widths[i] = out.Dims()
	}

	c.widths = widths
	c.SetFitted()
	return hstack(outputs)
}

// Transform applies the fitted branches without refitting.
func (c *ColumnTransformer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	if err := c.checkInput("ColumnTransformer.Transform", X); err != nil {
		return nil, err
	}

	outputs := make([]mat.Matrix, len(c.branches))
	for i, b := range c.branches {
		out, err := b.Transformer.(transformFunc).Transform(c.selectColumns(X, i))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform branch '%s'", b.Name)
		}
		if _, w := out.Dims(); w != c.widths[i] {
			return nil, errors.NewDimensionError("ColumnTransformer.Transform", c.widths[i], w, 1)
		}
		outputs[i] = out
	}
	return hstack(outputs)
}

// FeatureNamesOut returns "<branch>__<feature>" names. Branches whose
// transformer cannot name its outputs fall back to "<branch>__x<i>".
// Output widths are only known after fitting, so an unfit transformer
// returns nil.
func (c *ColumnTransformer) FeatureNamesOut([]string) []string {
	if !c.IsFitted() || len(c.widths) != len(c.branches) {
		return nil
	}
	var names []string
	for i, b := range c.branches {
		var branchNames []string
		if namer, ok := b.Transformer.(model.FeatureNamer); ok {
			branchNames = namer.FeatureNamesOut(b.Columns)
		}
		if len(branchNames) != c.widths[i] {
			branchNames = make([]string, c.widths[i])
			for k := range branchNames {
				branchNames[k] = "x" + strconv.Itoa(k)
			}
		}
		for _, n := range branchNames {
			names = append(names, b.Name+"__"+n)
		}
	}
	return names
}

// GetParams returns "remainder" plus each branch's parameters prefixed with
// the branch name.
func (c *ColumnTransformer) GetParams() map[string]interface{} {
	params := map[string]interface{}{"remainder": "drop"}
	for _, b := range c.branches {
		if getter, ok := b.Transformer.(model.ParameterGetter); ok {
			for key, value := range getter.GetParams() {
				params[fmt.Sprintf("%s__%s", b.Name, key)] = value
			}
		}
	}
	return params
}

// Branches returns a copy of the configured branches.
func (c *ColumnTransformer) Branches() []Branch {
	return append([]Branch(nil), c.branches...)
}

func (c *ColumnTransformer) checkInput(op string, X mat.Matrix) error {
	rows, cols := X.Dims()
	if cols != len(c.columns) {
		return errors.NewDimensionError(op, len(c.columns), cols, 1)
	}
	if rows == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return nil
}

func (c *ColumnTransformer) selectColumns(X mat.Matrix, branch int) *mat.Dense {
	rows, _ := X.Dims()
	idx := c.indices[branch]
	sub := mat.NewDense(rows, len(idx), nil)
	for i := 0; i < rows; i++ {
		for k, j := range idx {
			sub.Set(i, k, X.At(i, j))
		}
	}
	return sub
}

func hstack(parts []mat.Matrix) (mat.Matrix, error) {
	rows, _ := parts[0].Dims()
	width := 0
	for _, p := range parts {
		r, w := p.Dims()
		if r != rows {
			return nil, errors.NewDimensionError("ColumnTransformer.hstack", rows, r, 0)
		}
		width += w
	}

	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, p := range parts {
		_, w := p.Dims()
		out.Slice(0, rows, offset, offset+w).(*mat.Dense).Copy(p)
		offset += w
	}
	return out, nil
}
