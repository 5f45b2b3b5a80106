package dataset

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// DefaultTestSize is the held-out fraction used when none is configured.
const DefaultTestSize = 0.25

// Split holds the train and test partitions of a frame and its target.
type Split struct {
	XTrain *Frame
	XTest  *Frame
	YTrain *mat.VecDense
	YTest  *mat.VecDense
}

// TrainTestSplit shuffles the rows and holds out ceil(testSize*n) of them.
// A nil seed gives a different permutation on every call.
func TrainTestSplit(X *Frame, y *mat.VecDense, testSize float64, seed *uint64) (*Split, error) {
	n := X.Rows()
	if n == 0 || y == nil {
		return nil, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if y.Len() != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain < 1 || nTest < 1 {
		return nil, errors.NewValueError("TrainTestSplit",
			"test_size leaves an empty train or test partition")
	}

	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	perm := rng.Perm(n)

	return &Split{
		XTest:  takeRows(X, perm[:nTest]),
		XTrain: takeRows(X, perm[nTest:]),
		YTest:  takeElems(y, perm[:nTest]),
		YTrain: takeElems(y, perm[nTest:]),
	}, nil
}

func takeRows(f *Frame, idx []int) *Frame {
	_, cols := f.X.Dims()
	X := mat.NewDense(len(idx), cols, nil)
	for i, src := range idx {
		X.SetRow(i, f.X.RawRowView(src))
	}
	return &Frame{Columns: append([]string(nil), f.Columns...), X: X}
}

func takeElems(v *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, src := range idx {
		out.SetVec(i, v.AtVec(src))
	}
	return out
}
