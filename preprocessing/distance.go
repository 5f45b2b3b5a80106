package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/core/parallel"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres between two points
// given in decimal degrees. NaN inputs yield NaN.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Pow(math.Sin(dPhi/2), 2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dLambda/2), 2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// DistanceTransformer maps four coordinate columns, ordered
// start_lat, start_lon, end_lat, end_lon, to a single haversine distance column.
// It is stateless; Fit only records that it has been called.
type DistanceTransformer struct {
	model.BaseEstimator
}

// NewDistanceTransformer creates a DistanceTransformer.
func NewDistanceTransformer() *DistanceTransformer {
	return &DistanceTransformer{}
}

// Fit is a no-op.
func (d *DistanceTransformer) Fit(X mat.Matrix) error {
	d.SetFitted()
	return nil
}

// Transform computes one distance per row.
func (d *DistanceTransformer) Transform(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != 4 {
		return nil, errors.NewDimensionError("DistanceTransformer.Transform", 4, cols, 1)
	}
	if rows == 0 {
		return nil, errors.NewModelError("DistanceTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out.Set(i, 0, Haversine(X.At(i, 0), X.At(i, 1), X.At(i, 2), X.At(i, 3)))
		}
	})
	return out, nil
}

// FitTransform fits and transforms in one call.
func (d *DistanceTransformer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := d.Fit(X); err != nil {
		return nil, err
	}
	return d.Transform(X)
}

// FeatureNamesOut returns the single output column name.
func (d *DistanceTransformer) FeatureNamesOut([]string) []string {
	return []string{"distance"}
}

func (d *DistanceTransformer) GetParams() map[string]interface{} {
	return map[string]interface{}{}
}

func (d *DistanceTransformer) String() string {
	return "DistanceTransformer()"
}
