package preprocessing

import (
	"math"
	"time"
	_ "time/tzdata" // the reference zone must resolve on hosts without a zoneinfo database

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// DefaultTimeZone is the zone pickup timestamps are converted to before
// calendar features are extracted.
const DefaultTimeZone = "America/New_York"

// TimeFeatureNames lists the columns emitted by TimeFeaturesEncoder, in order.
var TimeFeatureNames = []string{"dow", "hour", "month", "year"}

// TimeFeaturesEncoder は Unix 秒で表された1列のタイムスタンプを
// 曜日・時・月・年の4列に展開する。曜日は月曜=0 から日曜=6。
type TimeFeaturesEncoder struct {
	model.BaseEstimator

	// Column は元の列名（ログと特徴量名にのみ使う）
	Column string

	// Location は特徴量を取り出す前に変換するタイムゾーン
	Location *time.Location
}

// NewTimeFeaturesEncoder creates an encoder for the named column using the
// given zone. An empty zone name selects DefaultTimeZone.
func NewTimeFeaturesEncoder(column, zone string) (*TimeFeaturesEncoder, error) {
	if zone == "" {
		zone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, errors.NewValidationError("time_zone", "unknown IANA zone", zone)
	}
	return &TimeFeaturesEncoder{Column: column, Location: loc}, nil
}

// Fit is a no-op.
func (e *TimeFeaturesEncoder) Fit(X mat.Matrix) error {
	e.SetFitted()
	return nil
}

// Transform expands each timestamp into dow, hour, month and year. A NaN
// timestamp yields a row of NaN.
func (e *TimeFeaturesEncoder) Transform(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != 1 {
		return nil, errors.NewDimensionError("TimeFeaturesEncoder.Transform", 1, cols, 1)
	}
	if rows == 0 {
		return nil, errors.NewModelError("TimeFeaturesEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}

	out := mat.NewDense(rows, len(TimeFeatureNames), nil)
	for i := 0; i < rows; i++ {
		v := X.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out.SetRow(i, []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()})
			continue
		}
		sec, frac := math.Modf(v)
		t := time.Unix(int64(sec), int64(frac*1e9)).In(loc)
		out.SetRow(i, []float64{
			float64((int(t.Weekday()) + 6) % 7),
			float64(t.Hour()),
			float64(t.Month()),
			float64(t.Year()),
		})
	}
	return out, nil
}

// FitTransform fits and transforms in one call.
func (e *TimeFeaturesEncoder) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// FeatureNamesOut returns dow, hour, month and year.
func (e *TimeFeaturesEncoder) FeatureNamesOut([]string) []string {
	return append([]string(nil), TimeFeatureNames...)
}

func (e *TimeFeaturesEncoder) GetParams() map[string]interface{} {
	zone := ""
	if e.Location != nil {
		zone = e.Location.String()
	}
	return map[string]interface{}{
		"time_column": e.Column,
		"time_zone":   zone,
	}
}
