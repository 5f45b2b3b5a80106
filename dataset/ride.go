// Package dataset loads, cleans and featurizes NYC taxi ride records.
package dataset

import (
	"math"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

// CSV column names.
const (
	ColumnKey              = "key"
	ColumnFareAmount       = "fare_amount"
	ColumnPickupDatetime   = "pickup_datetime"
	ColumnPickupLongitude  = "pickup_longitude"
	ColumnPickupLatitude   = "pickup_latitude"
	ColumnDropoffLongitude = "dropoff_longitude"
	ColumnDropoffLatitude  = "dropoff_latitude"
	ColumnPassengerCount   = "passenger_count"
)

// FeatureColumns lists the columns of the matrix built by Features, in order.
// pickup_datetime is stored as Unix seconds.
var FeatureColumns = []string{
	ColumnPickupDatetime,
	ColumnPickupLongitude,
	ColumnPickupLatitude,
	ColumnDropoffLongitude,
	ColumnDropoffLatitude,
	ColumnPassengerCount,
}

// Ride is one taxi trip.
type Ride struct {
	Key              string
	FareAmount       float64
	PickupDatetime   time.Time
	PickupLongitude  float64
	PickupLatitude   float64
	DropoffLongitude float64
	DropoffLatitude  float64
	PassengerCount   int
}

// Valid reports whether the ride passes the cleaning filter: both points are
// non-zero and inside the New York bounding boxes, the fare is in (0, 4000]
// and there are fewer than 8 passengers. Rides with NaN fields are invalid.
func (r Ride) Valid() bool {
	switch {
	case hasNaN(r.FareAmount, r.PickupLatitude, r.PickupLongitude, r.DropoffLatitude, r.DropoffLongitude):
		return false
	case r.PickupLatitude == 0 && r.PickupLongitude == 0:
		return false
	case r.DropoffLatitude == 0 && r.DropoffLongitude == 0:
		return false
	case r.FareAmount <= 0 || r.FareAmount > 4000:
		return false
	case r.PassengerCount < 0 || r.PassengerCount >= 8:
		return false
	case r.PickupLatitude < 40 || r.PickupLatitude > 42:
		return false
	case r.PickupLongitude < -74.3 || r.PickupLongitude > -72.9:
		return false
	case r.DropoffLatitude < 40 || r.DropoffLatitude > 42:
		return false
	case r.DropoffLongitude < -74 || r.DropoffLongitude > -72.9:
		return false
	}
	return true
}

func hasNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Clean returns the rides that pass Valid, in their original order. The input
// slice is not modified.
func Clean(rides []Ride) []Ride {
	return lo.Filter(rides, func(r Ride, _ int) bool { return r.Valid() })
}

// Frame is a dense feature matrix with named columns.
type Frame struct {
	Columns []string
	X       *mat.Dense
}

// Rows returns the number of samples.
func (f *Frame) Rows() int {
	if f == nil || f.X == nil {
		return 0
	}
	r, _ := f.X.Dims()
	return r
}

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	return lo.IndexOf(f.Columns, name)
}

// Features builds the feature frame for rides. Row i describes rides[i].
func Features(rides []Ride) *Frame {
	frame := &Frame{Columns: append([]string(nil), FeatureColumns...)}
	if len(rides) == 0 {
		return frame
	}

	X := mat.NewDense(len(rides), len(FeatureColumns), nil)
	for i, r := range rides {
		X.SetRow(i, []float64{
			float64(r.PickupDatetime.Unix()),
			r.PickupLongitude,
			r.PickupLatitude,
			r.DropoffLongitude,
			r.DropoffLatitude,
			float64(r.PassengerCount),
		})
	}
	frame.X = X
	return frame
}

// Target returns the fare of every ride as an n×1 vector.
func Target(rides []Ride) *mat.VecDense {
	if len(rides) == 0 {
		return nil
	}
	return mat.NewVecDense(len(rides), lo.Map(rides, func(r Ride, _ int) float64 { return r.FareAmount }))
}
