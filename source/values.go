package source

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
)

// unitMicros returns the number of microseconds per tick of a time unit.
// Negative results divide instead.
func unitMicros(unit string) (int64, error) {
	switch unit {
	case "", "ns":
		return -1000, nil
	case "us", "µs":
		return 1, nil
	case "ms":
		return 1000, nil
	case "s":
		return 1_000_000, nil
	}
	return 0, fmt.Errorf("unknown time unit %q", unit)
}

func toMicros(v, perTick int64) int64 {
	if perTick < 0 {
		return v / -perTick
	}
	return v * perTick
}

func arrowUnitMicros(u arrow.TimeUnit) int64 {
	switch u {
	case arrow.Second:
		return 1_000_000
	case arrow.Millisecond:
		return 1000
	case arrow.Microsecond:
		return 1
	}
	return -1000
}

// numeric reads row i of a numeric column. ok is false for nulls and for
// unsupported types.
func numeric(arr arrow.Array, i int) (v float64, ok bool) {
	if arr == nil || arr.IsNull(i) {
		return 0, false
	}
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i), true
	case *array.Float32:
		return float64(a.Value(i)), true
	case *array.Int64:
		return float64(a.Value(i)), true
	case *array.Int32:
		return float64(a.Value(i)), true
	case *array.Int16:
		return float64(a.Value(i)), true
	case *array.Int8:
		return float64(a.Value(i)), true
	case *array.Uint64:
		return float64(a.Value(i)), true
	case *array.Uint32:
		return float64(a.Value(i)), true
	case *array.Uint16:
		return float64(a.Value(i)), true
	case *array.Uint8:
		return float64(a.Value(i)), true
	}
	return 0, false
}

// integer reads row i of an integer column without going through float64.
func integer(arr arrow.Array, i int) (int64, error) {
	if arr.IsNull(i) {
		return 0, fmt.Errorf("null value")
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint64:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	}
	return 0, fmt.Errorf("unsupported type %s", arr.DataType())
}

// timestamp reads row i of a time column as microseconds since the epoch.
// Integer columns are interpreted with perTick.
func timestamp(arr arrow.Array, i int, perTick int64) (int64, error) {
	if arr.IsNull(i) {
		return 0, fmt.Errorf("null time")
	}
	switch a := arr.(type) {
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return toMicros(int64(a.Value(i)), arrowUnitMicros(unit)), nil
	case *array.Date64:
		return int64(a.Value(i)) * 1000, nil
	case *array.Date32:
		return int64(a.Value(i)) * int64(24*time.Hour/time.Microsecond), nil
	}
	v, err := integer(arr, i)
	if err != nil {
		return 0, err
	}
	return toMicros(v, perTick), nil
}

func orNaN(v float64, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	return v
}
