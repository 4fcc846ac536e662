package processing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const thousandsThreshold = 1000

// Salary is a repaired (min, max, avg) triple. Nil means absent.
type Salary struct {
	Min *float64
	Max *float64
	Avg *float64
}

// CoerceAmount converts an untyped salary value to a finite number.
// Anything else, including numeric strings that fail to parse, is absent.
func CoerceAmount(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case *float64:
		if x == nil {
			return nil
		}
		f = *x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// RepairAmount scales values quoted in thousands. Values >= 1000 are returned unchanged.
func RepairAmount(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	if out < thousandsThreshold {
		out *= thousandsThreshold
	}
	return &out
}

// RepairSalary coerces and repairs the triple. When both bounds are present
// the average is their mean.
func RepairSalary(min, max, avg any) Salary {
	s := Salary{
		Min: RepairAmount(CoerceAmount(min)),
		Max: RepairAmount(CoerceAmount(max)),
		Avg: RepairAmount(CoerceAmount(avg)),
	}
	if s.Min != nil && s.Max != nil {
		mean := (*s.Min + *s.Max) / 2
		s.Avg = &mean
	}
	return s
}
