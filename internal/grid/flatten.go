package grid

import (
	"encoding/json"
	"fmt"
)

// Flatten walks an arbitrarily nested decoded-JSON array and collects every
// numeric leaf into a flat row-major slice. The walk is iterative with an
// explicit work stack: service payloads can carry grids of hundreds of rows
// and a recursive descent risks stack exhaustion on deeply nested input.
func Flatten(v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	case []interface{}:
		// handled below
	default:
		return nil, fmt.Errorf("flatten: unsupported root type %T", v)
	}

	type frame struct {
		arr []interface{}
		idx int
	}
	out := make([]float64, 0, 1024)
	stack := []frame{{arr: v.([]interface{})}}

	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.idx >= len(f.arr) {
			stack = stack[:len(stack)-1]
			continue
		}
		elem := f.arr[f.idx]
		f.idx++

		switch e := elem.(type) {
		case []interface{}:
			stack = append(stack, frame{arr: e})
		case float64:
			out = append(out, e)
		case json.Number:
			n, err := e.Float64()
			if err != nil {
				return nil, fmt.Errorf("flatten: bad number %q: %w", e.String(), err)
			}
			out = append(out, n)
		case int:
			out = append(out, float64(e))
		case bool:
			if e {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		default:
			return nil, fmt.Errorf("flatten: unsupported element type %T", elem)
		}
	}
	return out, nil
}

// FlattenToMask flattens a nested array and converts it to a boolean mask
// slice, treating any nonzero value as set.
func FlattenToMask(v interface{}) ([]uint8, error) {
	vals, err := Flatten(v)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, len(vals))
	for i, f := range vals {
		if f != 0 {
			out[i] = 1
		}
	}
	return out, nil
}
