package sqlgate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Catalog and aggregate values arrive in driver-dependent Go types: MySQL
// DECIMAL and PostgreSQL NUMERIC come back as strings, counts as int64, and
// SQLite averages as float64. These helpers read them uniformly.

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	}
	return fmt.Sprint(v)
}

func asInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case float64:
		return int64(val)
	case json.Number:
		n, _ := val.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n
	}
	return 0
}

func asFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// bindParams prepares request params for the driver. A json.Number becomes
// int64 when it is an integer literal that fits, float64 otherwise; other
// values pass through untouched.
func bindParams(params []any) []any {
	if len(params) == 0 {
		return params
	}
	out := make([]any, len(params))
	for i, p := range params {
		n, ok := p.(json.Number)
		if !ok {
			out[i] = p
			continue
		}
		if v, err := n.Int64(); err == nil {
			out[i] = v
		} else if f, err := n.Float64(); err == nil {
			out[i] = f
		} else {
			out[i] = n.String()
		}
	}
	return out
}

// wholeFloatsToInt turns integral float64 values within the exact range into
// int64. Decoders that do not keep json.Number hand integers over as float64.
func wholeFloatsToInt(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		if f, ok := p.(float64); ok && f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
			out[i] = int64(f)
			continue
		}
		out[i] = p
	}
	return out
}
