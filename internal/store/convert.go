package store

import (
	"encoding/base64"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
)

// ConvertValue converts a driver-returned value to a JSON-friendly Go type.
// Times become RFC 3339 strings, non-finite floats become "NaN", "Infinity"
// or "-Infinity", and pgtype values use their PostgreSQL text form.
func ConvertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		if s, ok := nonFinite(float64(val)); ok {
			return s
		}
		return val
	case float64:
		if s, ok := nonFinite(val); ok {
			return s
		}
		return val
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ConvertValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ConvertValue(e)
		}
		return out
	}
	if s, ok := pgText(v); ok {
		return s
	}
	return v
}

// convertSQLValue converts a database/sql scanned value. Text columns arrive
// as []byte from the MySQL and SQL Server drivers, so valid UTF-8 is kept as
// a string and anything else is base64 encoded.
// convertDateValue renders a DATE column's time.Time as YYYY-MM-DD and
// defers to convert for everything else.
func convertDateValue(v any, convert func(any) any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.DateOnly)
	}
	return convert(v)
}

func isDateType(name string) bool {
	return strings.EqualFold(name, "DATE")
}

func convertSQLValue(v any) any {
	switch val := v.(type) {
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return base64.StdEncoding.EncodeToString(val)
	case int32:
		return int64(val)
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return val
	}
	return ConvertValue(v)
}

func nonFinite(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	}
	return "", false
}

// pgText renders the pgtype values that have no natural JSON form. The
// returned any is nil for an invalid (NULL) value.
func pgText(v any) (any, bool) {
	switch val := v.(type) {
	case pgtype.Time:
		if !val.Valid {
			return nil, true
		}
		return clockText(val.Microseconds), true
	case pgtype.Interval:
		if !val.Valid {
			return nil, true
		}
		return intervalText(val), true
	case pgtype.Numeric:
		if !val.Valid {
			return nil, true
		}
		switch {
		case val.NaN:
			return "NaN", true
		case val.InfinityModifier == pgtype.Infinity:
			return "Infinity", true
		case val.InfinityModifier == pgtype.NegativeInfinity:
			return "-Infinity", true
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil, true
		}
		return string(b), true
	case pgtype.Range[any]:
		if !val.Valid {
			return nil, true
		}
		return rangeText(val), true
	case pgtype.Point:
		if !val.Valid {
			return nil, true
		}
		return fmt.Sprintf("(%g,%g)", val.P.X, val.P.Y), true
	case pgtype.Line:
		if !val.Valid {
			return nil, true
		}
		return fmt.Sprintf("{%g,%g,%g}", val.A, val.B, val.C), true
	case pgtype.Lseg:
		if !val.Valid {
			return nil, true
		}
		return "[" + pointsText(val.P[:]) + "]", true
	case pgtype.Box:
		if !val.Valid {
			return nil, true
		}
		return pointsText(val.P[:]), true
	case pgtype.Path:
		if !val.Valid {
			return nil, true
		}
		if val.Closed {
			return "(" + pointsText(val.P) + ")", true
		}
		return "[" + pointsText(val.P) + "]", true
	case pgtype.Polygon:
		if !val.Valid {
			return nil, true
		}
		return "(" + pointsText(val.P) + ")", true
	case pgtype.Circle:
		if !val.Valid {
			return nil, true
		}
		return fmt.Sprintf("<(%g,%g),%g>", val.P.X, val.P.Y, val.R), true
	case pgtype.Bits:
		if !val.Valid {
			return nil, true
		}
		out := make([]byte, val.Len)
		for i := int32(0); i < val.Len; i++ {
			if val.Bytes[i/8]&(1<<uint(7-i%8)) != 0 {
				out[i] = '1'
			} else {
				out[i] = '0'
			}
		}
		return string(out), true
	}
	return nil, false
}

func clockText(us int64) string {
	h := us / int64(time.Hour/time.Microsecond)
	us -= h * int64(time.Hour/time.Microsecond)
	m := us / int64(time.Minute/time.Microsecond)
	us -= m * int64(time.Minute/time.Microsecond)
	s := us / int64(time.Second/time.Microsecond)
	us -= s * int64(time.Second/time.Microsecond)
	if us > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, us)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intervalText(val pgtype.Interval) string {
	var parts []string
	if y := val.Months / 12; y != 0 {
		parts = append(parts, fmt.Sprintf("%d year(s)", y))
	}
	if mo := val.Months % 12; mo != 0 {
		parts = append(parts, fmt.Sprintf("%d mon(s)", mo))
	}
	if val.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
	}
	if val.Microseconds != 0 {
		parts = append(parts, (time.Duration(val.Microseconds) * time.Microsecond).String())
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " ")
}

func rangeText(val pgtype.Range[any]) string {
	if val.LowerType == pgtype.Empty {
		return "empty"
	}
	var sb strings.Builder
	if val.LowerType == pgtype.Inclusive {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if val.LowerType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", ConvertValue(val.Lower))
	}
	sb.WriteByte(',')
	if val.UpperType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", ConvertValue(val.Upper))
	}
	if val.UpperType == pgtype.Inclusive {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}

func pointsText(ps []pgtype.Vec2) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprintf("(%g,%g)", p.X, p.Y)
	}
	return strings.Join(parts, ",")
}
