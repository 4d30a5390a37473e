package taplib

import (
	"fmt"
	"time"

	"github.com/tapflow/tapflow/base/types"
)

// isoLayout renders an ISO-8601 timestamp with an explicit numeric UTC
// offset ("+00:00"), matching the canonical record format downstream
// consumers expect.
const isoLayout = "2006-01-02T15:04:05.999999-07:00"

// Record is one canonical extracted row: an ordered column->value mapping
// tagged with the stream version and the extraction timestamp. Immutable
// after creation.
type Record struct {
	Stream        string
	Data          *types.OrderedMap[any]
	Version       int64
	TimeExtracted time.Time
}

// convertFunc converts one driver-native value into its canonical,
// serialization-safe representation. Conversion functions are pure.
type convertFunc func(value any) any

// formatConversions maps a column's declared format to its conversion.
// Dispatch is data-driven so the rules stay exhaustively testable; only
// native temporal and byte-sequence detection happens inside the
// functions themselves.
var formatConversions = map[string]convertFunc{
	FormatDateTime: convertDateTime,
	FormatDate:     convertDate,
	FormatTime:     convertClockTime,
}

// converterFor picks the conversion for a column from its declared schema
// type and format, not from the runtime value.
func converterFor(column *Column) convertFunc {
	if column != nil && column.IsBoolean() {
		return convertBoolean
	}
	if column != nil {
		if convert, ok := formatConversions[column.Format]; ok {
			return convert
		}
	}
	return convertDefault
}

func convertDateTime(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(isoLayout)
	case time.Duration:
		return durationFromEpoch(v)
	default:
		return convertDefault(value)
	}
}

// convertDate renders a date-only value at midnight with a UTC offset
// suffix.
func convertDate(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format("2006-01-02") + "T00:00:00+00:00"
	default:
		return convertDefault(value)
	}
}

// convertClockTime renders a duration-valued TIME column as a fixed-clock
// HH:MM:SS string.
func convertClockTime(value any) any {
	switch v := value.(type) {
	case time.Duration:
		sign := ""
		if v < 0 {
			sign = "-"
			v = -v
		}
		v = v.Round(time.Second)
		hours := v / time.Hour
		minutes := v % time.Hour / time.Minute
		seconds := v % time.Minute / time.Second
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, minutes, seconds)
	default:
		return convertDefault(value)
	}
}

// durationFromEpoch converts a duration value of a non-TIME column to the
// ISO-8601 instant at (unix epoch + duration).
func durationFromEpoch(d time.Duration) string {
	return time.Unix(0, 0).UTC().Add(d).Format(isoLayout)
}

// convertBoolean maps a value of a boolean-declared column: null stays
// null, numeric zero and all-zero byte sequences map to false, everything
// else maps to true.
func convertBoolean(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		return v
	case []byte:
		for _, b := range v {
			if b != 0 {
				return true
			}
		}
		return false
	case int:
		return v != 0
	case int8:
		return v != 0
	case int16:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case uint:
		return v != 0
	case uint8:
		return v != 0
	case uint16:
		return v != 0
	case uint32:
		return v != 0
	case uint64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

// convertDefault passes values through, detecting native temporal and raw
// byte values that still need a serialization-safe form.
func convertDefault(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(isoLayout)
	case time.Duration:
		return durationFromEpoch(v)
	case []byte:
		return string(v)
	default:
		return value
	}
}

// RowToRecord converts one native row (positional values aligned with
// columns) into a Record. Arity mismatch means the projection and the
// schema disagree and is never silently truncated or padded.
func RowToRecord(stream *Stream, version int64, row []any, columns []string, timeExtracted time.Time) (*Record, error) {
	if len(row) != len(columns) {
		return nil, DataShapeError.New("stream %s: row has %d values, schema expects %d columns", stream, len(row), len(columns))
	}
	data := types.NewOrderedMapCap[any](len(columns))
	for i, name := range columns {
		column, _ := stream.Column(name)
		data.Set(name, converterFor(column)(row[i]))
	}
	return &Record{
		Stream:        stream.StreamName(),
		Data:          data,
		Version:       version,
		TimeExtracted: timeExtracted,
	}, nil
}
