package taplib

import (
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"
)

var extractedAt = time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

func TestRowToRecordArityMismatch(t *testing.T) {
	stream := testStream(
		Column{Name: "id", Type: TypeSet{"integer"}},
		Column{Name: "name", Type: TypeSet{"string"}},
	)
	_, err := RowToRecord(stream, 1, []any{1}, []string{"id", "name"}, extractedAt)
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, DataShapeError))

	_, err = RowToRecord(stream, 1, []any{1, "a", "extra"}, []string{"id", "name"}, extractedAt)
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, DataShapeError))
}

func TestRowToRecordKeepsColumnOrder(t *testing.T) {
	stream := testStream(
		Column{Name: "id", Type: TypeSet{"integer"}},
		Column{Name: "name", Type: TypeSet{"string"}},
		Column{Name: "qty", Type: TypeSet{"integer"}},
	)
	record, err := RowToRecord(stream, 42, []any{7, "socks", 3}, []string{"id", "name", "qty"}, extractedAt)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "qty"}, record.Data.Keys())
	require.Equal(t, int64(42), record.Version)
	require.Equal(t, 7, record.Data.GetN("id"))
}

func TestConvertBoolean(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected any
	}{
		{"nil stays nil", nil, nil},
		{"int zero", 0, false},
		{"int64 zero", int64(0), false},
		{"zero byte", []byte{0x00}, false},
		{"all-zero bytes", []byte{0x00, 0x00}, false},
		{"int one", 1, true},
		{"nonzero byte", []byte{0x01}, true},
		{"negative", -3, true},
		{"string", "false", true},
		{"native bool", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, convertBoolean(tt.value))
		})
	}
}

func TestConvertTemporal(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)

	// date-time values get an explicit UTC offset suffix
	v := convertDateTime(time.Date(2024, 5, 17, 13, 30, 15, 0, moscow))
	require.Equal(t, "2024-05-17T10:30:15+00:00", v)

	// date-only values land at midnight
	v = convertDate(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "2024-05-17T00:00:00+00:00", v)

	// TIME columns render as a fixed clock
	v = convertClockTime(13*time.Hour + 5*time.Minute + 9*time.Second)
	require.Equal(t, "13:05:09", v)
	v = convertClockTime(-(2*time.Hour + 30*time.Minute))
	require.Equal(t, "-02:30:00", v)

	// durations of non-TIME columns become an instant at epoch+duration
	v = convertDateTime(26 * time.Hour)
	require.Equal(t, "1970-01-02T02:00:00+00:00", v)
}

func TestConvertDefaultPassthrough(t *testing.T) {
	require.Equal(t, 123, convertDefault(123))
	require.Equal(t, "abc", convertDefault("abc"))
	require.Equal(t, nil, convertDefault(nil))
	// raw bytes become strings so records stay serialization-safe
	require.Equal(t, "4A4B", convertDefault([]byte("4A4B")))
	// native temporal values are still canonicalized
	require.Equal(t, "2024-05-17T10:30:00+00:00", convertDefault(extractedAt))
}

func TestConverterDispatchIsDeclarationDriven(t *testing.T) {
	boolCol := &Column{Name: "active", Type: TypeSet{"null", "boolean"}}
	require.Equal(t, false, converterFor(boolCol)(0))

	timeCol := &Column{Name: "opens_at", Type: TypeSet{"string"}, Format: FormatTime}
	require.Equal(t, "08:00:00", converterFor(timeCol)(8*time.Hour))

	plainCol := &Column{Name: "note", Type: TypeSet{"string"}}
	require.Equal(t, "hello", converterFor(plainCol)("hello"))
}
