package taplib

import (
	"fmt"
	"strings"
)

// EscapeIdentifier wraps a database, table or column identifier in
// backticks. Escaping is not equipped to handle embedded backticks, so
// those fail outright instead of producing an ambiguous statement.
func EscapeIdentifier(identifier string) (string, error) {
	if strings.Contains(identifier, "`") {
		return "", ConfigurationError.New("can't escape identifier '%s' because it contains a backtick", identifier)
	}
	return "`" + identifier + "`", nil
}

// GenerateSelectSQL builds the extraction query for a stream: every column
// in schema order, with encoding-aware projections for binary and spatial
// columns aliased back to the original column name. Pure function of its
// inputs.
//
// Literal percent characters are doubled so the statement stays safe when
// later rendered through a parameter-substitution template that treats '%'
// specially.
func GenerateSelectSQL(stream *Stream, columns []string) (string, error) {
	escapedDB, err := EscapeIdentifier(stream.Database)
	if err != nil {
		return "", err
	}
	escapedTable, err := EscapeIdentifier(stream.Table)
	if err != nil {
		return "", err
	}
	escapedColumns := make([]string, 0, len(columns))
	for _, name := range columns {
		escapedColumn, err := EscapeIdentifier(name)
		if err != nil {
			return "", err
		}
		column, _ := stream.Column(name)
		format := ""
		if column != nil {
			format = column.Format
		}
		switch format {
		case FormatBinary:
			// strip trailing null bytes before hex-encoding
			escapedColumns = append(escapedColumns,
				fmt.Sprintf("hex(trim(trailing CHAR(0x00) from %s)) as %s", escapedColumn, escapedColumn))
		case FormatSpatial:
			escapedColumns = append(escapedColumns,
				fmt.Sprintf("ST_AsGeoJSON(%s) as %s", escapedColumn, escapedColumn))
		default:
			escapedColumns = append(escapedColumns, escapedColumn)
		}
	}
	selectSQL := fmt.Sprintf("SELECT %s FROM %s.%s", strings.Join(escapedColumns, ","), escapedDB, escapedTable)
	return strings.ReplaceAll(selectSQL, "%", "%%"), nil
}
