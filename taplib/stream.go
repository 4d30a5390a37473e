package taplib

import (
	"encoding/json"

	"github.com/tapflow/tapflow/base/utils"
)

// ReplicationMethod governs how resumable position is tracked for a stream.
type ReplicationMethod string

const (
	// ReplicationFullTable - periodic full re-extraction, position tracked
	// by key-property columns.
	ReplicationFullTable ReplicationMethod = "FULL_TABLE"
	// ReplicationIncremental - position tracked by a monotonic replication
	// key column.
	ReplicationIncremental ReplicationMethod = "INCREMENTAL"
	// ReplicationLogBased - position tracked via a change log, key-property
	// columns used for resume.
	ReplicationLogBased ReplicationMethod = "LOG_BASED"
)

// Column formats that require a special query projection or value
// conversion. Any other format selects and passes the value through
// unchanged.
const (
	FormatBinary   = "binary"
	FormatSpatial  = "spatial"
	FormatDateTime = "date-time"
	FormatDate     = "date"
	FormatTime     = "time"
)

// TypeSet is a JSON-schema style type declaration: either a single type
// name or a list of them (e.g. ["null","boolean"]).
type TypeSet []string

func (t *TypeSet) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var single string
		if err := json.Unmarshal(b, &single); err != nil {
			return err
		}
		*t = TypeSet{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

func (t TypeSet) Contains(typeName string) bool {
	for _, tp := range t {
		if tp == typeName {
			return true
		}
	}
	return false
}

// Column is one declared column of a stream's schema.
type Column struct {
	Name     string  `mapstructure:"name" json:"name"`
	Type     TypeSet `mapstructure:"type" json:"type"`
	Format   string  `mapstructure:"format" json:"format,omitempty"`
	Selected *bool   `mapstructure:"selected" json:"selected,omitempty"`
}

// IsBoolean reports whether the column's declared type includes boolean.
func (c *Column) IsBoolean() bool {
	return c.Type.Contains("boolean")
}

// IsSelected reports whether the column takes part in extraction.
// Selection is assumed already resolved by an external selection layer;
// absence of the flag means selected.
func (c *Column) IsSelected() bool {
	return c.Selected == nil || *c.Selected
}

// Stream identifies one logical extraction unit mapped to a source table.
type Stream struct {
	Name              string            `mapstructure:"name" json:"name"`
	Database          string            `mapstructure:"database" json:"database"`
	Table             string            `mapstructure:"table" json:"table"`
	Columns           []Column          `mapstructure:"columns" json:"columns"`
	KeyProperties     []string          `mapstructure:"key_properties" json:"key_properties,omitempty"`
	ReplicationMethod ReplicationMethod `mapstructure:"replication_method" json:"replication_method"`
	Selected          *bool             `mapstructure:"selected" json:"selected,omitempty"`
}

// TapStreamID returns the unique stream id used as key in the checkpoint
// tree.
func (s *Stream) TapStreamID() string {
	return GenerateTapStreamID(s.Database, s.Table)
}

func GenerateTapStreamID(database, table string) string {
	return database + "-" + table
}

// StreamName returns the name this stream's records are emitted under.
func (s *Stream) StreamName() string {
	return utils.NvlString(s.Name, s.Table)
}

func (s *Stream) IsSelected() bool {
	return s.Selected == nil || *s.Selected
}

// SelectedColumns returns the names of selected columns in schema order.
func (s *Stream) SelectedColumns() []string {
	columns := make([]string, 0, len(s.Columns))
	for i := range s.Columns {
		if s.Columns[i].IsSelected() {
			columns = append(columns, s.Columns[i].Name)
		}
	}
	return columns
}

// Column returns the declared column with the given name.
func (s *Stream) Column(name string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// IsKeyProperty reports whether the column is part of the stream's key.
func (s *Stream) IsKeyProperty(column string) bool {
	for _, key := range s.KeyProperties {
		if key == column {
			return true
		}
	}
	return false
}

func (s *Stream) String() string {
	return utils.JoinNonEmptyStrings(".", s.Database, s.Table)
}
